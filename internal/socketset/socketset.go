// Package socketset owns the five Jupyter wire-protocol ZeroMQ sockets for a
// kernel (heartbeat, shell, control, stdin, iopub) and a fixed-order poller
// over them, per SPEC_FULL.md §4.2.
//
// Grounded on janpfeifer-gonb/kernel/kernel.go's SyncSocket/SocketGroup and
// bindSockets, extended with port auto-binding over a [min,max] range and a
// role-ordered poll cycle (the donor instead races a Go select across
// per-socket goroutines with no ordering guarantee, which this spec's
// deterministic dispatch order rules out).
package socketset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

// Role identifies one of the five Jupyter sockets.
type Role int

const (
	Heartbeat Role = iota
	Shell
	Control
	Stdin
	IOPub
)

// Roles lists every role in the fixed dispatch order mandated by §4.5.
var Roles = []Role{Heartbeat, Shell, Control, Stdin, IOPub}

func (r Role) String() string {
	switch r {
	case Heartbeat:
		return "heartbeat"
	case Shell:
		return "shell"
	case Control:
		return "control"
	case Stdin:
		return "stdin"
	case IOPub:
		return "iopub"
	default:
		return "unknown"
	}
}

// Socket wraps a zmq4.Socket with a lock guarding writes, mirroring the
// donor's SyncSocket.
type Socket struct {
	Role   Role
	Socket zmq4.Socket
	mu     sync.Mutex
}

// RunLocked serializes access to the underlying socket.
func (s *Socket) RunLocked(fn func(zmq4.Socket) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.Socket)
}

// Set holds the five bound sockets and their resolved ports for one kernel.
type Set struct {
	Sockets map[Role]*Socket
	Ports   map[Role]int
	Key     []byte
}

// BindSpec describes how to bind a kernel's sockets, mirroring a parsed
// ConnectionFile plus the auto-bind range from §4.2/§6.
type BindSpec struct {
	Transport string
	IP        string
	MinPort   int
	MaxPort   int
	// Ports holds preassigned ports per role; zero means auto-bind within
	// [MinPort, MaxPort].
	Ports map[Role]int
}

func newSocketForRole(ctx context.Context, role Role) zmq4.Socket {
	switch role {
	case Heartbeat:
		return zmq4.NewRep(ctx)
	case IOPub:
		return zmq4.NewPub(ctx)
	default:
		return zmq4.NewRouter(ctx)
	}
}

// Bind creates and binds all five sockets described by spec, auto-selecting
// free ports from [MinPort, MaxPort] for any role left at zero.
func Bind(spec BindSpec) (*Set, error) {
	ctx := context.Background()
	set := &Set{
		Sockets: make(map[Role]*Socket, len(Roles)),
		Ports:   make(map[Role]int, len(Roles)),
	}
	for _, role := range Roles {
		sock := &Socket{Role: role, Socket: newSocketForRole(ctx, role)}
		port := spec.Ports[role]
		if port != 0 {
			addr := fmt.Sprintf("%s://%s:%d", spec.Transport, spec.IP, port)
			if err := sock.Socket.Listen(addr); err != nil {
				return nil, errors.Wrapf(err, "binding %s socket to %s", role, addr)
			}
		} else {
			bound, err := bindFreePort(sock, spec.Transport, spec.IP, spec.MinPort, spec.MaxPort)
			if err != nil {
				return nil, errors.Wrapf(err, "auto-binding %s socket", role)
			}
			port = bound
		}
		set.Sockets[role] = sock
		set.Ports[role] = port
	}
	return set, nil
}

func bindFreePort(sock *Socket, transport, ip string, min, max int) (int, error) {
	if min == 0 && max == 0 {
		return 0, errors.New("no port given and no [min_port,max_port] range configured")
	}
	for port := min; port <= max; port++ {
		addr := fmt.Sprintf("%s://%s:%d", transport, ip, port)
		if err := sock.Socket.Listen(addr); err == nil {
			return port, nil
		}
	}
	return 0, errors.Errorf("no free port in [%d,%d]", min, max)
}

// Close releases every socket in the set.
func (s *Set) Close() error {
	var firstErr error
	for _, role := range Roles {
		if sock, ok := s.Sockets[role]; ok {
			if err := sock.Socket.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// received is one socket's raw receive result; the per-role channel it is
// delivered on identifies the role.
type received struct {
	msg zmq4.Msg
	err error
}

// Poller reads all five sockets concurrently but hands results back to
// Next() in the fixed role order required by §4.5, one ready message per
// call.
type Poller struct {
	set   *Set
	chans map[Role]chan received
	stop  chan struct{}
}

// NewPoller starts one background receiver goroutine per socket.
func NewPoller(set *Set) *Poller {
	p := &Poller{
		set:   set,
		chans: make(map[Role]chan received, len(Roles)),
		stop:  make(chan struct{}),
	}
	for _, role := range Roles {
		ch := make(chan received, 1)
		p.chans[role] = ch
		go p.recvLoop(role, ch)
	}
	return p
}

func (p *Poller) recvLoop(role Role, ch chan received) {
	sock := p.set.Sockets[role]
	for {
		msg, err := sock.Socket.Recv()
		select {
		case ch <- received{msg: msg, err: err}:
		case <-p.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// Next scans every role in fixed order and returns the first pending
// message, blocking up to timeout before reporting none ready. It never
// returns more than one message per call, so a caller's dispatch-then-loop
// structure naturally honors the "drain one role fully before the next"
// ordering of §4.5.
func (p *Poller) Next(timeout time.Duration) (role Role, msg zmq4.Msg, err error, ok bool) {
	deadline := time.Now().Add(timeout)
	const tick = 500 * time.Microsecond
	for {
		for _, r := range Roles {
			select {
			case res := <-p.chans[r]:
				return r, res.msg, res.err, true
			default:
			}
		}
		if time.Now().After(deadline) {
			return 0, zmq4.Msg{}, nil, false
		}
		time.Sleep(tick)
	}
}

// Close stops all receiver goroutines. Underlying sockets must be closed
// separately via Set.Close.
func (p *Poller) Close() {
	close(p.stop)
}

// Send writes frames (with identities/topic already prefixed) to the named
// role's socket.
func (s *Set) Send(role Role, frames [][]byte) error {
	sock, ok := s.Sockets[role]
	if !ok {
		return errors.Errorf("no socket bound for role %s", role)
	}
	return sock.RunLocked(func(zs zmq4.Socket) error {
		return zs.SendMulti(zmq4.NewMsgFrom(frames...))
	})
}
