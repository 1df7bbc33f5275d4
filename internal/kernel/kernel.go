// Package kernel implements the Kernel Instance & Event Loop (C5): the
// per-kernel state machine, its single-threaded cooperative poll/dispatch
// cycle, heartbeat tracking, and restart.
//
// Grounded on the donor's internal/kernel/kernel.go Kernel type and
// kernel/kernel.go's bindSockets/Run loop shape, generalized from a Go
// compile-and-run session to the wire/socketset/execctx/dispatch packages
// this host builds instead.
package kernel

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/gopykernel/gopykernel/internal/dispatch"
	"github.com/gopykernel/gopykernel/internal/execctx"
	"github.com/gopykernel/gopykernel/internal/obslog"
	"github.com/gopykernel/gopykernel/internal/socketset"
	"github.com/gopykernel/gopykernel/internal/util"
	"github.com/gopykernel/gopykernel/internal/wire"
)

// ImplementationVersion is reported in kernel_info_reply.
const ImplementationVersion = "1.0.0"

// PollInterval is the poller's readiness-check timeout, per §4.2's "short
// timeout (~10 ms)".
const PollInterval = 10 * time.Millisecond

// Kernel is one running kernel: its sockets, codec, execution context, and
// lifecycle state.
type Kernel struct {
	ID       string
	ConnFile wire.ConnectionFile

	codec   *wire.Codec
	sockets *socketset.Set
	poller  *socketset.Poller
	handler *dispatch.Handler
	log     *obslog.KernelLogger

	sessionMu sync.RWMutex
	sessionID string

	stateMu sync.RWMutex
	state   State

	interrupted   atomic.Bool
	restartWanted atomic.Bool
	lastHeartbeat atomic.Value // time.Time

	sessionActive atomic.Bool

	idleCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// Launch binds sockets for connFile, starts the event loop on its own
// goroutine, and returns once the kernel reaches Idle, per §4.6's launch
// contract.
func Launch(kernelID string, connFile wire.ConnectionFile, minPort, maxPort int) (*Kernel, error) {
	if connFile.Key == "" {
		// The HMAC signing key is generated when the launch request has none.
		key, err := uuid.NewV4()
		if err != nil {
			return nil, errors.Wrapf(err, "generating key for kernel %s", kernelID)
		}
		connFile.Key = key.String()
	}
	ports := map[socketset.Role]int{
		socketset.Shell:     connFile.ShellPort,
		socketset.IOPub:     connFile.IOPubPort,
		socketset.Stdin:     connFile.StdinPort,
		socketset.Control:   connFile.ControlPort,
		socketset.Heartbeat: connFile.HBPort,
	}
	set, err := socketset.Bind(socketset.BindSpec{
		Transport: connFile.Transport,
		IP:        connFile.IP,
		MinPort:   minPort,
		MaxPort:   maxPort,
		Ports:     ports,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "binding sockets for kernel %s", kernelID)
	}
	connFile.ShellPort = set.Ports[socketset.Shell]
	connFile.IOPubPort = set.Ports[socketset.IOPub]
	connFile.StdinPort = set.Ports[socketset.Stdin]
	connFile.ControlPort = set.Ports[socketset.Control]
	connFile.HBPort = set.Ports[socketset.Heartbeat]
	connFile.IgnitionKernelID = kernelID

	k := &Kernel{
		ID:        kernelID,
		ConnFile:  connFile,
		codec:     wire.NewCodec([]byte(connFile.Key), connFile.SignatureScheme),
		sockets:   set,
		handler:   dispatch.NewHandler(execctx.NewExecutionContext(), ImplementationVersion),
		log:       obslog.ForKernel(kernelID),
		sessionID: newSessionID(),
		idleCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	k.setState(Starting)
	k.lastHeartbeat.Store(time.Now())
	k.poller = socketset.NewPoller(set)

	go k.run()

	select {
	case <-k.idleCh:
	case <-k.doneCh:
		return nil, errors.Errorf("kernel %s terminated before reaching idle", kernelID)
	}
	return k, nil
}

// newSessionID mints a kernel-owned session identity, stamped onto every
// outgoing header (§3's data model) instead of echoing the inbound
// request's session verbatim.
func newSessionID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}

// SessionID reports the kernel's current session identity. It changes
// across a restart (§4.5/Scenario E5).
func (k *Kernel) SessionID() string {
	k.sessionMu.RLock()
	defer k.sessionMu.RUnlock()
	return k.sessionID
}

func (k *Kernel) setState(s State) {
	k.stateMu.Lock()
	k.state = s
	k.stateMu.Unlock()
}

func (k *Kernel) State() State {
	k.stateMu.RLock()
	defer k.stateMu.RUnlock()
	return k.state
}

func (k *Kernel) LastHeartbeat() time.Time {
	return k.lastHeartbeat.Load().(time.Time)
}

// Interrupt signals the executor to stop after its current statement,
// implementing the control-role interrupt_request handler (§4.4/§4.5).
func (k *Kernel) Interrupt() {
	k.interrupted.Store(true)
	k.handler.Exec.Interrupt()
}

// RequestRestart asks the event loop to replace the execution context on
// its next iteration, the same path shutdown_request{restart:true} drives.
// Used by the REST DELETE /kernel/{id} signal-0/SIGTERM case (§4.7).
func (k *Kernel) RequestRestart() {
	k.restartWanted.Store(true)
}

// Scram tears the kernel down: it stops the event loop and releases its
// sockets. Idempotent.
func (k *Kernel) Scram() {
	k.stateMu.Lock()
	if k.state == TearingDown || k.state == Terminated {
		k.stateMu.Unlock()
		return
	}
	k.state = TearingDown
	k.stateMu.Unlock()

	close(k.stopCh)
	<-k.doneCh
}

// run is the single-threaded cooperative event loop (§4.5).
func (k *Kernel) run() {
	defer func() {
		k.poller.Close()
		_ = k.sockets.Close()
		k.setState(Terminated)
		close(k.doneCh)
	}()

	k.publishStatus(&wire.Message{}, "starting")
	k.setState(Idle)
	select {
	case k.idleCh <- struct{}{}:
	default:
	}

	for {
		select {
		case <-k.stopCh:
			return
		default:
		}

		role, msg, err, ok := k.poller.Next(PollInterval)
		if !ok {
			if k.restartWanted.Load() {
				k.restartWanted.Store(false)
				k.doRestart()
			}
			continue
		}
		if err != nil {
			k.log.Errorf("receiving on %s: %v", role, err)
			continue
		}

		switch role {
		case socketset.Heartbeat:
			k.handleHeartbeat(msg)
		case socketset.IOPub:
			// Broadcast-only; nothing to consume.
		case socketset.Stdin:
			// Placeholder reply path; this kernel never initiates
			// input_request, so inbound stdin traffic is logged and dropped.
			k.log.Infof("received unexpected stdin message, ignoring")
		default:
			k.handleRequest(role, msg)
		}

		if k.restartWanted.Load() {
			k.restartWanted.Store(false)
			k.doRestart()
		}
	}
}

func (k *Kernel) handleHeartbeat(msg zmq4.Msg) {
	k.lastHeartbeat.Store(time.Now())
	payload := msg.Frames
	if !k.sessionActive.Load() {
		payload = [][]byte{{}}
	}
	sock := k.sockets.Sockets[socketset.Heartbeat]
	if err := sock.RunLocked(func(zs zmq4.Socket) error {
		return zs.SendMulti(zmq4.NewMsgFrom(payload...))
	}); err != nil {
		k.log.Errorf("replying to heartbeat: %v", err)
	}
}

func (k *Kernel) handleRequest(role socketset.Role, msg zmq4.Msg) {
	parsed, err := k.codec.Parse(msg.Frames)
	if err != nil {
		k.log.Errorf("parsing %s message: %v", role, err)
		return
	}

	k.sessionActive.Store(true)
	k.setState(Busy)
	k.publishStatus(parsed, "busy")
	defer func() {
		if r := recover(); r != nil {
			k.log.Errorf("recovered from panic handling %s: %v\n%s", parsed.Header.MsgType, r, util.GetStackTrace())
		}
		k.publishStatus(parsed, "idle")
		k.setState(Idle)
	}()

	k.dispatchOne(role, parsed)
}

func (k *Kernel) publishStatus(parent *wire.Message, state string) {
	k.publishIOPub(parent, "status", dispatch.StatusContent{ExecutionState: state})
}

func (k *Kernel) publishIOPub(parent *wire.Message, msgType string, content interface{}) {
	header, err := wire.NewHeader(msgType, k.SessionID(), parent.Header.Username)
	if err != nil {
		k.log.Errorf("building %s header: %v", msgType, err)
		return
	}
	out := &wire.Message{
		Header:       header,
		ParentHeader: parent.Header,
		Content:      content,
	}
	frames, err := k.codec.Serialize(out, [][]byte{wire.IOPubTopic(k.ID, msgType)})
	if err != nil {
		k.log.Errorf("serializing %s: %v", msgType, err)
		return
	}
	if err := k.sockets.Send(socketset.IOPub, frames); err != nil {
		k.log.Errorf("sending %s on iopub: %v", msgType, err)
	}
}

func (k *Kernel) reply(role socketset.Role, parent *wire.Message, msgType string, content interface{}) {
	header, err := wire.NewHeader(msgType, k.SessionID(), parent.Header.Username)
	if err != nil {
		k.log.Errorf("building %s header: %v", msgType, err)
		return
	}
	out := &wire.Message{
		Header:       header,
		ParentHeader: parent.Header,
		Content:      content,
	}
	frames, err := k.codec.Serialize(out, parent.Identities)
	if err != nil {
		k.log.Errorf("serializing %s: %v", msgType, err)
		return
	}
	if err := k.sockets.Send(role, frames); err != nil {
		k.log.Errorf("sending %s on %s: %v", msgType, role, err)
	}
}

func decodeContent(raw interface{}, out interface{}) error {
	rm, ok := raw.(json.RawMessage)
	if !ok {
		return errors.New("content is not raw JSON")
	}
	return json.Unmarshal(rm, out)
}

func (k *Kernel) dispatchOne(role socketset.Role, parent *wire.Message) {
	switch parent.Header.MsgType {
	case "kernel_info_request":
		k.reply(role, parent, "kernel_info_reply", k.handler.KernelInfoReply())

	case "execute_request":
		var req dispatch.ExecuteRequest
		if err := decodeContent(parent.Content, &req); err != nil {
			k.log.Errorf("decoding execute_request: %v", err)
			return
		}
		k.interrupted.Store(false)
		outcome := k.handler.HandleExecute(req)
		if outcome.EchoInput {
			k.publishIOPub(parent, "execute_input", outcome.Input)
		}
		if outcome.Stdout != nil {
			k.publishIOPub(parent, "stream", outcome.Stdout)
		}
		if outcome.Stderr != nil {
			k.publishIOPub(parent, "stream", outcome.Stderr)
		}
		if outcome.Error != nil {
			k.publishIOPub(parent, "error", outcome.Error)
		}
		if outcome.Result != nil {
			k.publishIOPub(parent, "execute_result", outcome.Result)
		}
		k.reply(role, parent, "execute_reply", outcome.Reply)

	case "complete_request":
		var req dispatch.CompleteRequest
		if err := decodeContent(parent.Content, &req); err != nil {
			k.log.Errorf("decoding complete_request: %v", err)
			return
		}
		k.reply(role, parent, "complete_reply", k.handler.HandleComplete(req))

	case "inspect_request":
		var req dispatch.InspectRequest
		if err := decodeContent(parent.Content, &req); err != nil {
			k.log.Errorf("decoding inspect_request: %v", err)
			return
		}
		k.reply(role, parent, "inspect_reply", k.handler.HandleInspect(req))

	case "comm_open":
		var req dispatch.CommOpen
		if err := decodeContent(parent.Content, &req); err == nil {
			k.handler.HandleCommOpen(req)
		}

	case "comm_msg":
		var req dispatch.CommMsg
		if err := decodeContent(parent.Content, &req); err == nil {
			k.handler.HandleCommMsg(req)
		}

	case "comm_close":
		var req dispatch.CommClose
		if err := decodeContent(parent.Content, &req); err == nil {
			k.handler.HandleCommClose(req)
		}

	case "comm_info_request":
		var req dispatch.CommInfoRequest
		var raw struct {
			CommID string `json:"comm_id"`
		}
		_ = decodeContent(parent.Content, &req)
		_ = decodeContent(parent.Content, &raw)
		reply, closeID := k.handler.HandleCommInfo(req, raw.CommID)
		if reply != nil {
			k.reply(role, parent, "comm_info_reply", reply)
		} else {
			k.reply(role, parent, "comm_close", dispatch.CommClose{CommID: closeID})
		}

	case "shutdown_request":
		var req dispatch.ShutdownRequest
		if err := decodeContent(parent.Content, &req); err != nil {
			k.log.Errorf("decoding shutdown_request: %v", err)
			return
		}
		k.reply(role, parent, "shutdown_reply", dispatch.ShutdownReply{Restart: req.Restart, Status: "ok"})
		if req.Restart {
			k.restartWanted.Store(true)
		} else {
			go k.Scram()
		}

	case "interrupt_request":
		k.Interrupt()
		k.reply(role, parent, "interrupt_reply", dispatch.InterruptReply{Status: "ok"})

	default:
		k.log.Infof("unhandled %s message type %q", role, parent.Header.MsgType)
	}
}

// doRestart replaces the execution context atomically and broadcasts the
// "restart" sentinel on heartbeat so a listening client observes it, per
// §4.4's shutdown_request{restart} handling and the restart Open Question
// decision recorded in DESIGN.md.
func (k *Kernel) doRestart() {
	k.log.Infof("restarting execution context")
	k.handler = dispatch.NewHandler(execctx.NewExecutionContext(), ImplementationVersion)
	k.sessionActive.Store(false)
	k.sessionMu.Lock()
	k.sessionID = newSessionID()
	k.sessionMu.Unlock()
	sock := k.sockets.Sockets[socketset.Heartbeat]
	_ = sock.RunLocked(func(zs zmq4.Socket) error {
		return zs.SendMulti(zmq4.NewMsgFrom([]byte("restart")))
	})
}
