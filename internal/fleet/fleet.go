// Package fleet implements the Fleet Supervisor (C6): a process-wide
// registry of running kernels keyed by kernel_id, with launch/lookup/
// iterate/scram/scram_all/check_pulse operations.
//
// Grounded on the donor's top-level structure of one-kernel-per-process
// generalized to many, and on common.Set/common.SortedKeys (common/
// common.go) for the registry's key bookkeeping.
package fleet

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gopykernel/gopykernel/common"
	"github.com/gopykernel/gopykernel/internal/kernel"
	"github.com/gopykernel/gopykernel/internal/obslog"
	"github.com/gopykernel/gopykernel/internal/wire"
)

// InitSpec describes a requested kernel launch.
type InitSpec struct {
	KernelID        string
	Transport       string
	IP              string
	SignatureScheme string
	Key             string
	MinPort         int
	MaxPort         int
}

// Supervisor is the process-wide kernel registry.
type Supervisor struct {
	mu      sync.RWMutex
	kernels map[string]*kernel.Kernel

	cardiacArrestTimeout time.Duration
}

func NewSupervisor(cardiacArrestTimeout time.Duration) *Supervisor {
	return &Supervisor{
		kernels:              make(map[string]*kernel.Kernel),
		cardiacArrestTimeout: cardiacArrestTimeout,
	}
}

var ErrDuplicateKernelID = errors.New("fleet: kernel_id already registered")
var ErrNotFound = errors.New("fleet: kernel not found")

// Launch spawns a new kernel under init.KernelID, returning once it's Idle.
// A duplicate kernel_id is an error, per §4.6.
func (s *Supervisor) Launch(init InitSpec) (*kernel.Kernel, error) {
	s.mu.Lock()
	if _, exists := s.kernels[init.KernelID]; exists {
		s.mu.Unlock()
		return nil, ErrDuplicateKernelID
	}
	s.mu.Unlock()

	connFile := wire.ConnectionFile{
		Transport:        init.Transport,
		IP:               init.IP,
		IgnitionKernelID: init.KernelID,
		SignatureScheme:  init.SignatureScheme,
		Key:              init.Key,
	}
	k, err := kernel.Launch(init.KernelID, connFile, init.MinPort, init.MaxPort)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.kernels[init.KernelID] = k
	s.mu.Unlock()
	obslog.Infof("fleet: launched kernel %s", init.KernelID)
	return k, nil
}

// Lookup returns the live kernel for id, pruning it first if terminated.
func (s *Supervisor) Lookup(id string) (*kernel.Kernel, bool) {
	s.mu.RLock()
	k, ok := s.kernels[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if k.State() == kernel.Terminated {
		s.prune(id)
		return nil, false
	}
	return k, true
}

func (s *Supervisor) prune(id string) {
	s.mu.Lock()
	delete(s.kernels, id)
	s.mu.Unlock()
}

// Iterate returns every live kernel_id, pruning dead entries as it goes.
func (s *Supervisor) Iterate() []string {
	s.mu.Lock()
	snapshot := make(map[string]*kernel.Kernel, len(s.kernels))
	for id, k := range s.kernels {
		snapshot[id] = k
	}
	s.mu.Unlock()

	live := common.MakeSet[string](len(snapshot))
	for id, k := range snapshot {
		if k.State() == kernel.Terminated {
			s.prune(id)
			continue
		}
		live.Insert(id)
	}
	m := make(map[string]int, len(live))
	for id := range live {
		m[id] = 0
	}
	return common.SortedKeys(m)
}

// Scram force-tears-down the named kernel.
func (s *Supervisor) Scram(id string) error {
	k, ok := s.Lookup(id)
	if !ok {
		return ErrNotFound
	}
	k.Scram()
	s.prune(id)
	return nil
}

// ScramAll tears down every live kernel concurrently, collecting the first
// error while waiting on every kernel, per §4.6.
func (s *Supervisor) ScramAll() error {
	ids := s.Iterate()
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return s.Scram(id)
		})
	}
	return g.Wait()
}

// CheckPulse tears down any kernel whose last heartbeat exceeds the
// configured cardiac-arrest timeout, fanning out with errgroup like
// ScramAll.
func (s *Supervisor) CheckPulse() error {
	if s.cardiacArrestTimeout <= 0 {
		return nil
	}
	ids := s.Iterate()
	var g errgroup.Group
	now := time.Now()
	for _, id := range ids {
		id := id
		g.Go(func() error {
			k, ok := s.Lookup(id)
			if !ok {
				return nil
			}
			if now.Sub(k.LastHeartbeat()) > s.cardiacArrestTimeout {
				obslog.Errorf("fleet: cardiac arrest for kernel %s, scramming", id)
				return s.Scram(id)
			}
			return nil
		})
	}
	return g.Wait()
}
