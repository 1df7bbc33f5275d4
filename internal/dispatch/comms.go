package dispatch

import "sync"

// Comm is one open custom-message channel, per the Jupyter comm protocol.
type Comm struct {
	ID         string
	TargetName string
	Data       interface{}
}

// CommRegistry tracks open comms for one kernel. Grounded on
// original_source's handlers/dispatch/comms.py (comm_open/comm_msg/
// comm_close/comm_info_request) and the donor's internal/dispatcher/comms.go,
// kept here as a plain map keyed by comm_id.
type CommRegistry struct {
	mu    sync.Mutex
	comms map[string]*Comm
}

func NewCommRegistry() *CommRegistry {
	return &CommRegistry{comms: make(map[string]*Comm)}
}

func (r *CommRegistry) Open(id, target string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comms[id] = &Comm{ID: id, TargetName: target, Data: data}
}

func (r *CommRegistry) Update(id string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.comms[id]; ok {
		c.Data = data
	}
}

func (r *CommRegistry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comms, id)
}

// Get returns the live comm for id, if any.
func (r *CommRegistry) Get(id string) (*Comm, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comms[id]
	return c, ok
}

// KnownTargets reports whether any open comm currently uses targetName.
func (r *CommRegistry) KnownTargets(targetName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comms {
		if c.TargetName == targetName {
			return true
		}
	}
	return false
}

// Filtered returns every comm whose TargetName matches targetName, or every
// comm if targetName is empty, per comm_info_request's semantics.
func (r *CommRegistry) Filtered(targetName string) map[string]CommInfoRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CommInfoRecord)
	for id, c := range r.comms {
		if targetName == "" || c.TargetName == targetName {
			out[id] = CommInfoRecord{TargetName: c.TargetName}
		}
	}
	return out
}
