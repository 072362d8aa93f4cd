// Package channels implements the Channel Registry: one inbound and one
// response queue per ModuleId, created once by the Supervisor and opened
// by every process that needs to address a module. Delivery between
// processes is backed by a real Unix domain datagram socket per queue
// (see transport.go); the Registry's own bookkeeping just tracks local
// Queue handles and their names.
package channels

import (
	"context"
	"os"
	"sync"

	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/wire"
)

// Family distinguishes a module's two queues.
type Family int

const (
	Inbound Family = iota
	Response
)

// Registry holds this process's local Queue handles for every ModuleId.
// Each HEMS process builds its own Registry; envelopes cross process
// boundaries through the named socket behind each queue (see Listen and
// Send), not through shared Go state.
type Registry struct {
	mu       sync.RWMutex
	inbound  map[modules.ModuleId]*Queue
	response map[modules.ModuleId]*Queue
	created  bool
}

// NewRegistry constructs an empty Registry. Call CreateAll before use.
func NewRegistry() *Registry {
	return &Registry{
		inbound:  make(map[modules.ModuleId]*Queue),
		response: make(map[modules.ModuleId]*Queue),
	}
}

// CreateAll idempotently creates both local Queue handles for every
// known ModuleId. Called by the Supervisor at startup and by each worker
// process; it neither binds nor removes any socket file, so a worker
// calling it leaves the sockets other processes have already bound in
// place. Binding is each queue's own owning process's job, done lazily
// by Listen (a worker that never calls Listen for a module it doesn't
// own never binds that module's socket); stale socket files are cleared
// by UnlinkAll and by Listen's own bind.
func (r *Registry) CreateAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.created {
		return nil
	}
	for _, m := range modules.All {
		if _, ok := r.inbound[m]; !ok {
			q := NewQueue()
			q.name = m.InboundChannelName()
			r.inbound[m] = q
		}
		if _, ok := r.response[m]; !ok {
			q := NewQueue()
			q.name = m.ResponseChannelName()
			r.response[m] = q
		}
	}
	r.created = true
	return nil
}

// UnlinkAll closes every locally-bound queue (releasing any blocked
// readers/writers and removing its socket file) and additionally
// clears every known module's socket path, in case this process never
// held a local Queue for it. Called by the Supervisor at startup (to
// clear stale state) and at shutdown.
func (r *Registry) UnlinkAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.inbound {
		q.Close()
	}
	for _, q := range r.response {
		q.Close()
	}
	r.inbound = make(map[modules.ModuleId]*Queue)
	r.response = make(map[modules.ModuleId]*Queue)
	r.created = false

	for _, m := range modules.All {
		_ = os.Remove(socketPath(m.InboundChannelName()))
		_ = os.Remove(socketPath(m.ResponseChannelName()))
	}
	return nil
}

// Open returns the local handle for owner's queue in the given family,
// without binding its socket. Used internally by Listen (which also
// binds) and by tests that only need the local heap's bookkeeping.
func (r *Registry) Open(owner modules.ModuleId, family Family) (*Queue, error) {
	if !owner.Valid() {
		return nil, ErrUnknownModule
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var q *Queue
	var ok bool
	switch family {
	case Inbound:
		q, ok = r.inbound[owner]
	case Response:
		q, ok = r.response[owner]
	}
	if !ok {
		return nil, ErrUnknownModule
	}
	return q, nil
}

// Listen returns owner's local queue handle for family, having bound
// its real OS socket so datagrams posted by any process (via Send)
// are drained into its local bounded heap. Call this only for the
// module this process actually is — it is what makes that queue
// receivable from other, separately forked worker processes.
func (r *Registry) Listen(owner modules.ModuleId, family Family) (*Queue, error) {
	q, err := r.Open(owner, family)
	if err != nil {
		return nil, err
	}
	if err := q.ensureListening(); err != nil {
		return nil, err
	}
	return q, nil
}

// Send delivers env to recipient's family queue over the fabric's real
// OS transport, regardless of whether recipient's Listen call (and
// thus its socket) lives in this process or a separately forked one.
func (r *Registry) Send(ctx context.Context, recipient modules.ModuleId, family Family, env wire.Envelope) error {
	if !recipient.Valid() {
		return ErrUnknownModule
	}
	var name string
	switch family {
	case Inbound:
		name = recipient.InboundChannelName()
	case Response:
		name = recipient.ResponseChannelName()
	}
	return sendDatagram(ctx, name, env)
}
