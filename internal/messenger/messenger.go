// Package messenger implements the Messenger Core: correlated
// request/response and fire-and-forget command delivery over the
// Channel Registry and Payload Transport, plus the settings broadcast
// protocol built on top of it.
package messenger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	"github.com/adrianghc/hems/internal/wire"
	pionlog "github.com/pion/logging"
)

// DefaultSendTimeout matches the original fabric's default request
// timeout, used by callers that don't have a more specific deadline in
// mind (e.g. the settings protocol's doubled timeout is derived from
// this).
const DefaultSendTimeout = 5 * time.Second

// Messenger is the per-process handle to the fabric: it posts outbound
// command/request/response envelopes and, once Listen is called, runs
// the two inbound dispatch loops for its owner's queues.
type Messenger struct {
	owner    modules.ModuleId
	testMode bool

	registry *channels.Registry
	store    segment.Store
	log      pionlog.LeveledLogger

	idCounter uint32 // atomic

	corr *correlationTable

	startGate chan struct{}
	startOnce sync.Once

	settingsMu          sync.Mutex
	currentSettings     settingspkg.Settings
	proposedSettings    settingspkg.Settings
	settingsInitialized bool

	tasksMu  sync.Mutex
	tasks    map[uint64]struct{}
	nextTask uint64
	draining bool

	loopsWG sync.WaitGroup
}

// Config bundles a Messenger's construction parameters.
type Config struct {
	Owner    modules.ModuleId
	Registry *channels.Registry
	Store    segment.Store
	Log      pionlog.LeveledLogger
	TestMode bool
}

// New constructs a Messenger for owner. It does not start dispatching
// until Listen is called.
func New(cfg Config) *Messenger {
	return &Messenger{
		owner:     cfg.Owner,
		testMode:  cfg.TestMode,
		registry:  cfg.Registry,
		store:     cfg.Store,
		log:       cfg.Log,
		corr:      newCorrelationTable(),
		startGate: make(chan struct{}),
		tasks:     make(map[uint64]struct{}),
	}
}

// Owner returns the ModuleId this Messenger was constructed for.
func (m *Messenger) Owner() modules.ModuleId { return m.owner }

// nextID returns the next monotone per-sender id, skipping the reserved
// sentinel 0.
func (m *Messenger) nextID() uint32 {
	for {
		id := atomic.AddUint32(&m.idCounter, 1)
		if id != 0 {
			return id
		}
	}
}

// Send posts subtype to recipient carrying payload.
//
// If timeoutMs == 0, the envelope is posted as a Command and Send
// returns immediately with the outcome of the queue post; a queue
// failure surfaces as (int32(MQError), ErrMQError).
//
// If timeoutMs > 0, the envelope is posted as a Request; Send blocks
// until a matching Response arrives or the deadline elapses. On
// success it returns the handler's response code and bytes. On
// deadline it returns (int32(SendTimeout), ErrSendTimeout) and any
// later response for this id is discarded without blocking the caller.
//
// subtype must be non-negative; reserved (negative) subtypes are
// rejected with ErrNegativeSubtype unless sent via the internal
// sendReserved path used by the settings protocol.
func (m *Messenger) Send(ctx context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error) {
	if subtype < 0 {
		return int32(NegativeSubtype), nil, ErrNegativeSubtype
	}
	return m.send(ctx, timeoutMs, subtype, recipient, payload)
}

// sendReserved bypasses the non-negative subtype check; used only by
// internal callers (the settings protocol).
func (m *Messenger) sendReserved(ctx context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error) {
	return m.send(ctx, timeoutMs, subtype, recipient, payload)
}

func (m *Messenger) send(ctx context.Context, timeoutMs uint32, subtype int32, recipient modules.ModuleId, payload []byte) (int32, []byte, error) {
	id := m.nextID()
	name := segment.NewName()
	if err := m.store.Write(name, payload); err != nil {
		return int32(MQError), nil, wrapMQ(err)
	}

	kind := wire.Request
	if timeoutMs == 0 {
		kind = wire.Command
	}

	env := wire.Envelope{
		Kind:          kind,
		ID:            id,
		Sender:        m.owner,
		SubtypeOrCode: subtype,
		SegmentName:   name,
		PayloadLen:    len(payload),
	}

	if kind == wire.Command {
		if err := m.registry.Send(ctx, recipient, channels.Inbound, env); err != nil {
			_ = m.store.Destroy(name)
			return int32(MQError), nil, wrapMQ(err)
		}
		return 0, nil, nil
	}

	resultCh := m.corr.interest(id)

	if err := m.registry.Send(ctx, recipient, channels.Inbound, env); err != nil {
		m.corr.forget(id)
		_ = m.store.Destroy(name)
		return int32(MQError), nil, wrapMQ(err)
	}

	deadline := time.Duration(timeoutMs) * time.Millisecond
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		data, rerr := m.store.Read(res.segmentName)
		_ = m.store.Destroy(res.segmentName)
		if rerr != nil {
			return res.code, nil, nil
		}
		return res.code, data, nil
	case <-timer.C:
		m.corr.forget(id)
		return int32(SendTimeout), nil, ErrSendTimeout
	case <-ctx.Done():
		m.corr.forget(id)
		return int32(SendTimeout), nil, ctx.Err()
	}
}

// SendResponse posts a Response envelope matching the request id,
// carrying code and payload. It does not wait and has no timeout.
func (m *Messenger) SendResponse(ctx context.Context, id uint32, code int32, recipient modules.ModuleId, payload []byte) error {
	name := segment.NewName()
	if err := m.store.Write(name, payload); err != nil {
		return wrapMQ(err)
	}
	env := wire.Envelope{
		Kind:          wire.Response,
		ID:            id,
		Sender:        m.owner,
		SubtypeOrCode: code,
		SegmentName:   name,
		PayloadLen:    len(payload),
	}
	if err := m.registry.Send(ctx, recipient, channels.Response, env); err != nil {
		_ = m.store.Destroy(name)
		return wrapMQ(err)
	}
	return nil
}

// StartHandlers releases the gate that the dispatch loops wait on
// before invoking any handler. Workers call this at the end of their
// constructor, per the Module Scaffold's discipline of never calling a
// handler against a half-constructed worker.
func (m *Messenger) StartHandlers() {
	m.startOnce.Do(func() { close(m.startGate) })
}

func (m *Messenger) waitForStart(ctx context.Context) error {
	select {
	case <-m.startGate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func wrapMQ(err error) error {
	if err == nil {
		return ErrMQError
	}
	return err
}
