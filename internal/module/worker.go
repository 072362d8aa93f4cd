// Package module implements the Module Scaffold: the common shape every
// worker process (Storage, Collection, Inference, Automation, Training,
// UI) builds itself from — a handler table, a start gate, and the
// settings handshake every worker must answer.
package module

import (
	"context"
	"fmt"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/messenger"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	"github.com/adrianghc/hems/internal/wire"
	pionlog "github.com/pion/logging"
)

// mandatorySubtypes is the set of handlers every worker must register
// before Start, unless it opted into TestMode.
var mandatorySubtypes = []int32{wire.SettingsInit, wire.SettingsCheck, wire.SettingsCommit}

// Options configures a Worker's optional, CLI-derived behavior.
type Options struct {
	// Debug records a worker's --debug flag. Worker stores it but does
	// not read it: no remote logger is constructed here, and log lines go
	// only to the logger passed to New.
	Debug bool
	// TestMode disables the mandatory settings-handler requirement and
	// the pre-init subtype gate, for package tests that don't want to
	// stand up the full settings handshake.
	TestMode bool
}

// Worker is the scaffold every worker main() builds: register handlers
// against it, then Start it once the process is otherwise fully
// constructed.
type Worker struct {
	owner    modules.ModuleId
	opts     Options
	m        *messenger.Messenger
	handlers messenger.HandlerMap
	preInit  []int32
	started  bool
}

// New constructs a Worker bound to owner's queues in registry, using
// store for payload transport and log (which may be nil) for
// diagnostics.
func New(owner modules.ModuleId, registry *channels.Registry, store segment.Store, log pionlog.LeveledLogger, opts Options) *Worker {
	m := messenger.New(messenger.Config{
		Owner:    owner,
		Registry: registry,
		Store:    store,
		Log:      log,
		TestMode: opts.TestMode,
	})
	return &Worker{
		owner:    owner,
		opts:     opts,
		m:        m,
		handlers: make(messenger.HandlerMap),
	}
}

// Messenger returns the underlying Messenger, for callers that need to
// Send or query settings state directly.
func (w *Worker) Messenger() *messenger.Messenger { return w.m }

// RegisterHandler binds h to subtype. Calling this after Start panics;
// a worker's handler table is fixed once it starts dispatching.
func (w *Worker) RegisterHandler(subtype int32, h messenger.Handler) {
	if w.started {
		panic("module: RegisterHandler called after Start")
	}
	w.handlers[subtype] = h
}

// AllowBeforeInit whitelists subtypes so they are dispatched even
// before SETTINGS_INIT completes (SETTINGS_INIT itself is always
// implicitly whitelisted).
func (w *Worker) AllowBeforeInit(subtypes ...int32) {
	w.preInit = append(w.preInit, subtypes...)
}

// Start validates that every mandatory handler is registered (unless
// TestMode), begins dispatching, and releases the handler start gate.
// It returns once both dispatch loops are running; call Wait to block
// until they exit.
func (w *Worker) Start(ctx context.Context) error {
	if !w.opts.TestMode {
		for _, s := range mandatorySubtypes {
			if _, ok := w.handlers[s]; !ok {
				return fmt.Errorf("module: worker %s missing mandatory handler for subtype %d", w.owner, s)
			}
		}
	}
	if err := w.m.Listen(ctx, w.handlers, w.preInit); err != nil {
		return err
	}
	w.started = true
	w.m.StartHandlers()
	return nil
}

// Wait blocks until both of the Worker's dispatch loops have exited.
func (w *Worker) Wait() { w.m.Wait() }

// Stop posts the end-of-listen terminators for this worker's own
// queues and waits for its loops to drain and exit.
func (w *Worker) Stop(ctx context.Context) error {
	if err := w.m.EndListen(ctx); err != nil {
		return err
	}
	w.m.Wait()
	return nil
}
