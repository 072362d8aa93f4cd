// Package launcher implements the Supervisor: the one process that
// creates the Channel Registry, forks every worker, drives the
// settings handshake, and tears everything down in response to a
// signal, a worker's exit, or a fatal internal error.
package launcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/exitcore"
	"github.com/adrianghc/hems/internal/messenger"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	pionlog "github.com/pion/logging"
	"golang.org/x/sync/semaphore"
)

// WorkerSpec describes how to fork one worker process.
type WorkerSpec struct {
	Module modules.ModuleId
	Path   string
	Args   []string
}

// Config bundles a Supervisor's construction parameters.
type Config struct {
	Workers  []WorkerSpec
	Registry *channels.Registry
	Store    segment.Store
	Log      pionlog.LeveledLogger
	Latch    *exitcore.Latch

	// Debug, when true, skips forking real child processes: Run drives
	// the settings handshake and dispatch loops against whatever
	// in-process Messengers the caller has separately started (used by
	// package tests and by a worker-in-one-process development mode).
	Debug bool

	// ShutdownGrace bounds how long Shutdown waits for workers to exit
	// after SIGTERM before escalating to SIGKILL. Zero means 5s.
	ShutdownGrace time.Duration
}

// Supervisor drives the fabric's single controlling process.
type Supervisor struct {
	cfg Config
	m   *messenger.Messenger

	stateMu sync.Mutex
	state   State

	mu        sync.Mutex
	records   []*workerRecord
	liveCount atomic.Int32
	sem       *semaphore.Weighted

	exitCode atomic.Int32

	draining sync.Once
}

// New constructs a Supervisor. It does not fork or dispatch until Run
// is called.
func New(cfg Config) *Supervisor {
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	n := int64(len(cfg.Workers))
	s := &Supervisor{
		cfg:   cfg,
		state: StateConstructing,
		sem:   semaphore.NewWeighted(n),
	}
	s.liveCount.Store(int32(n))
	if n > 0 {
		// Consume every permit up front: each watcher hands one back
		// via Release(1) when its child exits, so the semaphore's
		// available weight tracks "workers still live" run in reverse —
		// Shutdown re-acquires all n permits to wait for it to reach
		// zero.
		_ = s.sem.Acquire(context.Background(), n)
	}
	s.m = messenger.New(messenger.Config{
		Owner:    modules.Supervisor,
		Registry: cfg.Registry,
		Store:    cfg.Store,
		Log:      cfg.Log,
	})
	return s
}

// Messenger returns the Supervisor's own Messenger, e.g. so callers can
// drive BroadcastSettings directly after Run has reached StateRunning.
func (s *Supervisor) Messenger() *messenger.Messenger { return s.m }

func (s *Supervisor) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// State returns the Supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Run drives the Supervisor through its full lifecycle: unlink/create
// queues, start its own handler loops, fork workers and spawn their
// watchers, initialize settings, then block until the exit latch
// fires, at which point it tears everything down and returns the
// merged exit status (0 if every worker exited cleanly, otherwise the
// first abnormal worker's exit code).
func (s *Supervisor) Run(ctx context.Context, initialSettings InitialSettingsFunc) (int, error) {
	if err := s.cfg.Registry.UnlinkAll(); err != nil {
		return 1, err
	}
	if err := s.cfg.Registry.CreateAll(); err != nil {
		return 1, err
	}

	if err := s.m.Listen(ctx, s.supervisorHandlers(), nil); err != nil {
		return 1, err
	}
	s.setState(StateHandlersLive)

	if !s.cfg.Debug {
		s.forkAll()
	}

	settingsErrCh := make(chan error, 1)
	go func() {
		settingsErrCh <- s.initSettings(ctx, initialSettings)
	}()

	s.m.StartHandlers()

	select {
	case err := <-settingsErrCh:
		if err != nil {
			s.cfg.Latch.Trigger()
		} else {
			s.setState(StateRunning)
		}
	case <-s.cfg.Latch.Done():
	}

	<-s.cfg.Latch.Done()
	return s.shutdown(ctx)
}

// InitialSettingsFunc supplies the settings value to broadcast during
// SETTINGS_INIT, typically by asking the storage worker for whatever
// it has persisted.
type InitialSettingsFunc func(ctx context.Context) (settingspkg.Settings, error)
