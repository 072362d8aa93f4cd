package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	settingspkg "github.com/adrianghc/hems/internal/settings"
	"github.com/adrianghc/hems/internal/wire"
)

// workerSettingsHandlers wires a worker Messenger's SETTINGS_CHECK and
// SETTINGS_COMMIT handlers, tracking how many commits actually applied.
func workerSettingsHandlers(checkCode int32, applied *int) HandlerMap {
	return HandlerMap{
		wire.SettingsCheck: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
			return checkCode, nil
		},
		wire.SettingsCommit: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
			*applied++
			return 0, nil
		},
	}
}

func newSupervisorAndWorkers(t *testing.T) (*Messenger, *channels.Registry, segment.Store) {
	t.Helper()
	reg := channels.NewRegistry()
	if err := reg.CreateAll(); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	store := segment.NewStore()
	sup := newTestMessenger(modules.Supervisor, reg, store)
	// BroadcastSettings/BroadcastSettingsInit block on their own
	// correlation table, which only a running response loop ever
	// notifies; the Supervisor must Listen on its own queues just like
	// any worker to receive the SETTINGS_CHECK/INIT responses it's
	// waiting on.
	if err := sup.Listen(context.Background(), HandlerMap{}, nil); err != nil {
		t.Fatalf("sup.Listen: %v", err)
	}
	sup.StartHandlers()
	return sup, reg, store
}

// TestBroadcastSettingsUnanimousSuccess covers scenario S3: every worker
// approves SETTINGS_CHECK, so SETTINGS_COMMIT is applied everywhere.
func TestBroadcastSettingsUnanimousSuccess(t *testing.T) {
	sup, reg, store := newSupervisorAndWorkers(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(map[modules.ModuleId]*int)
	for _, w := range modules.Workers() {
		n := new(int)
		applied[w] = n
		wm := newTestMessenger(w, reg, store)
		if err := wm.Listen(ctx, workerSettingsHandlers(int32(settingspkg.Success), n), nil); err != nil {
			t.Fatalf("Listen(%v): %v", w, err)
		}
		wm.StartHandlers()
	}

	code, err := sup.BroadcastSettings(ctx, settingspkg.Settings{Version: 2, Values: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("BroadcastSettings: %v", err)
	}
	if code != settingspkg.Success {
		t.Fatalf("code = %v, want Success", code)
	}

	// Commits are fire-and-forget; give the worker goroutines a moment.
	waitForAll(t, applied)
}

// TestBroadcastSettingsRejected covers scenario S4: one worker rejects
// SETTINGS_CHECK, so no SETTINGS_COMMIT is ever sent.
func TestBroadcastSettingsRejected(t *testing.T) {
	sup, reg, store := newSupervisorAndWorkers(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := modules.Workers()
	applied := make(map[modules.ModuleId]*int)
	for i, w := range workers {
		n := new(int)
		applied[w] = n
		code := int32(settingspkg.Success)
		if i == 0 {
			code = int32(settingspkg.Invalid)
		}
		wm := newTestMessenger(w, reg, store)
		if err := wm.Listen(ctx, workerSettingsHandlers(code, n), nil); err != nil {
			t.Fatalf("Listen(%v): %v", w, err)
		}
		wm.StartHandlers()
	}

	code, err := sup.BroadcastSettings(ctx, settingspkg.Settings{Version: 3})
	if err != nil {
		t.Fatalf("BroadcastSettings: %v", err)
	}
	if code != settingspkg.Invalid {
		t.Fatalf("code = %v, want Invalid", code)
	}
	for w, n := range applied {
		if *n != 0 {
			t.Fatalf("worker %v applied a commit that should never have been sent", w)
		}
	}
}

// TestBroadcastSettingsInitCallerRestriction covers scenario S5: only the
// Supervisor may call BroadcastSettingsInit.
func TestBroadcastSettingsInitCallerRestriction(t *testing.T) {
	reg := channels.NewRegistry()
	_ = reg.CreateAll()
	store := segment.NewStore()
	notSupervisor := newTestMessenger(modules.Collection, reg, store)

	code, err := notSupervisor.BroadcastSettingsInit(context.Background(), settingspkg.Settings{})
	if err != ErrInvalidCaller {
		t.Fatalf("err = %v, want ErrInvalidCaller", err)
	}
	if code != settingspkg.InvalidCaller {
		t.Fatalf("code = %v, want InvalidCaller", code)
	}
}

func TestBroadcastSettingsInitSuccess(t *testing.T) {
	sup, reg, store := newSupervisorAndWorkers(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, w := range modules.Workers() {
		n := new(int)
		wm := newTestMessenger(w, reg, store)
		handlers := HandlerMap{
			wire.SettingsInit: func(_ context.Context, _ []byte, _ *[]byte) (int32, error) {
				*n++
				return 0, nil
			},
		}
		if err := wm.Listen(ctx, handlers, nil); err != nil {
			t.Fatalf("Listen(%v): %v", w, err)
		}
		wm.StartHandlers()
	}

	s := settingspkg.Settings{Version: 1, Values: map[string]string{"a": "b"}}
	code, err := sup.BroadcastSettingsInit(ctx, s)
	if err != nil {
		t.Fatalf("BroadcastSettingsInit: %v", err)
	}
	if code != settingspkg.Success {
		t.Fatalf("code = %v, want Success", code)
	}
	if !sup.SettingsInitialized() {
		t.Fatal("SettingsInitialized() = false after successful init broadcast")
	}
	if !sup.CurrentSettings().Equal(s) {
		t.Fatalf("CurrentSettings() = %+v, want %+v", sup.CurrentSettings(), s)
	}
}

func waitForAll(t *testing.T, applied map[modules.ModuleId]*int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		allDone := true
		for _, n := range applied {
			if *n == 0 {
				allDone = false
				break
			}
		}
		if allDone {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("not all workers applied the committed settings in time")
}
