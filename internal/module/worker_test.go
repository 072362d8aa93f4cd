package module

import (
	"context"
	"testing"

	"github.com/adrianghc/hems/internal/channels"
	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/segment"
	"github.com/adrianghc/hems/internal/wire"
)

func newRegistry(t *testing.T) *channels.Registry {
	t.Helper()
	reg := channels.NewRegistry()
	if err := reg.CreateAll(); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	return reg
}

func TestStartFailsWithoutMandatoryHandlers(t *testing.T) {
	reg := newRegistry(t)
	store := segment.NewStore()
	w := New(modules.Storage, reg, store, nil, Options{})

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded without mandatory settings handlers registered")
	}
}

func TestStartSucceedsInTestMode(t *testing.T) {
	reg := newRegistry(t)
	store := segment.NewStore()
	w := New(modules.Storage, reg, store, nil, Options{TestMode: true})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = w.Stop(context.Background())
}

func TestRegisterHandlerAfterStartPanics(t *testing.T) {
	reg := newRegistry(t)
	store := segment.NewStore()
	w := New(modules.Storage, reg, store, nil, Options{TestMode: true})
	_ = w.Start(context.Background())
	defer func() {
		if recover() == nil {
			t.Fatal("expected RegisterHandler after Start to panic")
		}
		_ = w.Stop(context.Background())
	}()
	w.RegisterHandler(1, func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil })
}

func TestStartSucceedsWithMandatoryHandlers(t *testing.T) {
	reg := newRegistry(t)
	store := segment.NewStore()
	w := New(modules.Storage, reg, store, nil, Options{})

	noop := func(_ context.Context, _ []byte, _ *[]byte) (int32, error) { return 0, nil }
	w.RegisterHandler(wire.SettingsInit, noop)
	w.RegisterHandler(wire.SettingsCheck, noop)
	w.RegisterHandler(wire.SettingsCommit, noop)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = w.Stop(context.Background())
}
