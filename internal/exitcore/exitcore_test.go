package exitcore

import (
	"context"
	"testing"
	"time"
)

func TestTriggerFiresOnce(t *testing.T) {
	l := New()
	defer l.Stop()

	if l.Fired() {
		t.Fatal("Fired() = true before Trigger")
	}
	l.Trigger()
	l.Trigger() // idempotent

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never closed after Trigger")
	}
	if !l.Fired() {
		t.Fatal("Fired() = false after Trigger")
	}
	if l.Reason() != "requested" {
		t.Fatalf("Reason() = %q, want %q", l.Reason(), "requested")
	}
}

func TestContextCanceledOnFire(t *testing.T) {
	l := New()
	defer l.Stop()

	ctx, cancel := l.Context(context.Background())
	defer cancel()

	l.Trigger()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("derived context was never canceled")
	}
}

func TestContextCanceledIndependently(t *testing.T) {
	l := New()
	defer l.Stop()

	ctx, cancel := l.Context(context.Background())
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("derived context was never canceled by its own cancel func")
	}
	if l.Fired() {
		t.Fatal("canceling the derived context must not fire the latch itself")
	}
}
