package channels

import (
	"context"
	"testing"
	"time"

	"github.com/adrianghc/hems/internal/modules"
	"github.com/adrianghc/hems/internal/wire"
)

func TestCreateAllIdempotent(t *testing.T) {
	r := NewRegistry()
	if err := r.CreateAll(); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	if err := r.CreateAll(); err != nil {
		t.Fatalf("second CreateAll: %v", err)
	}
	q, err := r.Open(modules.Storage, Inbound)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if q == nil {
		t.Fatal("expected a queue")
	}
}

func TestOpenUnknownModule(t *testing.T) {
	r := NewRegistry()
	_ = r.CreateAll()
	if _, err := r.Open(modules.ModuleId(99), Inbound); err != ErrUnknownModule {
		t.Fatalf("Open unknown module: got %v, want ErrUnknownModule", err)
	}
}

func TestPriorityOrderingAcrossQueue(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	low := wire.Envelope{Kind: wire.Request, SubtypeOrCode: 2}
	high := wire.Envelope{Kind: wire.Command, SubtypeOrCode: wire.EndListenLoop}
	mid := wire.Envelope{Kind: wire.Request, SubtypeOrCode: wire.SettingsCheck}

	_ = q.Post(ctx, low)
	_ = q.Post(ctx, mid)
	_ = q.Post(ctx, high)

	first, _ := q.Receive(ctx)
	if first.SubtypeOrCode != wire.EndListenLoop {
		t.Fatalf("first = %v, want EndListenLoop", first)
	}
	second, _ := q.Receive(ctx)
	if second.SubtypeOrCode != wire.SettingsCheck {
		t.Fatalf("second = %v, want SettingsCheck", second)
	}
	third, _ := q.Receive(ctx)
	if third.SubtypeOrCode != 2 {
		t.Fatalf("third = %v, want subtype 2", third)
	}
}

func TestFIFOWithinSamePriority(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	for i := int32(0); i < 3; i++ {
		_ = q.Post(ctx, wire.Envelope{Kind: wire.Request, SubtypeOrCode: i})
	}
	for i := int32(0); i < 3; i++ {
		e, _ := q.Receive(ctx)
		if e.SubtypeOrCode != i {
			t.Fatalf("receive order broken: got %d, want %d", e.SubtypeOrCode, i)
		}
	}
}

func TestPostBlocksWhenFull(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	for i := 0; i < Capacity; i++ {
		if err := q.Post(ctx, wire.Envelope{Kind: wire.Command, SubtypeOrCode: int32(i)}); err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}

	postCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Post(postCtx, wire.Envelope{Kind: wire.Command, SubtypeOrCode: 99})
	if err == nil {
		t.Fatal("expected Post to block and time out on a full queue")
	}
}

func TestCloseUnblocksReceivers(t *testing.T) {
	q := NewQueue()
	done := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("Receive after Close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}
