package exitcore

import (
	"context"
	"sync"
)

var (
	defaultOnce  sync.Once
	defaultLatch *Latch
)

// Default returns the process-wide default Latch, constructing it on
// first use. cmd/ binaries that don't need an explicit Latch threaded
// through their constructors (internal/launcher does, for testability)
// can use this instead of calling New themselves.
func Default() *Latch {
	defaultOnce.Do(func() { defaultLatch = New() })
	return defaultLatch
}

// DefaultContext is shorthand for Default().Context(context.Background()).
func DefaultContext() (context.Context, context.CancelFunc) {
	return Default().Context(context.Background())
}
