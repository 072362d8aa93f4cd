package channels

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Post/Receive once a Queue has been closed.
var ErrClosed = errors.New("channels: queue closed")

// ErrUnknownModule is returned by Open, Listen and Send when asked for a
// module outside the fixed ModuleId set, or by Open and Listen before
// CreateAll has created that module's queues.
var ErrUnknownModule = errors.New("channels: unknown module")

func wrapSocket(name string, err error) error {
	return fmt.Errorf("channels: socket %q: %w", name, err)
}
