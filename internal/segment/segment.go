// Package segment implements the fabric's payload transport: named
// shared segments that carry user payloads referenced by an Envelope's
// SegmentName field.
package segment

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Read/Destroy when the named segment does not
// exist, e.g. because it was already destroyed or never created
// (a stale or invalid segment reference).
var ErrNotFound = errors.New("segment: not found")

// Store allocates, reads, writes and destroys named payload segments.
// Segments are sized to hold at least one byte so that empty payloads
// have a valid backing segment.
type Store interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
	Destroy(name string) error
	// UnlinkAll removes every segment currently tracked by the store,
	// i.e. the ones written through this Store value and not yet
	// destroyed by it; the Supervisor calls it during shutdown. Segments
	// written by other processes, or orphaned by a prior crash, are not
	// tracked and are not removed.
	UnlinkAll() error
}

// NewName returns a fresh random segment name of length NSeg-1 over
// [0-9A-Za-z]. Names are allocated via a UUID rather than a hand-rolled
// PRNG; on the astronomically unlikely event of a collision the caller
// simply allocates again.
func NewName() string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	const length = 23 // NSeg - 1

	id := uuid.New()
	buf := make([]byte, length)
	// Expand the 16 bytes of randomness from the UUID across the target
	// alphabet; if more entropy is needed pull extra random bytes.
	src := id[:]
	if length > len(src) {
		extra := make([]byte, length-len(src))
		_, _ = rand.Read(extra)
		src = append(src, extra...)
	}
	for i := 0; i < length; i++ {
		buf[i] = alphabet[int(src[i])%len(alphabet)]
	}
	return string(buf)
}

func sizeFor(payloadLen int) int {
	if payloadLen < 1 {
		return 1
	}
	return payloadLen + 1
}

func wrapf(op, name string, err error) error {
	return fmt.Errorf("segment: %s %q: %w", op, name, err)
}
