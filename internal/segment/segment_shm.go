//go:build linux

package segment

import (
	"hash/fnv"
	"sync"

	"golang.org/x/sys/unix"
)

// shmStore implements Store over Linux SysV shared memory segments,
// matching the external interface §6 of the fabric ("shared-memory
// segments ... created on demand, destroyed by receiver"). Segment
// names are ASCII strings; SysV shmget needs an integer key, so the
// name is hashed into one. Collisions between two live segment names
// hashing to the same key are rejected by IPC_EXCL and surfaced to the
// caller as a transient error, same as a random-name collision would be.
type shmStore struct {
	mu  sync.Mutex
	ids map[string]int // name -> shmid, for tracking/UnlinkAll
}

// NewStore returns the platform Store implementation.
func NewStore() Store {
	return &shmStore{ids: make(map[string]int)}
}

func keyFor(name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	// Keep the key in the positive int32 range; SysV keys are ints.
	return int(h.Sum32() & 0x7fffffff)
}

func (s *shmStore) Write(name string, data []byte) error {
	size := sizeFor(len(data))
	key := keyFor(name)

	id, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|0o600)
	if err != nil {
		// Segment may already exist from a previous write to the same
		// name (the receiver hasn't consumed it yet); re-open it.
		id, err = unix.SysvShmGet(key, size, 0o600)
		if err != nil {
			return wrapf("write", name, err)
		}
	}

	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return wrapf("write", name, err)
	}
	defer func() { _ = unix.SysvShmDetach(mem) }()

	copy(mem, data)

	s.mu.Lock()
	s.ids[name] = id
	s.mu.Unlock()
	return nil
}

func (s *shmStore) Read(name string) ([]byte, error) {
	key := keyFor(name)
	id, err := unix.SysvShmGet(key, 0, 0o600)
	if err != nil {
		return nil, wrapf("read", name, ErrNotFound)
	}

	mem, err := unix.SysvShmAttach(id, 0, unix.SHM_RDONLY)
	if err != nil {
		return nil, wrapf("read", name, err)
	}
	defer func() { _ = unix.SysvShmDetach(mem) }()

	out := make([]byte, len(mem))
	copy(out, mem)
	return out, nil
}

func (s *shmStore) Destroy(name string) error {
	key := keyFor(name)
	id, err := unix.SysvShmGet(key, 0, 0o600)
	if err != nil {
		return wrapf("destroy", name, ErrNotFound)
	}
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return wrapf("destroy", name, err)
	}

	s.mu.Lock()
	delete(s.ids, name)
	s.mu.Unlock()
	return nil
}

// UnlinkAll removes every segment this store has written and still
// tracks. Segments written by other processes or orphaned by a crashed
// process are absent from s.ids and are not removed.
func (s *shmStore) UnlinkAll() error {
	s.mu.Lock()
	ids := make(map[string]int, len(s.ids))
	for k, v := range s.ids {
		ids[k] = v
	}
	s.ids = make(map[string]int)
	s.mu.Unlock()

	var firstErr error
	for name := range ids {
		if err := s.Destroy(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
