package channels

import (
	"container/heap"
	"context"
	"net"
	"os"
	"sync"

	"github.com/adrianghc/hems/internal/wire"
)

// Capacity is the bounded size of each queue, per spec §4.1.
const Capacity = 10

// item is one entry in a Queue's priority heap.
type item struct {
	env  wire.Envelope
	prio int
	seq  uint64 // monotone, breaks ties FIFO within equal priority
}

// priorityHeap is a container/heap.Interface ordering by priority
// (higher first) and then by sequence number (lower, i.e. older, first).
type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio > h[j].prio
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)         { *h = append(*h, x.(*item)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is a bounded, priority-aware, FIFO-within-priority message
// queue. A full queue blocks Post until capacity frees up or the
// context is cancelled/deadline elapses; higher-priority envelopes
// posted while the queue is full still have to wait for capacity like
// everyone else, but once capacity exists they are handed to the next
// Receive ahead of lower-priority envelopes already buffered.
type Queue struct {
	name string // socket name; empty for a queue created directly via NewQueue

	mu     sync.Mutex
	cond   *sync.Cond
	items  priorityHeap
	seq    uint64
	closed bool

	listenOnce sync.Once
	listenErr  error
	conn       *net.UnixConn
}

// NewQueue creates an empty bounded queue with no real OS backing; it
// is addressable only in-process (by direct Post/Receive calls against
// this Go value), which is exactly what this package's own unit tests
// exercise. Registry-vended queues additionally bind a real socket via
// ensureListening so other processes can reach them by name.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.items)
	return q
}

// ensureListening binds q's named Unix domain datagram socket (if not
// already bound) and starts draining inbound datagrams into q's local
// bounded heap. Only the process that owns this queue's ModuleId
// should call this: it is what makes the queue reachable from other
// processes by name, mirroring a real worker's Messenger opening its
// own inbound/response queues on Listen.
func (q *Queue) ensureListening() error {
	q.listenOnce.Do(func() {
		q.listenErr = q.bind()
	})
	return q.listenErr
}

func (q *Queue) bind() error {
	path := socketPath(q.name)
	if err := os.MkdirAll(SocketDir, 0o700); err != nil {
		return err
	}
	_ = os.Remove(path) // clear a stale socket left by a crashed prior run

	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return wrapSocket(q.name, err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return wrapSocket(q.name, err)
	}

	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()

	go q.drain(conn)
	return nil
}

// drain reads datagrams off conn and pushes each decoded Envelope into
// q's local heap via Post, which blocks while the heap is at Capacity.
// That blocking is deliberate: stalling the drain loop leaves arriving
// datagrams queued in the kernel's socket receive buffer, which is
// what gives Registry.Send on the sending side real backpressure once this
// queue is full, instead of silently dropping overflow.
func (q *Queue) drain(conn *net.UnixConn) {
	buf := make([]byte, maxDatagramBytes)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		var env wire.Envelope
		if derr := wire.Deserialize(buf[:n], &env); derr != nil {
			continue
		}
		_ = q.Post(context.Background(), env)
	}
}

// Post enqueues env, blocking if the queue is at Capacity until space
// frees up, ctx is done, or the queue is closed.
func (q *Queue) Post(ctx context.Context, env wire.Envelope) error {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= Capacity && !q.closed {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		q.cond.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.seq++
	heap.Push(&q.items, &item{env: env, prio: env.Priority(), seq: q.seq})
	q.cond.Broadcast()
	return nil
}

// Receive blocks until an envelope is available, ctx is done, or the
// queue is closed, then returns the highest-priority (oldest among
// ties) envelope.
func (q *Queue) Receive(ctx context.Context) (wire.Envelope, error) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		if ctx != nil && ctx.Err() != nil {
			return wire.Envelope{}, ctx.Err()
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 && q.closed {
		return wire.Envelope{}, ErrClosed
	}

	it := heap.Pop(&q.items).(*item)
	q.cond.Broadcast()
	return it.env, nil
}

// Close marks the queue closed, waking any blocked Post/Receive
// callers, and closes its listening socket (if bound), unblocking the
// drain loop's Read and releasing the socket file.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	conn := q.conn
	q.conn = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		_ = os.Remove(socketPath(q.name))
	}
}
