package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by [FrameQueue.Pop] once the queue has been
// closed and every remaining entry has been consumed.
var ErrQueueClosed = errors.New("audio: frame queue closed")

// Entry is one element of a [FrameQueue]: either a real frame or the close
// sentinel. The sentinel carries no audio.
type Entry struct {
	Frame AudioFrame
	Close bool
}

// FrameQueue is an unbounded, goroutine-safe FIFO of audio frames with a
// reserved close sentinel. Producers never block. Consumers block in [Pop]
// until an entry is available, or drain without blocking via [TryPop].
//
// At most one sentinel is pending at any time: [PushSentinel] is a no-op while
// an unconsumed sentinel is still queued.
type FrameQueue struct {
	mu      sync.Mutex
	entries []Entry
	pending bool // an unconsumed sentinel is queued
	closed  bool

	// ready holds a token while entries is non-empty or the queue is closed.
	ready chan struct{}
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{ready: make(chan struct{}, 1)}
}

// Push appends a frame. Frames pushed after [FrameQueue.Close] are dropped
// and Push reports false.
func (q *FrameQueue) Push(f AudioFrame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.entries = append(q.entries, Entry{Frame: f})
	q.signal()
	return true
}

// PushFront inserts frames at the head of the queue, in the given order, so
// that the next consumer sees them before anything captured later.
func (q *FrameQueue) PushFront(frames ...AudioFrame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(frames) == 0 {
		return true
	}
	head := make([]Entry, len(frames), len(frames)+len(q.entries))
	for i, f := range frames {
		head[i] = Entry{Frame: f}
	}
	q.entries = append(head, q.entries...)
	q.signal()
	return true
}

// PushSentinel appends the close sentinel. It reports false without queueing
// anything when a sentinel is already pending or the queue is closed.
func (q *FrameQueue) PushSentinel() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.pending {
		return false
	}
	q.entries = append(q.entries, Entry{Close: true})
	q.pending = true
	q.signal()
	return true
}

// Pop removes and returns the head entry, blocking until one is available.
// It returns ctx.Err() if ctx is done first, and [ErrQueueClosed] once the
// queue is closed and empty.
func (q *FrameQueue) Pop(ctx context.Context) (Entry, error) {
	for {
		if e, ok, closed := q.take(); ok {
			return e, nil
		} else if closed {
			return Entry{}, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryPop removes and returns the head entry without blocking. ok is false
// when the queue is empty.
func (q *FrameQueue) TryPop() (e Entry, ok bool) {
	e, ok, _ = q.take()
	return e, ok
}

// Len returns the number of queued entries, sentinel included.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// SentinelPending reports whether a close sentinel is queued but not yet
// consumed.
func (q *FrameQueue) SentinelPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close marks the queue closed. Entries already queued stay poppable; blocked
// consumers wake up and receive [ErrQueueClosed] once the queue is empty.
// Calling Close more than once is safe.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.signal()
}

func (q *FrameQueue) take() (e Entry, ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false, q.closed
	}
	e = q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	if e.Close {
		q.pending = false
	}
	if len(q.entries) > 0 || q.closed {
		q.signal()
	}
	return e, true, q.closed
}

// signal leaves a wake-up token for a blocked consumer. Must be called with
// q.mu held.
func (q *FrameQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
