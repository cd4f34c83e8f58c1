package audio

import (
	"context"
	"io"
)

// Aggregator turns the shared [FrameQueue] into the outbound chunk sequence
// of exactly one recognizer session. Build a fresh Aggregator per session
// over the same queue and window.
//
// The sequence starts with the replayed [OverlapWindow] (if non-empty),
// followed by one chunk per batch of queued frames. It ends when the close
// sentinel is observed: real frames batched alongside the sentinel are pushed
// back, one entry per frame, to the head of the queue for the next
// Aggregator, so nothing captured across a session boundary is lost and the
// overlap window keeps counting real frames.
//
// An Aggregator is used by a single goroutine.
type Aggregator struct {
	queue  *FrameQueue
	window *OverlapWindow

	replayed bool
	done     bool

	// OnOverlap, if set, is called with the byte length of the replayed
	// overlap chunk.
	OnOverlap func(n int)
}

// NewAggregator returns an Aggregator draining q and recording into w.
func NewAggregator(q *FrameQueue, w *OverlapWindow) *Aggregator {
	return &Aggregator{queue: q, window: w}
}

// Next returns the next outbound chunk. It blocks until at least one frame is
// queued, then takes every frame available without blocking and returns
// their concatenation.
//
// Next returns io.EOF once the sentinel has been consumed, and keeps
// returning io.EOF afterwards. Errors from the queue (ctx cancellation,
// [ErrQueueClosed]) are returned as-is.
func (a *Aggregator) Next(ctx context.Context) ([]byte, error) {
	if a.done {
		return nil, io.EOF
	}

	if !a.replayed {
		a.replayed = true
		if data := a.window.Flush(); len(data) > 0 {
			if a.OnOverlap != nil {
				a.OnOverlap(len(data))
			}
			return data, nil
		}
	}

	for {
		first, err := a.queue.Pop(ctx)
		if err != nil {
			return nil, err
		}
		batch := []Entry{first}
		for {
			e, ok := a.queue.TryPop()
			if !ok {
				break
			}
			batch = append(batch, e)
		}

		frames := make([]AudioFrame, 0, len(batch))
		sawClose := false
		for _, e := range batch {
			if e.Close {
				sawClose = true
				continue
			}
			if len(e.Frame.Data) == 0 {
				continue
			}
			frames = append(frames, e.Frame)
		}

		if sawClose {
			a.done = true
			if len(frames) > 0 {
				a.queue.PushFront(frames...)
			}
			return nil, io.EOF
		}

		if len(frames) == 0 {
			continue
		}
		a.window.Append(frames...)
		return concat(frames), nil
	}
}
