package audio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// drainSession reads every chunk an aggregator yields until io.EOF.
func drainSession(t *testing.T, agg *audio.Aggregator) [][]byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var chunks [][]byte
	for {
		c, err := agg.Next(ctx)
		if errors.Is(err, io.EOF) {
			return chunks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks = append(chunks, c)
	}
}

func TestAggregator_BatchesAvailableFrames(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(10)
	q.Push(frame(1))
	q.Push(frame(2))
	q.Push(frame(3))

	agg := audio.NewAggregator(q, w)
	c, err := agg.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(c, []byte{1, 2, 3}) {
		t.Errorf("chunk = %v, want [1 2 3]", c)
	}
	if w.Len() != 3 {
		t.Errorf("window holds %d frames, want 3", w.Len())
	}
}

func TestAggregator_NoLossAcrossSessions(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(2)

	var pushed []byte
	for i := range byte(5) {
		q.Push(frame(i))
		pushed = append(pushed, i)
	}
	q.PushSentinel()
	// Frames captured after the close decision belong to the next session.
	q.Push(frame(10))
	q.Push(frame(11))

	chunks := drainSession(t, audio.NewAggregator(q, w))
	if len(chunks) != 0 {
		t.Errorf("first batch contained the sentinel; got %d chunks, want 0", len(chunks))
	}

	// Everything, including frames batched alongside the sentinel, must be
	// re-queued frame by frame for the next aggregator in capture order.
	want := append(append([]byte{}, pushed...), 10, 11)
	if q.Len() != len(want) {
		t.Fatalf("queue Len = %d, want %d frames", q.Len(), len(want))
	}
	var got []byte
	for range want {
		e, _ := q.TryPop()
		if e.Close || len(e.Frame.Data) != 1 {
			t.Fatalf("re-queued entry = %+v, want one single-byte frame", e)
		}
		got = append(got, e.Frame.Data...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("re-queued = %v, want %v", got, want)
	}
}

func TestAggregator_CarriedFramesKeepOverlapBound(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(2)
	ctx := context.Background()

	// Session 1 forwards nothing: its only batch holds the sentinel.
	q.Push(frame(1))
	q.Push(frame(2))
	q.Push(frame(3))
	q.PushSentinel()
	if chunks := drainSession(t, audio.NewAggregator(q, w)); len(chunks) != 0 {
		t.Fatalf("session 1 yielded %d chunks, want 0", len(chunks))
	}

	// Session 2 forwards the carried frames as one batch.
	agg := audio.NewAggregator(q, w)
	c, err := agg.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(c, []byte{1, 2, 3}) {
		t.Errorf("session 2 chunk = %v, want [1 2 3]", c)
	}
	if w.Len() != 2 {
		t.Errorf("window holds %d frames, want 2", w.Len())
	}
	q.PushSentinel()
	if _, err := agg.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}

	// Session 3 replays only the last two real frames.
	replay, err := audio.NewAggregator(q, w).Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(replay, []byte{2, 3}) {
		t.Errorf("session 3 replay = %v, want [2 3]", replay)
	}
}

func TestAggregator_SessionSequence(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(2)
	ctx := context.Background()

	agg := audio.NewAggregator(q, w)
	var got []byte
	for i := range byte(4) {
		q.Push(frame(i))
		c, err := agg.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, c...)
	}
	if !bytes.Equal(got, []byte{0, 1, 2, 3}) {
		t.Errorf("session 1 = %v, want [0 1 2 3]", got)
	}

	q.PushSentinel()
	if _, err := agg.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	if _, err := agg.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next after EOF = %v, want io.EOF", err)
	}

	// Session 2 starts with the last two forwarded frames, then fresh audio.
	next := audio.NewAggregator(q, w)
	q.Push(frame(9))
	first, err := next.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(first, []byte{2, 3}) {
		t.Errorf("overlap replay = %v, want [2 3]", first)
	}
	fresh, err := next.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(fresh, []byte{9}) {
		t.Errorf("fresh chunk = %v, want [9]", fresh)
	}
	if w.Len() != 1 {
		t.Errorf("window after replay holds %d frames, want 1", w.Len())
	}
}

func TestAggregator_ScenarioOverlapBelowCapacity(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(audio.OverlapFrames(time.Second, audio.SampleRate, audio.FrameSamples))
	ctx := context.Background()

	c1 := bytes.Repeat([]byte{1}, audio.FrameBytes)
	c2 := bytes.Repeat([]byte{2}, audio.FrameBytes)
	c3 := bytes.Repeat([]byte{3}, audio.FrameBytes)

	agg := audio.NewAggregator(q, w)
	for _, c := range [][]byte{c1, c2, c3} {
		q.Push(frame(c...))
		if _, err := agg.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	q.PushSentinel()
	if _, err := agg.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}

	first, err := audio.NewAggregator(q, w).Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := append(append(append([]byte{}, c1...), c2...), c3...)
	if !bytes.Equal(first, want) {
		t.Errorf("first chunk of next session has %d bytes, want concat(c1,c2,c3) = %d bytes", len(first), len(want))
	}
}

func TestAggregator_EmptyWindowSkipsReplay(t *testing.T) {
	q := audio.NewFrameQueue()
	w := audio.NewOverlapWindow(4)
	var overlapCalls int
	agg := audio.NewAggregator(q, w)
	agg.OnOverlap = func(int) { overlapCalls++ }

	q.Push(frame(5))
	c, err := agg.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(c, []byte{5}) {
		t.Errorf("chunk = %v, want [5]", c)
	}
	if overlapCalls != 0 {
		t.Errorf("OnOverlap called %d times, want 0", overlapCalls)
	}
}

func TestAggregator_ContextCancelled(t *testing.T) {
	q := audio.NewFrameQueue()
	agg := audio.NewAggregator(q, audio.NewOverlapWindow(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := agg.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAggregator_QueueClosed(t *testing.T) {
	q := audio.NewFrameQueue()
	q.Close()
	agg := audio.NewAggregator(q, audio.NewOverlapWindow(1))
	if _, err := agg.Next(context.Background()); !errors.Is(err, audio.ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}
