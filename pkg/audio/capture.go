package audio

import "context"

// FrameSink receives captured frames. [FrameQueue] is the production sink.
// Push must not block.
type FrameSink interface {
	Push(f AudioFrame) bool
}

// Capture is a source of PCM frames, typically a microphone.
//
// Start begins delivering fixed-size frames at a fixed cadence into sink and
// returns once capture is running; delivery continues on an internal
// goroutine or driver callback until Stop is called or ctx is cancelled.
// Stop halts delivery and releases the device. Calling Stop more than once
// is safe.
type Capture interface {
	Start(ctx context.Context, sink FrameSink) error
	Stop() error
}
