// Package mock provides a test double for audio.Capture.
//
// Capture records Start and Stop calls and, once started, delivers whatever
// frames the test passes to Emit into the sink it was started with.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/jarvis/pkg/audio"
)

// Capture is a mock implementation of audio.Capture.
type Capture struct {
	mu   sync.Mutex
	sink audio.FrameSink

	// Frames, if set, are pushed into the sink synchronously by Start.
	Frames []audio.AudioFrame

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StopErr, if non-nil, is returned by Stop.
	StopErr error

	// StartCalls and StopCalls count invocations.
	StartCalls int
	StopCalls  int
}

// Start records the call, remembers sink and pushes Frames.
func (c *Capture) Start(_ context.Context, sink audio.FrameSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if c.StartErr != nil {
		return c.StartErr
	}
	c.sink = sink
	for _, f := range c.Frames {
		sink.Push(f)
	}
	return nil
}

// Emit pushes f into the sink given to Start. It reports false when capture
// is not running.
func (c *Capture) Emit(f audio.AudioFrame) bool {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return false
	}
	return sink.Push(f)
}

// Stop records the call and detaches the sink.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	c.sink = nil
	return c.StopErr
}

// Running reports whether Start succeeded and Stop has not been called since.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}

// Ensure Capture implements audio.Capture at compile time.
var _ audio.Capture = (*Capture)(nil)
