// Package audio implements the capture side of the listening pipeline: PCM
// frames, the FIFO that decouples capture from streaming, the overlap window
// replayed across recognizer sessions, and the aggregator that turns queued
// frames into one outbound chunk sequence per session.
//
// All audio is 16-bit little-endian mono PCM. A frame is [FrameDuration] of
// audio at [SampleRate] unless a capture source is configured otherwise.
package audio

import (
	"math"
	"time"
)

// Default PCM parameters expected by the recognizer.
const (
	// SampleRate is the default capture rate in Hz.
	SampleRate = 16000

	// Channels is the default channel count. Recognizers require mono.
	Channels = 1

	// BytesPerSample is the storage width of one 16-bit sample.
	BytesPerSample = 2

	// FrameDuration is the cadence at which capture sources deliver frames.
	FrameDuration = 100 * time.Millisecond

	// FrameSamples is the number of samples in one default frame (1600).
	FrameSamples = SampleRate / 10

	// FrameBytes is the byte length of one default frame.
	FrameBytes = FrameSamples * BytesPerSample
)

// AudioFrame is one chunk of captured PCM audio. Frames are immutable once
// pushed into a [FrameQueue]; consumers must not modify Data.
type AudioFrame struct {
	// Data holds 16-bit little-endian PCM samples.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is always 1 for frames bound for the recognizer.
	Channels int

	// Timestamp marks when this frame was captured, relative to capture start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame. Returns 0 when the
// format fields are unset.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / (BytesPerSample * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// OverlapFrames returns the overlap window capacity in frames for the given
// overlap duration: ceil(overlap * sampleRate / frameSamples).
// Non-positive inputs yield 0 (no overlap).
func OverlapFrames(overlap time.Duration, sampleRate, frameSamples int) int {
	if overlap <= 0 || sampleRate <= 0 || frameSamples <= 0 {
		return 0
	}
	samples := overlap.Seconds() * float64(sampleRate)
	return int(math.Ceil(samples / float64(frameSamples)))
}

// concat joins the Data of frames into one buffer.
func concat(frames []AudioFrame) []byte {
	n := 0
	for _, f := range frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range frames {
		out = append(out, f.Data...)
	}
	return out
}
