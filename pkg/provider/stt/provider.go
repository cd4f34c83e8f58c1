// Package stt defines the contract between the listening pipeline and a
// streaming speech recognizer.
//
// A [Recognizer] opens one bidirectional [Stream] per utterance. Opening the
// stream sends the configuration handshake; after that the caller pushes raw
// PCM chunks with Send and reads [Response] values with Recv until the
// recognizer closes its side (io.EOF). Services that segment audio per
// utterance signal the boundary with [EndOfUtterance] and expect the client to
// open a fresh stream for the next one.
//
// Implementations must allow Send and Recv to be called from different
// goroutines. Neither method may be called concurrently with itself.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrCanceled is returned by Send or Recv after the stream's context was
	// cancelled or [Stream.Cancel] was called.
	ErrCanceled = errors.New("stt: stream canceled")

	// ErrDeadlineExceeded is returned once the stream's context deadline has
	// passed.
	ErrDeadlineExceeded = errors.New("stt: stream deadline exceeded")

	// ErrStreamClosed is returned by Send after CloseSend.
	ErrStreamClosed = errors.New("stt: stream closed for sending")
)

// Encoding names the wire format of outbound audio.
type Encoding string

// LINEAR16 is uncompressed 16-bit signed little-endian PCM.
const LINEAR16 Encoding = "LINEAR16"

// StreamConfig is the handshake sent once at the start of every stream.
type StreamConfig struct {
	// Encoding of the audio chunks. Only LINEAR16 is produced by the pipeline.
	Encoding Encoding

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Language is the BCP-47 tag for recognition (e.g. "en-US").
	Language string

	// InterimResults asks the recognizer to emit partial hypotheses.
	InterimResults bool

	// SingleUtterance makes the recognizer end the stream after the first
	// detected utterance.
	SingleUtterance bool

	// Model optionally selects a provider-specific recognition model.
	Model string
}

// DefaultStreamConfig returns the handshake used by the assistant: LINEAR16
// at 16 kHz, en-US, interim results and single-utterance segmentation.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Encoding:        LINEAR16,
		SampleRate:      16000,
		Language:        "en-US",
		InterimResults:  true,
		SingleUtterance: true,
	}
}

// Stream is one open recognition exchange.
type Stream interface {
	// Send delivers one chunk of audio in the format agreed at Open.
	Send(chunk []byte) error

	// CloseSend half-closes the outbound direction. The recognizer keeps
	// delivering responses until it closes its side.
	CloseSend() error

	// Recv blocks until the next response arrives. It returns io.EOF once
	// the recognizer has closed the stream, [ErrCanceled] after
	// cancellation and [ErrDeadlineExceeded] after the stream deadline.
	Recv() (*Response, error)

	// Cancel aborts the stream and releases its resources. Blocked Send and
	// Recv calls return. Calling Cancel more than once is safe.
	Cancel()
}

// Recognizer opens streams against a speech recognition backend.
type Recognizer interface {
	// Open establishes a stream bound to ctx and sends the configuration
	// handshake. The stream is cancelled when ctx is done; a ctx deadline
	// bounds the stream's lifetime.
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}
