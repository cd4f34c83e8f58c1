// Package mock provides test doubles for the stt package interfaces.
//
// Use Recognizer to verify that the caller opens streams with the expected
// StreamConfig and to hand out scripted streams in order. Use Stream to feed
// controlled responses and inspect which audio chunks were sent.
//
// Example:
//
//	s := mock.NewStream(8)
//	s.Reply(&stt.Response{Endpoint: stt.EndOfUtterance})
//	s.Finish()
//	r := &mock.Recognizer{Streams: []*mock.Stream{s}}
package mock

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// OpenCall records a single invocation of Recognizer.Open.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
	// Cfg is the StreamConfig passed to Open.
	Cfg stt.StreamConfig
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Streams are returned by successive Open calls. Once exhausted, Open
	// returns a fresh Stream that stays silent until cancelled.
	Streams []*Stream

	// OpenErr, if non-nil, is returned by every Open call.
	OpenErr error

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall

	// Opened, if non-nil, receives every stream handed out. Sends never block.
	Opened chan *Stream
}

// Open records the call, binds the next scripted stream to ctx and returns it.
func (r *Recognizer) Open(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	r.mu.Lock()
	r.OpenCalls = append(r.OpenCalls, OpenCall{Ctx: ctx, Cfg: cfg})
	if r.OpenErr != nil {
		r.mu.Unlock()
		return nil, r.OpenErr
	}
	var s *Stream
	if len(r.Streams) > 0 {
		s = r.Streams[0]
		r.Streams = r.Streams[1:]
	} else {
		s = NewStream(0)
	}
	r.mu.Unlock()

	s.bind(ctx)
	if r.Opened != nil {
		select {
		case r.Opened <- s:
		default:
		}
	}
	return s, nil
}

// OpenCallCount returns the number of Open calls. Thread-safe.
func (r *Recognizer) OpenCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.OpenCalls)
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

type reply struct {
	resp *stt.Response
	err  error
}

// Stream is a mock implementation of stt.Stream. Responses queued with Reply
// and Fail are delivered by Recv in order; after Finish, Recv returns io.EOF
// once the queue is drained. Recv observes Cancel and the bound context.
type Stream struct {
	mu sync.Mutex

	replies chan reply
	finish  chan struct{}
	done    chan struct{}
	ctx     context.Context

	finishOnce sync.Once
	cancelOnce sync.Once

	// SendErr, if non-nil, is returned by every Send call.
	SendErr error

	// OnSend, if set, is called with every chunk after it is recorded.
	OnSend func(chunk []byte)

	// --- Call records ---

	// Sent holds a copy of every chunk passed to Send, in order.
	Sent [][]byte

	// CloseSendCount is the number of CloseSend calls.
	CloseSendCount int

	// CancelCount is the number of Cancel calls.
	CancelCount int
}

// NewStream returns a Stream able to buffer n scripted replies without
// blocking the test.
func NewStream(n int) *Stream {
	return &Stream{
		replies: make(chan reply, n),
		finish:  make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     context.Background(),
	}
}

func (s *Stream) bind(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// Reply queues resp for Recv.
func (s *Stream) Reply(resp *stt.Response) { s.replies <- reply{resp: resp} }

// Fail queues err for Recv.
func (s *Stream) Fail(err error) { s.replies <- reply{err: err} }

// Finish makes Recv return io.EOF after the queued replies are drained.
func (s *Stream) Finish() { s.finishOnce.Do(func() { close(s.finish) }) }

// Send records the chunk and returns SendErr.
func (s *Stream) Send(chunk []byte) error {
	s.mu.Lock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.Sent = append(s.Sent, cp)
	err, hook := s.SendErr, s.OnSend
	s.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return err
}

// CloseSend records the call.
func (s *Stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseSendCount++
	return nil
}

// Recv returns the next scripted reply.
func (s *Stream) Recv() (*stt.Response, error) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// Queued replies win over the finish signal so nothing scripted is lost.
	select {
	case r := <-s.replies:
		return r.resp, r.err
	default:
	}
	select {
	case r := <-s.replies:
		return r.resp, r.err
	case <-s.finish:
		select {
		case r := <-s.replies:
			return r.resp, r.err
		default:
			return nil, io.EOF
		}
	case <-s.done:
		return nil, stt.ErrCanceled
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, stt.ErrDeadlineExceeded
		}
		return nil, stt.ErrCanceled
	}
}

// Cancel records the call and unblocks Recv.
func (s *Stream) Cancel() {
	s.mu.Lock()
	s.CancelCount++
	s.mu.Unlock()
	s.cancelOnce.Do(func() { close(s.done) })
}

// SentChunks returns a copy of the recorded chunks. Thread-safe.
func (s *Stream) SentChunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Cancelled reports whether Cancel has been called. Thread-safe.
func (s *Stream) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CancelCount > 0
}

// Ensure Stream implements stt.Stream at compile time.
var _ stt.Stream = (*Stream)(nil)
