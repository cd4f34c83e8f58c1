package command

import (
	"context"
	"log/slog"
	"sync"
)

const defaultQueueSize = 16

// Async hands commands to a wrapped Handler on a background goroutine, so
// slow delivery never stalls the transcript receive path. At most size
// commands wait; further commands are dropped with a warning.
//
// Call Close to drain pending commands and stop the worker.
type Async struct {
	next  Handler
	queue chan Command

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAsync starts a worker delivering to next. A size of zero or less uses
// the default of 16.
func NewAsync(next Handler, size int) *Async {
	if size <= 0 {
		size = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		next:   next,
		queue:  make(chan Command, size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// HandleCommand enqueues cmd. It returns [ErrQueueFull] when the queue is
// full and [ErrClosed] after Close.
func (a *Async) HandleCommand(_ context.Context, cmd Command) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- cmd:
		return nil
	default:
		slog.Warn("command queue full, dropping command", "text", cmd.Text)
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case cmd := <-a.queue:
			a.deliver(cmd)
		case <-a.ctx.Done():
			for {
				select {
				case cmd := <-a.queue:
					a.deliver(cmd)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(cmd Command) {
	if err := a.next.HandleCommand(context.Background(), cmd); err != nil {
		slog.Error("command delivery failed", "text", cmd.Text, "err", err)
	}
}

// Close stops accepting commands, delivers the ones already queued and waits
// for the worker to exit, or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
