package command

import "errors"

var (
	// ErrQueueFull is returned by [Async.HandleCommand] when the queue has no
	// room.
	ErrQueueFull = errors.New("command: queue full")

	// ErrClosed is returned by [Async.HandleCommand] after Close.
	ErrClosed = errors.New("command: handler closed")

	// ErrCircuitOpen is returned by [Breaker.HandleCommand] while the wrapped
	// sink is considered down.
	ErrCircuitOpen = errors.New("command: sink circuit open")
)
