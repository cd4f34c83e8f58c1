// Package command delivers recognised commands to whatever executes them.
//
// A [Handler] receives one [Command] per completed wake-word/command turn.
// Handlers in this package log commands, POST them to a webhook, broadcast
// them to websocket subscribers, fan out to several handlers and decouple slow
// handlers from the transcript receive path. [Breaker] stops calling a sink
// that keeps failing until it has had time to recover.
package command

import (
	"context"
	"time"
)

// Command is one captured command utterance.
type Command struct {
	// Text is the final transcript captured after the wake word.
	Text string `json:"text"`

	// At is when the command was recognised.
	At time.Time `json:"at"`

	// Session is the sequence number of the recognizer session that produced
	// the command.
	Session uint64 `json:"session"`
}

// Handler executes or forwards commands. HandleCommand must respect ctx.
type Handler interface {
	HandleCommand(ctx context.Context, cmd Command) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cmd Command) error

// HandleCommand calls f.
func (f HandlerFunc) HandleCommand(ctx context.Context, cmd Command) error { return f(ctx, cmd) }
