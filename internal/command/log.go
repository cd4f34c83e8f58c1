package command

import (
	"context"
	"log/slog"
)

// LogHandler writes every command to a structured logger.
type LogHandler struct {
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// HandleCommand implements Handler.
func (h LogHandler) HandleCommand(ctx context.Context, cmd Command) error {
	l := h.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "command recognised", "text", cmd.Text, "session", cmd.Session)
	return nil
}
