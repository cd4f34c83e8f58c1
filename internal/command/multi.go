package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/jarvis/internal/observe"
)

// Sink is a named Handler. The name labels metrics and errors.
type Sink struct {
	Name    string
	Handler Handler
}

// Multi delivers each command to every sink in order. A failing sink does
// not stop delivery to the others; all errors are joined.
type Multi struct {
	sinks   []Sink
	metrics *observe.Metrics
}

// NewMulti returns a fan-out over sinks. m may be nil.
func NewMulti(m *observe.Metrics, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, metrics: m}
}

// Len returns the number of sinks.
func (mu *Multi) Len() int { return len(mu.sinks) }

// HandleCommand implements Handler.
func (mu *Multi) HandleCommand(ctx context.Context, cmd Command) error {
	var errs []error
	for _, s := range mu.sinks {
		err := s.Handler.HandleCommand(ctx, cmd)
		status := "ok"
		if err != nil {
			status = "error"
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
		if mu.metrics != nil {
			mu.metrics.RecordCommand(ctx, s.Name, status)
		}
	}
	return errors.Join(errs...)
}
