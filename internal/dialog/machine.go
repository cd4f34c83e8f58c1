package dialog

import (
	"context"
	"log/slog"
	"sync"
)

// Change describes one state change.
type Change struct {
	From State
	To   State

	// Text is the transcript that caused the change.
	Text string
}

// Woke reports whether the change is the wake word being detected.
func (c Change) Woke() bool { return c.From == AwaitingWakeWord && c.To != AwaitingWakeWord }

// Notifier is told about every state change. Implementations must not block;
// they run on the transcript receive path.
type Notifier interface {
	StateChanged(ctx context.Context, c Change)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, c Change)

// StateChanged calls f.
func (f NotifierFunc) StateChanged(ctx context.Context, c Change) { f(ctx, c) }

// LogNotifier logs state changes. Entering AwaitingCommand is logged at info
// level as the assistant's attention cue; everything else at debug.
type LogNotifier struct {
	Logger *slog.Logger
}

// StateChanged implements Notifier.
func (n LogNotifier) StateChanged(ctx context.Context, c Change) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	if c.To == AwaitingCommand {
		l.InfoContext(ctx, "listening for command", "from", c.From.String(), "text", c.Text)
		return
	}
	l.DebugContext(ctx, "dialog state changed", "from", c.From.String(), "to", c.To.String())
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier registers n for state changes. It may be given more than once.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifiers = append(m.notifiers, n) }
}

// Machine holds the dialog state and applies [Transition] to each transcript.
// It is safe for concurrent use, although in practice only the session
// receive flow feeds it.
type Machine struct {
	mu        sync.Mutex
	state     State
	matcher   Matcher
	notifiers []Notifier
}

// NewMachine returns a Machine in [AwaitingWakeWord] using matcher.
func NewMachine(matcher Matcher, opts ...Option) *Machine {
	m := &Machine{matcher: matcher}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetMatcher swaps the wake-word matcher. The current state is kept.
func (m *Machine) SetMatcher(matcher Matcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matcher = matcher
}

// Reset returns the machine to [AwaitingWakeWord].
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AwaitingWakeWord
}

// Feed applies one transcript and returns the command it completes, if any.
// Notifiers run after the state has been updated and the lock released.
func (m *Machine) Feed(ctx context.Context, in Input) (command string, ok bool) {
	m.mu.Lock()
	from := m.state
	next, command, ok := Transition(from, in, m.matcher)
	m.state = next
	notifiers := m.notifiers
	m.mu.Unlock()

	if next != from {
		c := Change{From: from, To: next, Text: in.Text}
		for _, n := range notifiers {
			n.StateChanged(ctx, c)
		}
	}
	return command, ok
}
