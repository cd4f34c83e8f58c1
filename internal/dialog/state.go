// Package dialog implements the two-phase conversational protocol of the
// assistant: wait for a wake word, then capture exactly one command utterance.
//
// The protocol is a pure transition function over [State] driven by streamed
// transcripts. [Machine] wraps it with locking, a swappable wake-word
// [Matcher] and change notifications.
package dialog

// State is the dialog position.
type State int

const (
	// AwaitingWakeWord is the initial state: transcripts are scanned for the
	// wake word and otherwise ignored.
	AwaitingWakeWord State = iota

	// Armed means the wake word was heard and command capture starts with
	// the next final transcript.
	Armed

	// AwaitingCommand means the next final transcript is the command.
	AwaitingCommand
)

func (s State) String() string {
	switch s {
	case AwaitingWakeWord:
		return "awaiting_wake_word"
	case Armed:
		return "armed"
	case AwaitingCommand:
		return "awaiting_command"
	default:
		return "unknown"
	}
}

// Input is one transcript hypothesis from the recognizer.
type Input struct {
	Text string

	// Final marks an authoritative result. Partials never change the
	// command-capture states.
	Final bool
}

// Transition computes the next state for input in. It returns the command
// text and ok=true only when in is the final transcript captured in
// [AwaitingCommand].
//
// A final transcript that contains the wake word moves [AwaitingWakeWord]
// through [Armed] to [AwaitingCommand] in one call, so the command is the
// utterance after the one that woke the assistant. A partial containing the
// wake word only arms; the final for the same utterance then completes the
// step to AwaitingCommand.
func Transition(s State, in Input, m Matcher) (next State, command string, ok bool) {
	if s == AwaitingWakeWord && m != nil && m.Match(in.Text) {
		s = Armed
	}
	switch {
	case s == Armed && in.Final:
		return AwaitingCommand, "", false
	case s == AwaitingCommand && in.Final:
		return AwaitingWakeWord, in.Text, true
	}
	return s, "", false
}
