package session

import (
	"errors"
	"fmt"

	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

// EventKind tags a classified recognizer response.
type EventKind int

const (
	// KindError is a non-OK service status. It ends the run.
	KindError EventKind = iota

	// KindEndOfUtterance is the recognizer's utterance boundary. It triggers
	// the session close protocol.
	KindEndOfUtterance

	// KindPartial is an interim hypothesis.
	KindPartial

	// KindFinal is an authoritative transcript.
	KindFinal
)

func (k EventKind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindEndOfUtterance:
		return "end_of_utterance"
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Event is one transcript event derived from a recognizer response.
type Event struct {
	Kind EventKind

	// Text is the first alternative of the first result for partial and
	// final events.
	Text string

	// Code and Message carry the service status of an error event.
	Code    int32
	Message string
}

// Classify derives the event carried by resp. ok is false when the response
// carries nothing the pipeline acts on (no status, no results and no
// utterance boundary) or its first result has no alternatives.
func Classify(resp *stt.Response) (ev Event, ok bool) {
	if resp == nil {
		return Event{}, false
	}
	if resp.Error != nil && resp.Error.Code != 0 {
		return Event{Kind: KindError, Code: resp.Error.Code, Message: resp.Error.Message}, true
	}
	if len(resp.Results) == 0 {
		if resp.Endpoint == stt.EndOfUtterance {
			return Event{Kind: KindEndOfUtterance}, true
		}
		return Event{}, false
	}
	r := resp.Results[0]
	if len(r.Alternatives) == 0 {
		return Event{}, false
	}
	kind := KindPartial
	if r.IsFinal {
		kind = KindFinal
	}
	return Event{Kind: kind, Text: r.Alternatives[0].Transcript}, true
}

// ServiceError is the fatal error surfaced when the recognizer reports a
// non-OK status.
type ServiceError struct {
	Code    int32
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("recognizer error (code %d): %s", e.Code, e.Message)
}

// ErrSessionDeadline is returned when a recognizer session outlives its hard
// deadline. End-of-utterance cycling normally closes sessions long before;
// hitting it indicates a stuck stream.
var ErrSessionDeadline = errors.New("session: recognizer session deadline exceeded")

// ErrNoSession is reported by [Orchestrator.Ready] until the first session has
// been opened.
var ErrNoSession = errors.New("session: no recognizer session opened yet")
