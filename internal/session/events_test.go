package session_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/pkg/provider/stt"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	alt := func(text string, final bool) []stt.Result {
		return []stt.Result{{Alternatives: []stt.Alternative{{Transcript: text}, {Transcript: "other"}}, IsFinal: final}}
	}

	tests := []struct {
		name   string
		resp   *stt.Response
		want   session.Event
		wantOK bool
	}{
		{"nil", nil, session.Event{}, false},
		{"error status", &stt.Response{Error: &stt.Status{Code: 11, Message: "Exceeded maximum allowed stream duration"}},
			session.Event{Kind: session.KindError, Code: 11, Message: "Exceeded maximum allowed stream duration"}, true},
		{"error wins over results", &stt.Response{Error: &stt.Status{Code: 3, Message: "bad"}, Results: alt("hi", true)},
			session.Event{Kind: session.KindError, Code: 3, Message: "bad"}, true},
		{"ok status ignored", &stt.Response{Error: &stt.Status{Code: 0}, Results: alt("hi", false)},
			session.Event{Kind: session.KindPartial, Text: "hi"}, true},
		{"end of utterance", &stt.Response{Endpoint: stt.EndOfUtterance},
			session.Event{Kind: session.KindEndOfUtterance}, true},
		{"empty response dropped", &stt.Response{}, session.Event{}, false},
		{"other endpoint dropped", &stt.Response{Endpoint: stt.SpeechStarted}, session.Event{}, false},
		{"partial", &stt.Response{Results: alt("hey jar", false)},
			session.Event{Kind: session.KindPartial, Text: "hey jar"}, true},
		{"final", &stt.Response{Results: alt("hey jarvis", true)},
			session.Event{Kind: session.KindFinal, Text: "hey jarvis"}, true},
		{"results with boundary marker are transcripts", &stt.Response{Results: alt("hey", true), Endpoint: stt.EndOfUtterance},
			session.Event{Kind: session.KindFinal, Text: "hey"}, true},
		{"no alternatives dropped", &stt.Response{Results: []stt.Result{{IsFinal: true}}}, session.Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := session.Classify(tt.resp)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	var err error = &session.ServiceError{Code: 3, Message: "Invalid audio"}
	if got := err.Error(); got != "recognizer error (code 3): Invalid audio" {
		t.Errorf("Error() = %q", got)
	}
	var se *session.ServiceError
	if !errors.As(err, &se) || se.Code != 3 {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestEventKind_String(t *testing.T) {
	t.Parallel()
	for k, want := range map[session.EventKind]string{
		session.KindError:          "error",
		session.KindEndOfUtterance: "end_of_utterance",
		session.KindPartial:        "partial",
		session.KindFinal:          "final",
		session.EventKind(99):      "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
