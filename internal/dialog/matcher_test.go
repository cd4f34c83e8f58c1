package dialog_test

import (
	"testing"

	"github.com/MrWong99/jarvis/internal/dialog"
)

func TestWordMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wake string
		text string
		want bool
	}{
		{"jarvis", "hey Jarvis", true},
		{"jarvis", "JARVIS", true},
		{"jarvis", "Jarvis, what time is it?", true},
		{"jarvis", "Jarviston", false},
		{"jarvis", "myjarvis", false},
		{"jarvis", "", false},
		{"Hey Jarvis", "ok hey jarvis turn it up", true},
		{"hey jarvis", "jarvis hey", false},
		{"hey jarvis", "hey there jarvis", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.wake+"/"+tt.text, func(t *testing.T) {
			if got := dialog.NewWordMatcher(tt.wake).Match(tt.text); got != tt.want {
				t.Errorf("Match(%q) with wake %q = %v, want %v", tt.text, tt.wake, got, tt.want)
			}
		})
	}
}

func TestWordMatcher_Phrase(t *testing.T) {
	t.Parallel()
	if got := dialog.NewWordMatcher("  Hey,  JARVIS ").Phrase(); got != "hey jarvis" {
		t.Errorf("Phrase = %q, want %q", got, "hey jarvis")
	}
}

func TestPhoneticMatcher(t *testing.T) {
	t.Parallel()

	m := dialog.NewPhoneticMatcher("jarvis")
	tests := []struct {
		text string
		want bool
	}{
		{"hey jarvis", true},
		{"hey jervis", true},
		{"Jarviston", false},
		{"hello there", false},
		{"turn on the lights", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := m.Match(tt.text); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhoneticMatcher_LengthDelta(t *testing.T) {
	t.Parallel()

	strict := dialog.NewPhoneticMatcher("jarvis", dialog.WithMaxLengthDelta(0))
	if strict.Match("jarvi") {
		t.Error("length delta 0 accepted a shorter word")
	}
	if !strict.Match("jervis") {
		t.Error("length delta 0 rejected an equal-length sound-alike")
	}
}
