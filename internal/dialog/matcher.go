package dialog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Matcher decides whether a transcript contains the wake word.
type Matcher interface {
	Match(text string) bool
}

// tokenize lowercases text and splits it on anything that is not a letter or
// digit, so punctuation never glues a word to its neighbour.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordMatcher matches the wake word as a case-insensitive whole word. A
// multi-word wake phrase must appear as a consecutive run of words.
type WordMatcher struct {
	phrase []string
}

// NewWordMatcher returns a matcher for wakeWord.
func NewWordMatcher(wakeWord string) *WordMatcher {
	return &WordMatcher{phrase: tokenize(wakeWord)}
}

// Phrase returns the normalised wake phrase.
func (w *WordMatcher) Phrase() string { return strings.Join(w.phrase, " ") }

// Match reports whether text contains the wake phrase.
func (w *WordMatcher) Match(text string) bool {
	return indexPhrase(tokenize(text), w.phrase, func(a, b string) bool { return a == b }) >= 0
}

func indexPhrase(tokens, phrase []string, eq func(a, b string) bool) int {
	if len(phrase) == 0 || len(tokens) < len(phrase) {
		return -1
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if !eq(tokens[i+j], p) {
				continue outer
			}
		}
		return i
	}
	return -1
}

const (
	defaultPhoneticThreshold = 0.70
	defaultMaxLengthDelta    = 2
)

// PhoneticOption configures a PhoneticMatcher.
type PhoneticOption func(*PhoneticMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler similarity a
// phonetically equal word must reach. Default: 0.70.
func WithPhoneticThreshold(threshold float64) PhoneticOption {
	return func(m *PhoneticMatcher) { m.threshold = threshold }
}

// WithMaxLengthDelta bounds how many letters a heard word may differ in
// length from the wake word. Default: 2.
func WithMaxLengthDelta(n int) PhoneticOption {
	return func(m *PhoneticMatcher) { m.maxDelta = n }
}

// PhoneticMatcher accepts exact whole-word matches and, additionally, words
// that sound like the wake word: they must share a Double Metaphone code,
// have a Jaro-Winkler similarity above the threshold and roughly the same
// length. Recognizers often spell uncommon names inconsistently ("Jervis").
//
// The length bound keeps longer words that merely start like the wake word
// ("Jarviston") from matching.
type PhoneticMatcher struct {
	exact     *WordMatcher
	threshold float64
	maxDelta  int
}

// NewPhoneticMatcher returns a fuzzy matcher for wakeWord.
func NewPhoneticMatcher(wakeWord string, opts ...PhoneticOption) *PhoneticMatcher {
	m := &PhoneticMatcher{
		exact:     NewWordMatcher(wakeWord),
		threshold: defaultPhoneticThreshold,
		maxDelta:  defaultMaxLengthDelta,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match reports whether text contains the wake phrase or a word sequence that
// sounds like it.
func (m *PhoneticMatcher) Match(text string) bool {
	tokens := tokenize(text)
	if indexPhrase(tokens, m.exact.phrase, func(a, b string) bool { return a == b }) >= 0 {
		return true
	}
	return indexPhrase(tokens, m.exact.phrase, m.soundsLike) >= 0
}

func (m *PhoneticMatcher) soundsLike(heard, want string) bool {
	if heard == want {
		return true
	}
	d := utf8.RuneCountInString(heard) - utf8.RuneCountInString(want)
	if d < 0 {
		d = -d
	}
	if d > m.maxDelta {
		return false
	}
	if !codesOverlap(heard, want) {
		return false
	}
	return matchr.JaroWinkler(heard, want, false) >= m.threshold
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
