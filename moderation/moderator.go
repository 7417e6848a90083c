// Package moderation censors relayed message content before it leaves the
// instance.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks blacklisted words with a replacement character. Matching
// is case-insensitive via an Aho-Corasick automaton built once at startup;
// Censor itself is read-only and safe for concurrent use.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = lowerRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor returns the content with every blacklisted span replaced by the
// censored character. Unmatched content is returned unchanged.
func (m *Moderator) Censor(content string) string {
	runes := []rune(content)
	if len(runes) == 0 {
		return content
	}

	// unicode.ToLower maps rune to rune, so match offsets in the lowered
	// text are valid offsets in the original.
	spans := m.matcher.MultiPatternSearch(lowerRunes(runes), false)
	if len(spans) == 0 {
		return content
	}

	for _, span := range spans {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(runes) {
			continue
		}
		for i := span.Pos; i < end; i++ {
			runes[i] = m.censoredChar
		}
	}
	return string(runes)
}

func lowerRunes(runes []rune) []rune {
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}
	return lowered
}
