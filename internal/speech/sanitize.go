package speech

import (
	"strings"
	"unicode"
)

// SanitizeForSpeech strips runes neither provider is guaranteed to
// render: control characters, emoji and other symbols. Letters, digits,
// punctuation and spaces pass through, whitespace runs collapse to one
// space. Filtering instead of failing keeps encoding oddities from
// blocking a whole reply.
func SanitizeForSpeech(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	prevSpace := true
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			// Symbols and emoji are dropped.
		}
	}
	return strings.TrimSpace(b.String())
}
