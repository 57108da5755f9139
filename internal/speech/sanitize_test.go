package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForSpeech(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes", "Hello, world!", "Hello, world!"},
		{"emoji dropped", "Meeting at 3pm \U0001F389", "Meeting at 3pm"},
		{"whitespace collapsed", "one\t\ttwo\n three", "one two three"},
		{"control characters dropped", "be\x00ep", "beep"},
		{"only symbols become empty", "✨✅", ""},
		{"leading and trailing space trimmed", "  hi  ", "hi"},
		{"punctuation kept", "It's 10:30; see you?", "It's 10:30; see you?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeForSpeech(tc.in))
		})
	}
}
