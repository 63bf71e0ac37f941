package sanitize_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/ragchat/sanitize"
	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "Paris is the capital [1].", "Paris is the capital [1]."},
		{"strips color codes", "\x1b[31mhello\x1b[0m", "hello"},
		{"strips bold and underline", "\x1b[1mbold\x1b[22m", "bold"},
		{"preserves tabs and newlines", "a\tb\nc", "a\tb\nc"},
		{"removes control characters", "a\x01b\x02c\x07", "abc"},
		{"removes DEL", "a\x7fb", "ab"},
		{"normalizes CRLF", "a\r\nb\r\n", "a\nb\n"},
		{"lone CR overwrites", "draft answer\rfinal answer", "final answer"},
		{"multiple CRs", "10%\r50%\rdone", "done"},
		{"shorter segment keeps tail", "abcdef\rxy", "xycdef"},
		{"empty", "", ""},
		{"only escape codes", "\x1b[31m\x1b[0m", ""},
		{"strips OSC title", "\x1b]0;pwned\x07text", "text"},
		{"strips cursor movement", "line\x1b[2Aup", "lineup"},
		{"keeps unicode", "Hà Nội là thủ đô ✓", "Hà Nội là thủ đô ✓"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitize.Text(tt.in))
		})
	}

	t.Run("large input", func(t *testing.T) {
		t.Parallel()
		line := "\x1b[32m" + strings.Repeat("x", 1000) + "\x1b[0m\n"
		got := sanitize.Text(strings.Repeat(line, 1000))
		assert.NotContains(t, got, "\x1b")
		assert.Contains(t, got, strings.Repeat("x", 1000))
	})
}

func TestStream(t *testing.T) {
	t.Parallel()

	t.Run("drops carriage returns", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "ab\ncd", sanitize.Stream("a\rb\r\ncd"))
	})

	t.Run("strips escapes", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "redplain", sanitize.Stream("\x1b[31mred\x1b[0mplain\x07"))
	})

	t.Run("prefixes stay prefixes", func(t *testing.T) {
		t.Parallel()
		full := "The \x1b[1mcapital\x1b[0m is\r\n Paris\x07 [1]. \x1b]0;t\x07Done"
		whole := sanitize.Stream(full)
		for i := 0; i <= len(full); i++ {
			assert.True(t, strings.HasPrefix(whole, sanitize.Stream(full[:i])), "prefix %d", i)
		}
	})
}
