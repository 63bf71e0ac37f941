// Package sanitize makes untrusted text safe to write to a terminal.
//
// Answers, citation snippets and document identifiers come from the backend
// and, through it, from user documents. Everything the client prints from
// those sources passes through this package first.
package sanitize

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Text strips ANSI escape codes and control characters from s.
// It preserves tabs and newlines but removes all other bytes <= 0x1F and DEL.
// CRLF sequences are normalized to LF. Lone CR simulates terminal carriage
// return behavior: text after \r overwrites from the beginning of the line.
func Text(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = filterControl(s, true)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.ContainsRune(line, '\r') {
			lines[i] = resolveCarriageReturns(line)
		}
	}
	return strings.Join(lines, "\n")
}

// Stream is Text for text that is still growing. Carriage returns are
// dropped instead of resolved, so Stream(prefix) is always a prefix of
// Stream(prefix + more) and a caller may print only the new suffix.
func Stream(s string) string {
	return filterControl(ansi.Strip(s), false)
}

// filterControl keeps \t, \n, optionally \r, and every byte above 0x1F
// except DEL. It works on bytes, so a rune split at the end of s passes
// through untouched.
func filterControl(s string, keepCR bool) string {
	i := 0
	for i < len(s) && allowed(s[i], keepCR) {
		i++
	}
	if i == len(s) {
		return s
	}
	b := make([]byte, i, len(s))
	copy(b, s[:i])
	for ; i < len(s); i++ {
		if allowed(s[i], keepCR) {
			b = append(b, s[i])
		}
	}
	return string(b)
}

func allowed(c byte, keepCR bool) bool {
	switch {
	case c == '\t' || c == '\n':
		return true
	case c == '\r':
		return keepCR
	case c == 0x7F:
		return false
	default:
		return c > 0x1F
	}
}

// resolveCarriageReturns simulates terminal CR behavior within a single line.
// Each \r resets the write position to 0; subsequent characters overwrite.
func resolveCarriageReturns(line string) string {
	segments := strings.Split(line, "\r")
	buf := []rune(segments[0])
	for _, seg := range segments[1:] {
		for j, r := range []rune(seg) {
			if j < len(buf) {
				buf[j] = r
			} else {
				buf = append(buf, r)
			}
		}
		// A shorter segment leaves the previous line's tail in place.
	}
	return string(buf)
}
