package bubbletea

import (
	"strings"

	"github.com/fwojciec/ragchat/sanitize"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const ellipsis = "…"

// truncate collapses whitespace in s and shortens it to at most width
// terminal cells, cutting on grapheme cluster boundaries.
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(sanitize.Text(s)), " ")
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}
	limit := width - runewidth.StringWidth(ellipsis)
	var b strings.Builder
	used, state := 0, -1
	for s != "" {
		var cluster string
		var w int
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		if used+w > limit {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	return strings.TrimRight(b.String(), " ") + ellipsis
}
