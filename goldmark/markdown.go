// Package goldmark renders answer markdown to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling. Citation markers such
// as [1] are parsed into their own inline nodes and highlighted.
package goldmark

import (
	"sync"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sanitize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

const defaultWidth = 80

var newParser = sync.OnceValue(func() parser.Parser {
	md := goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	p := md.Parser()
	p.AddOptions(parser.WithInlineParsers(
		// Ahead of the link parser, which also triggers on '['.
		util.Prioritized(citationParser{}, 150),
	))
	return p
})

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width. Code blocks are
// rendered at full width without reflow. Escape sequences and control
// characters in source are removed before parsing.
func Render(source string, width int, theme ragchat.Theme) string {
	source = sanitize.Text(source)
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	r := newRenderer(theme)
	return r.render([]byte(source), width)
}

// CitationRefs returns the distinct citation ordinals referenced in source,
// in order of first appearance. Markers inside code are ignored.
func CitationRefs(source string) []int {
	if source == "" {
		return nil
	}
	src := []byte(source)
	doc := newParser().Parse(textReader(src))
	var ids []int
	seen := make(map[int]bool)
	walkCitations(doc, func(ref *CitationRef) {
		if !seen[ref.ID] {
			seen[ref.ID] = true
			ids = append(ids, ref.ID)
		}
	})
	return ids
}
