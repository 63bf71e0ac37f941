package goldmark

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/ragchat"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	codeGutter  = "│"
	quoteGutter = "▌"
	minWrap     = 10
)

type termRenderer struct {
	bold      lipgloss.Style
	italic    lipgloss.Style
	strike    lipgloss.Style
	accent    lipgloss.Style
	muted     lipgloss.Style
	underline lipgloss.Style
	citation  lipgloss.Style
	code      lipgloss.Style
}

func newRenderer(theme ragchat.Theme) *termRenderer {
	return &termRenderer{
		bold:      lipgloss.NewStyle().Bold(true),
		italic:    lipgloss.NewStyle().Italic(true),
		strike:    lipgloss.NewStyle().Strikethrough(true),
		accent:    lipgloss.NewStyle().Foreground(ansiColor(theme.Accent)).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(ansiColor(theme.Muted)).Faint(true),
		underline: lipgloss.NewStyle().Underline(true),
		citation:  lipgloss.NewStyle().Foreground(ansiColor(theme.Citation)).Bold(true),
		code:      lipgloss.NewStyle().Background(ansiColor(theme.CodeBg)),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

func (r *termRenderer) render(source []byte, width int) string {
	doc := newParser().Parse(textReader(source))
	var buf bytes.Buffer
	r.walkBlocks(doc, source, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

func (r *termRenderer) walkBlocks(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.renderBlock(c, source, width, buf)
	}
}

func (r *termRenderer) renderBlock(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		buf.WriteString(wrap(r.inline(n, source), width))
		buf.WriteString("\n")

	case *ast.Heading:
		buf.WriteString(wrap(r.accent.Render(r.inline(n, source)), width))
		buf.WriteString("\n")

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(source)); lang != "" {
			buf.WriteString(r.muted.Render(lang))
			buf.WriteString("\n")
		}
		r.writeCode(n, source, buf)

	case *ast.CodeBlock:
		r.writeCode(n, source, buf)

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.walkBlocks(n, source, width-2, &inner)
		gutter := r.muted.Render(quoteGutter) + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			buf.WriteString(gutter + line + "\n")
		}

	case *ast.List:
		r.renderList(n, source, width, buf, 0)

	case *ast.ThematicBreak:
		buf.WriteString(r.muted.Render(strings.Repeat("─", min(width, 40))))
		buf.WriteString("\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(source))
		}

	default:
		r.walkBlocks(node, source, width, buf)
		return
	}
	if node.NextSibling() != nil {
		buf.WriteString("\n")
	}
}

func (r *termRenderer) writeCode(n ast.Node, source []byte, buf *bytes.Buffer) {
	gutter := r.muted.Render(codeGutter) + " "
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		content := strings.TrimRight(string(line.Value(source)), "\n")
		buf.WriteString(gutter + r.code.Render(content))
		buf.WriteString("\n")
	}
}

func (r *termRenderer) renderList(node *ast.List, source []byte, width int, buf *bytes.Buffer, depth int) {
	num := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		indent := strings.Repeat("  ", depth)
		marker := "- "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}

		var content bytes.Buffer
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				if content.Len() > 0 {
					content.WriteString(" ")
				}
				content.WriteString(r.inline(in, source))
			case *ast.List:
				if content.Len() > 0 {
					writeListItem(buf, indent+marker, content.String(), width)
					content.Reset()
				}
				r.renderList(in, source, width, buf, depth+1)
				marker = strings.Repeat(" ", len(marker))
			default:
				r.renderBlock(ic, source, width, &content)
			}
		}
		if content.Len() > 0 {
			writeListItem(buf, indent+marker, content.String(), width)
		}
	}
}

// writeListItem writes a list item, indenting continuation lines under the
// item text.
func writeListItem(buf *bytes.Buffer, prefix, content string, width int) {
	wrapped := wrap(content, max(width-len(prefix), minWrap))
	continuation := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			buf.WriteString(prefix + line + "\n")
		} else {
			buf.WriteString(continuation + line + "\n")
		}
	}
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

// inline collects the styled inline text of a node's children.
func (r *termRenderer) inline(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.renderInline(c, source, &buf)
	}
	return buf.String()
}

func (r *termRenderer) renderInline(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() {
			buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			buf.WriteByte('\n')
		}

	case *ast.String:
		buf.Write(n.Value)

	case *CitationRef:
		buf.WriteString(r.citation.Render("[" + strconv.Itoa(n.ID) + "]"))

	case *ast.Emphasis:
		inner := r.inline(n, source)
		if n.Level == 1 {
			buf.WriteString(r.italic.Render(inner))
		} else {
			buf.WriteString(r.bold.Render(inner))
		}

	case *extast.Strikethrough:
		buf.WriteString(r.strike.Render(r.inline(n, source)))

	case *ast.CodeSpan:
		buf.WriteString(r.bold.Render(r.inline(n, source)))

	case *ast.Link:
		buf.WriteString(r.underline.Render(r.inline(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		buf.WriteString(r.underline.Render(string(n.URL(source))))

	case *ast.Image:
		buf.WriteString(r.underline.Render(r.inline(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			buf.Write(seg.Value(source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.renderInline(c, source, buf)
		}
	}
}
