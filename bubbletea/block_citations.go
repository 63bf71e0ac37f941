package bubbletea

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sanitize"
)

var _ MessageBlock = (*CitationsBlock)(nil)

const citationIndent = "    "

// CitationsBlock renders the sources attached to a sealed answer. It starts
// collapsed to a one-line summary and expands on ToggleMsg.
type CitationsBlock struct {
	citations []ragchat.Citation
	collapsed bool
	styles    Styles
}

// NewCitationsBlock creates a collapsed CitationsBlock.
func NewCitationsBlock(citations []ragchat.Citation, styles Styles) *CitationsBlock {
	return &CitationsBlock{
		citations: citations,
		collapsed: true,
		styles:    styles,
	}
}

// Collapsed reports whether only the summary line is shown.
func (b *CitationsBlock) Collapsed() bool { return b.collapsed }

func (b *CitationsBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *CitationsBlock) View(width int) string {
	arrow := "▼"
	if b.collapsed {
		arrow = "▶"
	}
	header := b.styles.Citation.Render(fmt.Sprintf("%s Sources (%d)", arrow, len(b.citations)))
	if b.collapsed {
		return header + "  " + b.styles.Muted.Render(b.summary(width))
	}

	lines := []string{header}
	for _, c := range b.citations {
		lines = append(lines, b.styles.Citation.Render(fmt.Sprintf("[%d]", c.ID))+" "+describe(c))
		if c.TextSnippet != "" {
			snippet := truncate(c.TextSnippet, width-len(citationIndent))
			lines = append(lines, citationIndent+b.styles.Snippet.Render(snippet))
		}
	}
	return strings.Join(lines, "\n")
}

// summary lists the cited document names on one line.
func (b *CitationsBlock) summary(width int) string {
	seen := make(map[string]bool)
	var docs []string
	for _, c := range b.citations {
		doc := sanitize.Text(c.DocumentID)
		if doc != "" && !seen[doc] {
			seen[doc] = true
			docs = append(docs, doc)
		}
	}
	// Leave room for the header.
	return truncate(strings.Join(docs, ", "), width-16)
}

func describe(c ragchat.Citation) string {
	var b strings.Builder
	b.WriteString(sanitize.Text(c.DocumentID))
	if c.Page > 0 {
		fmt.Fprintf(&b, ", p. %d", c.Page)
	}
	fmt.Fprintf(&b, " (%d%%)", c.Percent())
	return b.String()
}
