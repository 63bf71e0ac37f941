package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ MessageBlock = (*UserMessageBlock)(nil)

const userPrefix = "> "

// UserMessageBlock renders a user query with a "> " prefix. Wrapped lines
// are indented under the text.
type UserMessageBlock struct {
	text   string
	styles Styles
}

// NewUserMessageBlock creates a UserMessageBlock.
func NewUserMessageBlock(text string, styles Styles) *UserMessageBlock {
	return &UserMessageBlock{text: text, styles: styles}
}

func (b *UserMessageBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *UserMessageBlock) View(width int) string {
	textWidth := max(width-len(userPrefix), 1)
	wrapped := lipgloss.NewStyle().Width(textWidth).Render(b.text)
	lines := strings.Split(wrapped, "\n")
	indent := strings.Repeat(" ", len(userPrefix))
	for i := range lines {
		if i == 0 {
			lines[i] = b.styles.UserMsg.Render(userPrefix) + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
