package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat/sanitize"
)

var _ MessageBlock = (*ErrorBlock)(nil)

// ErrorBlock renders the explanation attached to a failed answer.
type ErrorBlock struct {
	text   string
	styles Styles
}

// NewErrorBlock creates an ErrorBlock.
func NewErrorBlock(text string, styles Styles) *ErrorBlock {
	return &ErrorBlock{text: sanitize.Text(text), styles: styles}
}

func (b *ErrorBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *ErrorBlock) View(width int) string {
	// The left border sits outside the styled width.
	return b.styles.ErrorBg.
		Width(max(width-1, 1)).
		Render(b.styles.Error.Render(b.text))
}
