package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/goldmark"
)

var _ MessageBlock = (*AssistantTextBlock)(nil)

const pendingPlaceholder = "Searching your documents..."

// AssistantTextBlock renders answer text with markdown formatting while it
// streams. Finalized paragraphs (separated by a double newline) are rendered
// once per width and cached; only the trailing text is re-rendered on each
// delta.
type AssistantTextBlock struct {
	content   strings.Builder
	theme     ragchat.Theme
	styles    Styles
	streaming bool

	// finalizedRaw is the stable prefix ending at the last double newline.
	finalizedRaw     string
	finalizedByWidth map[int]string
}

// NewAssistantTextBlock creates a block for assistant text.
func NewAssistantTextBlock(theme ragchat.Theme, styles Styles) *AssistantTextBlock {
	return &AssistantTextBlock{
		theme:            theme,
		styles:           styles,
		finalizedByWidth: make(map[int]string),
	}
}

// Append adds a text delta.
func (b *AssistantTextBlock) Append(text string) {
	b.content.WriteString(text)
	b.promoteFinalized()
}

// Content returns the raw text appended so far.
func (b *AssistantTextBlock) Content() string {
	return b.content.String()
}

// SetStreaming marks whether more text may arrive. An empty streaming block
// shows a placeholder.
func (b *AssistantTextBlock) SetStreaming(streaming bool) {
	b.streaming = streaming
}

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	if b.streaming && b.content.Len() == 0 {
		return b.styles.Muted.Render(pendingPlaceholder)
	}
	finalized := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		// Close the fence for rendering only.
		trailing += "\n```"
	}
	if trailing == "" {
		return finalized
	}
	rendered := goldmark.Render(trailing, width, b.theme)
	if strings.TrimSpace(rendered) == "" {
		return finalized
	}
	if finalized == "" {
		return rendered
	}
	// Fragments are rendered independently; rejoin them with one paragraph
	// break to match a full-document render.
	return strings.TrimRight(finalized, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
}

// promoteFinalized moves the finalized prefix forward to the last "\n\n"
// that is not inside an unclosed fenced code block.
func (b *AssistantTextBlock) promoteFinalized() {
	raw := b.content.String()
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := goldmark.Render(b.finalizedRaw, width, b.theme)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AssistantTextBlock) trailingRaw() string {
	raw := b.content.String()
	if b.finalizedRaw == "" {
		return raw
	}
	return strings.TrimPrefix(raw, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence reports whether s has an odd number of "```" markers.
// Triple backticks inside inline code spans are miscounted; answers rarely
// contain them.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
