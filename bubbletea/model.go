package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the ragchat TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	conv   Conversation
	notify <-chan struct{}
	theme  ragchat.Theme
	styles Styles

	views          []*messageView
	blockFocus     int // index into blocks() of the focused sources block (-1 = none)
	conversationID string

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	ready   bool
}

// New creates a TUI Model driving conv. n should be registered as an
// observer of conv; with a nil Notifier the view refreshes only when an
// answer ends.
func New(conv Conversation, n *Notifier, theme ragchat.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about your documents..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = ragchat.MaxQueryLength

	m := Model{
		Input:      ti,
		conv:       conv,
		theme:      theme,
		styles:     NewStyles(theme),
		blockFocus: -1,
	}
	if n != nil {
		m.notify = n.C()
	}
	return m
}

// Running returns whether an answer is streaming.
func (m Model) Running() bool { return m.running }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptChangedMsg:
		m = m.refresh()
		if m.running {
			return m, listenForChange(m.notify, m.done)
		}
		return m, nil

	case AnswerDoneMsg:
		if m.cancel != nil {
			m.cancel()
		}
		m.running = false
		m.cancel = nil
		m.done = nil
		if msg.Err != nil && !errors.Is(msg.Err, ragchat.ErrSuperseded) {
			m.err = msg.Err
		}
		m = m.refresh()
		return m, m.Input.Focus()
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusH := 1
	borderH := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusH-borderH, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	return m.refresh()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyCtrlN:
		// Start a new conversation. Reset before cancelling so the
		// cancelled stream's final frame is already stale.
		m.conv.Reset()
		if m.cancel != nil {
			m.cancel()
		}
		m.err = nil
		return m.refresh(), nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		if m.blockFocus >= 0 {
			blocks := m.blocks()
			_, cmd := blocks[m.blockFocus].Update(ToggleMsg{})
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		m = m.cycleFocusPrev()
		return m, nil
	}

	// When idle, pass keys to both the input (for typing) and the viewport
	// (for scrolling). Character keys go only to the input.
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	return m, tea.Batch(
		submit(ctx, m.conv, text, m.done),
		listenForChange(m.notify, m.done),
	)
}

// refresh re-reads the Transcript and re-renders the viewport.
func (m Model) refresh() Model {
	m = m.sync(m.conv.Snapshot())
	if m.ready {
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
	}
	return m
}

// sync brings the message views in line with t. Views are updated in place
// while the message they render is still growing; anything from the first
// diverging message onwards is rebuilt.
func (m Model) sync(t ragchat.Transcript) Model {
	m.conversationID = t.ConversationID
	views := m.views
	for i, msg := range t.Messages {
		if i < len(views) {
			if views[i].follows(msg) {
				views[i].update(msg, m.styles)
				continue
			}
			views = views[:i]
		}
		views = append(views, newMessageView(msg, m.theme, m.styles))
	}
	if len(views) > len(t.Messages) {
		views = views[:len(t.Messages)]
	}
	m.views = views
	return m.updateBlockFocus()
}

func (m Model) blocks() []MessageBlock {
	var out []MessageBlock
	for _, v := range m.views {
		out = append(out, v.blocks()...)
	}
	return out
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, block := range m.blocks() {
		if i > 0 {
			b.WriteString(blockSeparator(block))
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

// blockSeparator keeps an answer's error and sources attached to its text.
func blockSeparator(curr MessageBlock) string {
	switch curr.(type) {
	case *ErrorBlock, *CitationsBlock:
		return "\n"
	}
	return "\n\n"
}

// updateBlockFocus focuses the most recent sources block.
func (m Model) updateBlockFocus() Model {
	m.blockFocus = -1
	blocks := m.blocks()
	for i := len(blocks) - 1; i >= 0; i-- {
		if _, ok := blocks[i].(*CitationsBlock); ok {
			m.blockFocus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves blockFocus to the previous sources block, wrapping
// around.
func (m Model) cycleFocusPrev() Model {
	blocks := m.blocks()
	if len(blocks) == 0 {
		return m
	}
	start := m.blockFocus - 1
	if start < 0 {
		start = len(blocks) - 1
	}
	for i := range len(blocks) {
		idx := (start - i + len(blocks)) % len(blocks)
		if _, ok := blocks[idx].(*CitationsBlock); ok {
			m.blockFocus = idx
			return m
		}
	}
	m.blockFocus = -1
	return m
}

func (m Model) statusLine() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.running {
		return m.styles.Muted.Render("Answering... Ctrl+C to cancel, Ctrl+N for a new conversation")
	}
	status := "Enter to send, Tab for sources, Ctrl+N new conversation, Ctrl+C to quit"
	if m.conversationID != "" {
		status += "  [" + m.conversationID + "]"
	}
	return m.styles.Muted.Render(status)
}

// submit runs Submit in a command goroutine and closes done when it returns.
func submit(ctx context.Context, conv Conversation, query string, done chan<- struct{}) tea.Cmd {
	return func() tea.Msg {
		defer close(done)
		msg, err := conv.Submit(ctx, query)
		return AnswerDoneMsg{Message: msg, Err: err}
	}
}

// listenForChange waits for the next change notification. It returns nil
// once done is closed; the final state arrives with AnswerDoneMsg.
func listenForChange(notify <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-notify:
			return TranscriptChangedMsg{}
		case <-done:
			return nil
		}
	}
}
