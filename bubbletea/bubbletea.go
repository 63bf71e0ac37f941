// Package bubbletea provides a Bubble Tea TUI for a ragchat conversation.
//
// The Model drives a Conversation (normally a *ragchat.Reducer) and renders
// its Transcript. The Reducer reports changes to a Notifier registered as
// one of its observers; the Model re-reads the Transcript snapshot whenever
// the Notifier fires.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat"
)

// Conversation is the part of *ragchat.Reducer the TUI drives.
type Conversation interface {
	Submit(ctx context.Context, query string) (ragchat.Message, error)
	Reset()
	Snapshot() ragchat.Transcript
}

// Interface compliance check.
var _ Conversation = (*ragchat.Reducer)(nil)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// Notifier coalesces Reducer changes into a wake-up signal. Observe never
// blocks, so it is safe to call with the Reducer's lock held.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier creates a Notifier. Register Observe with ragchat.WithObserver.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Observe implements ragchat.Observer.
func (n *Notifier) Observe(ragchat.Change) {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C returns the wake-up channel.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}

// TranscriptChangedMsg signals that the Transcript changed and the view
// should be refreshed from a new snapshot.
type TranscriptChangedMsg struct{}

// AnswerDoneMsg signals that Submit returned.
type AnswerDoneMsg struct {
	Message ragchat.Message
	Err     error
}
