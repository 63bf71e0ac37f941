package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

// Interface compliance checks.
var (
	_ ragchat.Provider      = (*Provider)(nil)
	_ ragchat.Answerer      = (*Answerer)(nil)
	_ ragchat.HistoryReader = (*HistoryReader)(nil)
)

// Provider is a test double for ragchat.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req ragchat.Request) (ragchat.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
	return p.StreamFn(ctx, req)
}

// Answerer is a test double for ragchat.Answerer.
// Set ChatFn before calling Chat.
type Answerer struct {
	ChatFn func(ctx context.Context, req ragchat.Request) (ragchat.Answer, error)
}

// Chat delegates to ChatFn.
func (a *Answerer) Chat(ctx context.Context, req ragchat.Request) (ragchat.Answer, error) {
	return a.ChatFn(ctx, req)
}

// HistoryReader is a test double for ragchat.HistoryReader.
// Set HistoryFn before calling History.
type HistoryReader struct {
	HistoryFn func(ctx context.Context, conversationID string) ([]ragchat.Message, error)
}

// History delegates to HistoryFn.
func (h *HistoryReader) History(ctx context.Context, conversationID string) ([]ragchat.Message, error) {
	return h.HistoryFn(ctx, conversationID)
}
