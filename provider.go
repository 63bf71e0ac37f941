package ragchat

import (
	"context"
	"time"
)

// Provider opens a streaming answer for a Request.
type Provider interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Answerer returns a complete answer in a single response.
type Answerer interface {
	Chat(ctx context.Context, req Request) (Answer, error)
}

// HistoryReader loads the stored messages of a conversation in chronological
// order. Stored assistant messages already carry their finalized citations.
type HistoryReader interface {
	History(ctx context.Context, conversationID string) ([]Message, error)
}

// Request carries one chat turn. Zero values mean "backend default".
type Request struct {
	Query          string
	ConversationID string // empty on the first turn; the backend assigns one
	UserID         string
	DocIDs         []string
	Template       string // default, academic, concise, detailed
	TopK           int
	IncludeHistory bool
	Language       string // auto, vi, en
}

// Answer is a complete, non-streamed answer.
type Answer struct {
	Text           string
	Citations      []Citation
	ConversationID string
	Usage          Usage
	Model          string
	Timestamp      time.Time
}
