package ragchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultGreeting is the assistant message a fresh Transcript starts with.
const DefaultGreeting = "Hello! Ask me anything about your documents."

// ErrSuperseded is returned by Submit when Reset or Restore ran while its
// answer was streaming. The answer's remaining frames were discarded.
var ErrSuperseded = errors.New("answer superseded")

// State is the Reducer's coarse state.
type State int

const (
	StateIdle      State = iota // No answer is streaming.
	StateStreaming              // An answer is streaming.
)

// Reducer owns a Transcript and folds the frames of one in-flight answer into
// it. At most one stream is active at a time. Every stream is tagged with a
// request token; frames whose token is no longer current are discarded
// without mutation or notification. This is the only cancellation mechanism:
// a superseded stream is rendered inert, not forcibly terminated.
type Reducer struct {
	provider  Provider
	greeting  string
	defaults  Request
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	transcript Transcript
	token      uint64 // last minted request token
	active     uint64 // token of the streaming answer; 0 = idle
	streamIdx  int    // index of the streaming placeholder
	pending    []Citation
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithGreeting sets the text of the greeting message a fresh Transcript
// starts with.
func WithGreeting(text string) ReducerOption {
	return func(r *Reducer) { r.greeting = text }
}

// WithObserver registers an observer for Transcript changes.
func WithObserver(o Observer) ReducerOption {
	return func(r *Reducer) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ReducerOption {
	return func(r *Reducer) { r.logger = l }
}

// WithRequestDefaults sets the request parameters sent with every query.
// Query and ConversationID are always overwritten by Submit.
func WithRequestDefaults(req Request) ReducerOption {
	return func(r *Reducer) { r.defaults = req }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) ReducerOption {
	return func(r *Reducer) { r.now = now }
}

// NewReducer creates a Reducer with a fresh Transcript.
func NewReducer(provider Provider, opts ...ReducerOption) *Reducer {
	r := &Reducer{
		provider: provider,
		greeting: DefaultGreeting,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.transcript = r.freshTranscript()
	return r
}

// Submit sends query and folds the resulting stream into the Transcript. It
// blocks until the answer is sealed or failed, and returns a copy of the
// final assistant message.
//
// Submit returns ErrBusy if an answer is already streaming and a wrapped
// ErrValidation for an invalid query; in both cases the Transcript is left
// untouched. It returns ErrSuperseded if Reset or Restore ran before the
// answer finished. Backend and transport failures are not returned: they
// end the answer in the failed state.
func (r *Reducer) Submit(ctx context.Context, query string) (Message, error) {
	req := r.defaults
	req.Query = strings.TrimSpace(query)

	r.mu.Lock()
	if r.active != 0 || r.transcript.Streaming() {
		r.mu.Unlock()
		return Message{}, ErrBusy
	}
	req.ConversationID = r.transcript.ConversationID
	if err := req.Validate(); err != nil {
		r.mu.Unlock()
		return Message{}, err
	}
	r.token++
	tok := r.token
	r.active = tok
	r.pending = nil
	now := r.now()
	r.appendLocked(Message{Role: RoleUser, Content: req.Query, Timestamp: now})
	r.appendLocked(Message{Role: RoleAssistant, Timestamp: now, Streaming: true})
	r.streamIdx = len(r.transcript.Messages) - 1
	r.mu.Unlock()

	logger := r.logger.With("token", tok)
	logger.Debug("opening stream", "conversation_id", req.ConversationID)

	stream, err := r.provider.Stream(ctx, req)
	if err != nil {
		logger.Warn("stream request failed", "error", err)
		return r.finish(tok, FrameError{Message: err.Error()})
	}
	defer stream.Close()

	for {
		f, err := stream.Next()
		if err != nil {
			// The stream broke its contract by ending without a terminal
			// frame. Fail the answer so it never stays streaming.
			reason := "stream ended unexpectedly"
			if !errors.Is(err, io.EOF) {
				reason = err.Error()
			}
			logger.Warn("stream ended without terminal frame", "error", err)
			f = FrameError{Message: reason}
		}
		msg, terminal, current := r.apply(tok, f)
		if !current {
			logger.Debug("discarding frames from superseded stream")
			return Message{}, ErrSuperseded
		}
		if terminal {
			if msg.IsError {
				logger.Warn("answer failed", "reason", msg.ErrorText)
			} else {
				logger.Debug("answer sealed", "citations", len(msg.Citations), "bytes", len(msg.Content))
			}
			return msg, nil
		}
	}
}

func (r *Reducer) finish(tok uint64, f Frame) (Message, error) {
	msg, _, current := r.apply(tok, f)
	if !current {
		return Message{}, ErrSuperseded
	}
	return msg, nil
}

// apply folds one frame into the streaming message. It reports whether the
// frame was terminal and whether tok was still the active token; frames for
// stale tokens are dropped without mutation.
func (r *Reducer) apply(tok uint64, f Frame) (msg Message, terminal, current bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok != r.token || tok != r.active {
		return Message{}, false, false
	}

	m := &r.transcript.Messages[r.streamIdx]
	switch f := f.(type) {
	case FrameTextDelta:
		if f.Text != "" {
			m.Content += f.Text
			r.notifyLocked(ChangeUpdated, r.streamIdx)
		}
	case FrameConversationID:
		id := strings.TrimSpace(f.ID)
		switch {
		case id == "":
			r.logger.Debug("ignoring empty conversation id", "token", tok)
		case r.transcript.ConversationID == "":
			r.transcript.ConversationID = id
			r.notifyLocked(ChangeConversation, r.streamIdx)
		case r.transcript.ConversationID != id:
			r.logger.Debug("ignoring conversation id reassignment",
				"token", tok, "current", r.transcript.ConversationID, "received", id)
		}
	case FrameCitations:
		// Held back until the answer text is final.
		r.pending = append(r.pending, f.Citations...)
	case FrameDone:
		m.Citations = NormalizeCitations(r.pending)
		m.Streaming = false
		r.active = 0
		r.pending = nil
		r.notifyLocked(ChangeSealed, r.streamIdx)
		return m.Clone(), true, true
	case FrameError:
		m.IsError = true
		m.Streaming = false
		m.ErrorText = explain(f.Message)
		if m.Citations == nil {
			m.Citations = []Citation{}
		}
		r.active = 0
		r.pending = nil
		r.notifyLocked(ChangeFailed, r.streamIdx)
		return m.Clone(), true, true
	}
	return Message{}, false, true
}

func explain(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "The answer could not be completed."
	}
	return fmt.Sprintf("The answer could not be completed: %s", reason)
}

// Reset invalidates any streaming answer and replaces the Transcript with a
// fresh one holding only the greeting. The conversation identifier is
// cleared, so the next Submit starts a new conversation.
func (r *Reducer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token++
	r.active = 0
	r.pending = nil
	r.transcript = r.freshTranscript()
	r.notifyLocked(ChangeReset, -1)
}

// Restore invalidates any streaming answer and replaces the Transcript with
// t, typically rehydrated from history. Streaming flags in t are cleared.
func (r *Reducer) Restore(t Transcript) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token++
	r.active = 0
	r.pending = nil
	t = t.Clone()
	for i := range t.Messages {
		t.Messages[i].Streaming = false
		if t.Messages[i].Citations == nil {
			t.Messages[i].Citations = []Citation{}
		}
	}
	r.transcript = t
	r.notifyLocked(ChangeRestored, -1)
}

// Snapshot returns a deep copy of the Transcript.
func (r *Reducer) Snapshot() Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.Clone()
}

// Token returns the most recently minted request token.
func (r *Reducer) Token() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// State returns whether an answer is currently streaming.
func (r *Reducer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != 0 {
		return StateStreaming
	}
	return StateIdle
}

func (r *Reducer) freshTranscript() Transcript {
	return Transcript{
		Messages: []Message{{
			Role:      RoleAssistant,
			Content:   r.greeting,
			Citations: []Citation{},
			Timestamp: r.now(),
		}},
	}
}

func (r *Reducer) appendLocked(m Message) {
	r.transcript.Messages = append(r.transcript.Messages, m)
	r.notifyLocked(ChangeAppended, len(r.transcript.Messages)-1)
}

func (r *Reducer) notifyLocked(kind ChangeKind, idx int) {
	if len(r.observers) == 0 {
		return
	}
	c := Change{
		Kind:           kind,
		Token:          r.token,
		Index:          idx,
		ConversationID: r.transcript.ConversationID,
	}
	if idx >= 0 {
		c.Message = r.transcript.Messages[idx].Clone()
	}
	for _, o := range r.observers {
		o(c)
	}
}
