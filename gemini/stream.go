package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fwojciec/ragchat"
	"google.golang.org/genai"
)

// stream implements [ragchat.Stream] by wrapping the genai SDK's streaming
// iterator.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   ragchat.StreamState
	pending []ragchat.Frame
	answer  strings.Builder
	onDone  func(answer string)
}

// Interface compliance check.
var _ ragchat.Stream = (*stream)(nil)

func newStream(ctx context.Context, iterFn iter.Seq2[*genai.GenerateContentResponse, error], convID string, onDone func(string)) *stream {
	next, stop := iter.Pull2(iterFn)
	s := &stream{
		ctx:    ctx,
		pull:   next,
		stop:   stop,
		state:  ragchat.StreamStateNew,
		onDone: onDone,
	}
	if convID != "" {
		s.pending = append(s.pending, ragchat.FrameConversationID{ID: convID})
	}
	return s
}

// NewStreamFromIter creates a stream from a raw iterator. Exported for
// testing.
func NewStreamFromIter(ctx context.Context, iterFn iter.Seq2[*genai.GenerateContentResponse, error], convID string) ragchat.Stream {
	return newStream(ctx, iterFn, convID, nil)
}

func (s *stream) Next() (ragchat.Frame, error) {
	switch s.state {
	case ragchat.StreamStateComplete, ragchat.StreamStateError:
		return nil, io.EOF
	case ragchat.StreamStateClosed:
		return nil, ragchat.ErrStreamClosed
	}

	for len(s.pending) == 0 {
		if s.ctx.Err() != nil {
			return s.emit(ragchat.FrameError{Message: "request cancelled"}), nil
		}
		chunk, err, ok := s.pull()
		if !ok {
			return s.emit(ragchat.FrameDone{}), nil
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return s.emit(ragchat.FrameError{Message: "request cancelled"}), nil
			}
			return s.emit(ragchat.FrameError{Message: fmt.Sprintf("gemini: %v", err)}), nil
		}
		if f := s.processChunk(chunk); f != nil {
			return s.emit(f), nil
		}
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	return s.emit(f), nil
}

// processChunk queues the text parts of chunk. It returns a terminal frame
// when the chunk reports a blocked prompt.
func (s *stream) processChunk(chunk *genai.GenerateContentResponse) ragchat.Frame {
	if chunk == nil {
		return nil
	}
	if len(chunk.Candidates) == 0 {
		if pf := chunk.PromptFeedback; pf != nil && pf.BlockReason != "" {
			return ragchat.FrameError{Message: fmt.Sprintf("gemini: prompt blocked: %s", pf.BlockReason)}
		}
		return nil
	}
	cand := chunk.Candidates[0]
	if cand.Content == nil {
		return nil
	}
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		s.answer.WriteString(p.Text)
		s.pending = append(s.pending, ragchat.FrameTextDelta{Text: p.Text})
	}
	return nil
}

func (s *stream) emit(f ragchat.Frame) ragchat.Frame {
	switch f.(type) {
	case ragchat.FrameDone:
		s.state = ragchat.StreamStateComplete
		s.stop()
		if s.onDone != nil {
			s.onDone(s.answer.String())
		}
	case ragchat.FrameError:
		s.state = ragchat.StreamStateError
		s.stop()
	default:
		s.state = ragchat.StreamStateStreaming
	}
	return f
}

func (s *stream) State() ragchat.StreamState {
	return s.state
}

func (s *stream) Close() error {
	if s.state != ragchat.StreamStateComplete && s.state != ragchat.StreamStateError {
		s.state = ragchat.StreamStateClosed
	}
	s.stop()
	return nil
}
