package ragchat

import (
	"context"
	"io"
)

// SliceStream is a Stream over a fixed frame sequence. If the sequence does
// not end with a terminal frame, FrameError{"stream ended unexpectedly"} is
// appended so the Stream contract holds.
type SliceStream struct {
	frames []Frame
	pos    int
	state  StreamState
}

// Interface compliance check.
var _ Stream = (*SliceStream)(nil)

// NewSliceStream returns a Stream that yields frames in order.
func NewSliceStream(frames ...Frame) *SliceStream {
	if len(frames) == 0 || !IsTerminal(frames[len(frames)-1]) {
		frames = append(frames, FrameError{Message: "stream ended unexpectedly"})
	}
	return &SliceStream{frames: frames}
}

// Next returns the next frame, or io.EOF after the terminal frame.
func (s *SliceStream) Next() (Frame, error) {
	switch s.state {
	case StreamStateComplete, StreamStateError:
		return nil, io.EOF
	case StreamStateClosed:
		return nil, ErrStreamClosed
	}
	f := s.frames[s.pos]
	s.pos++
	switch f.(type) {
	case FrameDone:
		s.state = StreamStateComplete
	case FrameError:
		s.state = StreamStateError
	default:
		s.state = StreamStateStreaming
	}
	return f, nil
}

// State returns the current stream state.
func (s *SliceStream) State() StreamState { return s.state }

// Close marks the stream closed unless it already terminated.
func (s *SliceStream) Close() error {
	if s.state != StreamStateComplete && s.state != StreamStateError {
		s.state = StreamStateClosed
	}
	return nil
}

// FramesFromAnswer expresses a complete answer as the frame sequence a
// streaming backend would have produced for it.
func FramesFromAnswer(a Answer) []Frame {
	var frames []Frame
	if a.ConversationID != "" {
		frames = append(frames, FrameConversationID{ID: a.ConversationID})
	}
	if a.Text != "" {
		frames = append(frames, FrameTextDelta{Text: a.Text})
	}
	if len(a.Citations) > 0 {
		frames = append(frames, FrameCitations{Citations: a.Citations})
	}
	return append(frames, FrameDone{})
}

// AnswerProvider adapts a non-streaming Answerer to the Provider interface,
// so single-response answers flow through the same Reducer contract.
type AnswerProvider struct {
	Answerer Answerer
}

// Interface compliance check.
var _ Provider = AnswerProvider{}

// Stream calls Chat and replays the answer as frames. A Chat failure becomes
// a single FrameError.
func (p AnswerProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	a, err := p.Answerer.Chat(ctx, req)
	if err != nil {
		return NewSliceStream(FrameError{Message: err.Error()}), nil
	}
	return NewSliceStream(FramesFromAnswer(a)...), nil
}
