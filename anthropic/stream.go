package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fwojciec/ragchat"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// stream implements [ragchat.Stream] by parsing SSE events from an HTTP
// response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	logger  *slog.Logger
	state   ragchat.StreamState
	pending []ragchat.Frame
	answer  strings.Builder
	onDone  func(answer string)
}

// Interface compliance check.
var _ ragchat.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, convID string, logger *slog.Logger, onDone func(string)) *stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	s := &stream{
		body:    body,
		scanner: sc,
		ctx:     ctx,
		logger:  logger,
		state:   ragchat.StreamStateNew,
		onDone:  onDone,
	}
	if convID != "" {
		s.pending = append(s.pending, ragchat.FrameConversationID{ID: convID})
	}
	return s
}

// Next reads the next frame from the SSE stream. Failures are reported as a
// terminal FrameError; io.EOF follows the terminal frame.
func (s *stream) Next() (ragchat.Frame, error) {
	switch s.state {
	case ragchat.StreamStateComplete, ragchat.StreamStateError:
		return nil, io.EOF
	case ragchat.StreamStateClosed:
		return nil, ragchat.ErrStreamClosed
	}

	if len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		return s.emit(f), nil
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			return s.emit(s.failure(err)), nil
		}
		f, err := s.processEvent(eventType, data)
		if err != nil {
			return s.emit(ragchat.FrameError{Message: err.Error()}), nil
		}
		if f != nil {
			return s.emit(f), nil
		}
		// Non-semantic event (ping, message_start, etc.) - keep reading.
	}
}

// State returns the current stream state.
func (s *stream) State() ragchat.StreamState {
	return s.state
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != ragchat.StreamStateComplete && s.state != ragchat.StreamStateError {
		s.state = ragchat.StreamStateClosed
	}
	return s.body.Close()
}

func (s *stream) emit(f ragchat.Frame) ragchat.Frame {
	switch f.(type) {
	case ragchat.FrameDone:
		s.state = ragchat.StreamStateComplete
		s.body.Close()
		if s.onDone != nil {
			s.onDone(s.answer.String())
		}
	case ragchat.FrameError:
		s.state = ragchat.StreamStateError
		s.body.Close()
	default:
		s.state = ragchat.StreamStateStreaming
	}
	return f
}

// failure converts a read error into the terminal frame.
func (s *stream) failure(err error) ragchat.Frame {
	switch {
	case s.ctx.Err() != nil:
		return ragchat.FrameError{Message: "request cancelled"}
	case errors.Is(err, io.EOF):
		// Normal completion arrives as message_stop; a bare EOF is a
		// truncated stream.
		return ragchat.FrameError{Message: "stream ended unexpectedly"}
	default:
		return ragchat.FrameError{Message: fmt.Sprintf("anthropic: %v", err)}
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if v, ok := strings.CutPrefix(line, "event: "); ok {
			eventType = v
		} else if v, ok := strings.CutPrefix(line, "data: "); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(v)
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}

	// Scanner exhausted without error = EOF.
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps an SSE event to a frame. Returns a nil frame for
// non-semantic events.
func (s *stream) processEvent(eventType, data string) (ragchat.Frame, error) {
	switch eventType {
	case "content_block_delta":
		return s.handleContentBlockDelta(data)
	case "message_delta":
		return nil, s.handleMessageDelta(data)
	case "message_stop":
		return ragchat.FrameDone{}, nil
	case "error":
		return nil, s.handleError(data)
	default:
		// message_start, content_block_start/stop, ping and unknown event
		// types carry nothing the transcript needs.
		return nil, nil
	}
}

func (s *stream) handleContentBlockDelta(data string) (ragchat.Frame, error) {
	var evt sseContentBlockDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, fmt.Errorf("anthropic: failed to parse content_block_delta: %w", err)
	}
	// Thinking and signature deltas are not part of the answer.
	if evt.Delta.Type != "text_delta" || evt.Delta.Text == "" {
		return nil, nil
	}
	s.answer.WriteString(evt.Delta.Text)
	return ragchat.FrameTextDelta{Text: evt.Delta.Text}, nil
}

func (s *stream) handleMessageDelta(data string) error {
	var evt sseMessageDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse message_delta: %w", err)
	}
	if r := evt.Delta.StopReason; r != nil && *r != "end_turn" && *r != "stop_sequence" {
		s.logger.Warn("answer stopped early", "stop_reason", *r)
	}
	return nil
}

func (s *stream) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return fmt.Errorf("anthropic: failed to parse error event: %w", err)
	}
	return fmt.Errorf("anthropic: %s: %s", evt.Error.Type, evt.Error.Message)
}
