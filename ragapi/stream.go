package ragapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/ragchat"
)

// Decoder implements [ragchat.Stream] by classifying the lines of a framed
// response body. It owns the body and closes it when the stream terminates
// or Close is called.
//
// Bytes are split into lines before any text interpretation, so multi-byte
// characters split across reads are reassembled by the line buffer.
type Decoder struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	idle    time.Duration

	state     ragchat.StreamState
	stalled   atomic.Bool
	stopCtx   func() bool
	closeOnce sync.Once
	closeErr  error
}

// Interface compliance check.
var _ ragchat.Stream = (*Decoder)(nil)

// DecoderOption configures a [Decoder].
type DecoderOption func(*Decoder)

// WithDecoderIdleTimeout sets how long a single read may block before the
// stream fails. Zero disables the timeout.
func WithDecoderIdleTimeout(d time.Duration) DecoderOption {
	return func(dec *Decoder) { dec.idle = d }
}

// WithDecoderLogger sets the logger for recoverable decoding problems.
func WithDecoderLogger(l *slog.Logger) DecoderOption {
	return func(dec *Decoder) {
		if l != nil {
			dec.logger = l
		}
	}
}

// NewDecoder returns a Decoder reading frames from body. Cancelling ctx
// closes body and ends the stream with an error frame.
func NewDecoder(ctx context.Context, body io.ReadCloser, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		ctx:    ctx,
		body:   body,
		logger: slog.Default(),
		idle:   defaultIdleTimeout,
		state:  ragchat.StreamStateNew,
	}
	for _, o := range opts {
		o(d)
	}
	d.scanner = bufio.NewScanner(idleReader{d})
	d.scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	d.stopCtx = context.AfterFunc(ctx, func() { d.closeBody() })
	return d
}

// Next returns the next frame. After the terminal frame it returns io.EOF,
// and after Close it returns [ragchat.ErrStreamClosed].
func (d *Decoder) Next() (ragchat.Frame, error) {
	switch d.state {
	case ragchat.StreamStateComplete, ragchat.StreamStateError:
		return nil, io.EOF
	case ragchat.StreamStateClosed:
		return nil, ragchat.ErrStreamClosed
	}

	for d.scanner.Scan() {
		f := d.classifyLine(d.scanner.Text())
		if f == nil {
			continue
		}
		return d.emit(f), nil
	}
	return d.emit(ragchat.FrameError{Message: d.failure(d.scanner.Err())}), nil
}

// State returns the current stream state.
func (d *Decoder) State() ragchat.StreamState {
	return d.state
}

// Close releases the response body. Closing before a terminal frame moves
// the stream to [ragchat.StreamStateClosed].
func (d *Decoder) Close() error {
	if d.state != ragchat.StreamStateComplete && d.state != ragchat.StreamStateError {
		d.state = ragchat.StreamStateClosed
	}
	return d.closeBody()
}

func (d *Decoder) closeBody() error {
	d.closeOnce.Do(func() {
		d.stopCtx()
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}

// emit records state transitions for f and returns it.
func (d *Decoder) emit(f ragchat.Frame) ragchat.Frame {
	switch f.(type) {
	case ragchat.FrameDone:
		d.state = ragchat.StreamStateComplete
		d.closeBody()
	case ragchat.FrameError:
		d.state = ragchat.StreamStateError
		d.closeBody()
	default:
		d.state = ragchat.StreamStateStreaming
	}
	return f
}

// classifyLine maps one line to a frame. It returns nil for lines that carry
// no frame: non-data lines, empty text, and malformed citation batches.
func (d *Decoder) classifyLine(line string) ragchat.Frame {
	line = strings.TrimSuffix(line, "\r")
	payload, ok := strings.CutPrefix(line, linePrefix)
	if !ok {
		return nil
	}
	payload = strings.ToValidUTF8(payload, "\uFFFD")

	if payload == sentinelDone {
		return ragchat.FrameDone{}
	}
	if rest, ok := strings.CutPrefix(payload, prefixError); ok {
		msg := strings.TrimPrefix(rest, " ")
		if strings.TrimSpace(msg) == "" {
			msg = "unknown error"
		}
		return ragchat.FrameError{Message: msg}
	}
	if rest, ok := strings.CutPrefix(payload, prefixCitations); ok {
		cites, err := parseCitations(rest)
		if err != nil {
			d.logger.Warn("ignoring malformed citation batch", "error", err, "bytes", len(rest))
			return nil
		}
		return ragchat.FrameCitations{Citations: cites}
	}
	if rest, ok := strings.CutPrefix(payload, prefixConvID); ok {
		return ragchat.FrameConversationID{ID: rest}
	}
	if payload == "" {
		return nil
	}
	return ragchat.FrameTextDelta{Text: unescapeText(payload)}
}

// failure explains why the body ended without a sentinel.
func (d *Decoder) failure(err error) string {
	switch {
	case d.stalled.Load():
		return fmt.Sprintf("stream idle for %s", d.idle)
	case d.ctx.Err() != nil:
		return "request cancelled"
	case errors.Is(err, bufio.ErrTooLong):
		return fmt.Sprintf("stream line exceeds %d bytes", maxLineSize)
	case err == nil:
		return "stream ended unexpectedly"
	default:
		return err.Error()
	}
}

// unescapeText reverses the backend's newline escaping, which keeps each
// text chunk on a single line.
func unescapeText(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

func parseCitations(payload string) ([]ragchat.Citation, error) {
	var raw []apiCitation
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &raw); err != nil {
		return nil, fmt.Errorf("ragapi: parse citations: %w", err)
	}
	return convertCitations(raw), nil
}

func convertCitations(raw []apiCitation) []ragchat.Citation {
	out := make([]ragchat.Citation, len(raw))
	for i, c := range raw {
		doc := c.DocumentID
		if doc == "" {
			doc = c.DocID
		}
		out[i] = ragchat.Citation{
			ID:          c.ID,
			DocumentID:  doc,
			Page:        c.Page,
			TextSnippet: c.TextSnippet,
			Score:       ragchat.NormalizeScore(c.Score),
		}
	}
	return out
}

// idleReader arms the idle timer for the duration of each read. A read that
// blocks past the timeout has the body closed under it.
type idleReader struct {
	d *Decoder
}

func (r idleReader) Read(p []byte) (int, error) {
	d := r.d
	if d.idle > 0 {
		t := time.AfterFunc(d.idle, func() {
			d.stalled.Store(true)
			d.closeBody()
		})
		defer t.Stop()
	}
	return d.body.Read(p)
}
