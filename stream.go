package ragchat

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving frames.
	StreamStateComplete                     // Terminal FrameDone returned.
	StreamStateError                        // Terminal FrameError returned.
	StreamStateClosed                       // Close() called before a terminal frame.
)

// Stream is a pull-based iterator over the frames of one answer. It is not
// seekable or replayable; a new answer needs a new Stream.
//
// Next returns frames in arrival order. Exactly one terminal frame
// (FrameDone or FrameError) is returned, after which Next returns io.EOF.
// Transport failures are reported as a synthesized FrameError, never as a
// Go error. After Close, Next returns ErrStreamClosed unless a terminal
// frame was already returned.
type Stream interface {
	Next() (Frame, error)
	State() StreamState
	Close() error
}
