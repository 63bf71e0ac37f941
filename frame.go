package ragchat

// Frame is a sealed interface representing one classified unit of a chat
// stream. A stream ends with exactly one terminal frame: FrameDone or
// FrameError. The unexported marker method prevents external implementations.
type Frame interface {
	frame()
}

// FrameTextDelta carries answer text with transport escapes already reversed.
type FrameTextDelta struct {
	Text string
}

func (FrameTextDelta) frame() {}

// FrameCitations carries a parsed citation batch for the current answer.
type FrameCitations struct {
	Citations []Citation
}

func (FrameCitations) frame() {}

// FrameConversationID carries the backend-assigned conversation identifier.
type FrameConversationID struct {
	ID string
}

func (FrameConversationID) frame() {}

// FrameDone signals successful completion of the answer.
type FrameDone struct{}

func (FrameDone) frame() {}

// FrameError signals a failed answer, either reported by the backend or
// synthesized from a transport failure.
type FrameError struct {
	Message string
}

func (FrameError) frame() {}

// IsTerminal reports whether f ends a stream.
func IsTerminal(f Frame) bool {
	switch f.(type) {
	case FrameDone, FrameError:
		return true
	default:
		return false
	}
}

// Interface compliance checks.
var (
	_ Frame = FrameTextDelta{}
	_ Frame = FrameCitations{}
	_ Frame = FrameConversationID{}
	_ Frame = FrameDone{}
	_ Frame = FrameError{}
)
