package ragchat

// Transcript is the ordered message history of one conversation. It is
// append-only except for in-place mutation of a trailing streaming message.
type Transcript struct {
	// ConversationID is assigned by the backend inside the first stream and
	// never changes afterwards. Empty until assigned.
	ConversationID string
	Messages       []Message
}

// Clone returns a deep copy of t.
func (t Transcript) Clone() Transcript {
	out := Transcript{ConversationID: t.ConversationID}
	if t.Messages != nil {
		out.Messages = make([]Message, len(t.Messages))
		for i, m := range t.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}

// Last returns the final message and true, or false if t is empty.
func (t Transcript) Last() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// Streaming reports whether any message is still streaming.
func (t Transcript) Streaming() bool {
	for _, m := range t.Messages {
		if m.Streaming {
			return true
		}
	}
	return false
}
