package ragchat

// ChangeKind classifies a Transcript mutation.
type ChangeKind int

const (
	ChangeAppended     ChangeKind = iota // A message was appended at Index.
	ChangeUpdated                        // The streaming message at Index grew.
	ChangeConversation                   // The conversation identifier was assigned.
	ChangeSealed                         // The answer at Index completed.
	ChangeFailed                         // The answer at Index failed.
	ChangeReset                          // The transcript was replaced by a fresh one.
	ChangeRestored                       // The transcript was replaced from history.
)

var changeKindNames = [...]string{
	ChangeAppended:     "appended",
	ChangeUpdated:      "updated",
	ChangeConversation: "conversation",
	ChangeSealed:       "sealed",
	ChangeFailed:       "failed",
	ChangeReset:        "reset",
	ChangeRestored:     "restored",
}

func (k ChangeKind) String() string {
	if int(k) < len(changeKindNames) {
		return changeKindNames[k]
	}
	return "unknown"
}

// Change describes one Transcript mutation. Message is a copy of the
// affected message; for Reset and Restored, Index is -1 and Message is zero.
type Change struct {
	Kind           ChangeKind
	Token          uint64
	Index          int
	Message        Message
	ConversationID string
}

// Terminal reports whether c ends a stream.
func (c Change) Terminal() bool {
	return c.Kind == ChangeSealed || c.Kind == ChangeFailed
}

// Observer receives Transcript changes in mutation order. Observers are
// called with the Reducer's lock held and must not call back into it.
type Observer func(Change)
