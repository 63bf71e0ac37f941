package ragchat

import (
	"slices"
	"strings"
	"time"
)

// Message is one entry in a Transcript.
//
// A user message is immutable from creation. An assistant message starts as
// a streaming placeholder with empty content; only the Reducer that created
// it may mutate it, and only while Streaming is true. Once sealed, Content is
// frozen and Citations are attached (possibly empty). A failed answer keeps
// its partial Content and carries the explanation in ErrorText.
type Message struct {
	Role      Role
	Content   string
	Citations []Citation
	Timestamp time.Time
	Streaming bool
	IsError   bool
	ErrorText string
	Model     string
	Usage     Usage
}

// Display returns the text shown for the message: the content, followed by
// the error explanation on failed answers.
func (m Message) Display() string {
	if !m.IsError || m.ErrorText == "" {
		return m.Content
	}
	if m.Content == "" {
		return m.ErrorText
	}
	return strings.TrimRight(m.Content, "\n") + "\n\n" + m.ErrorText
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.Citations != nil {
		m.Citations = slices.Clone(m.Citations)
	}
	return m
}
