package bubbletea

import (
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
)

// messageView holds the blocks rendering one Transcript message and the
// message state they were built from.
type messageView struct {
	role      ragchat.Role
	timestamp time.Time
	content   string
	streaming bool
	isError   bool
	citations int

	user    *UserMessageBlock
	text    *AssistantTextBlock
	sources *CitationsBlock
	failure *ErrorBlock
}

func newMessageView(msg ragchat.Message, theme ragchat.Theme, styles Styles) *messageView {
	v := &messageView{role: msg.Role, timestamp: msg.Timestamp, streaming: true}
	if msg.Role == ragchat.RoleUser {
		v.user = NewUserMessageBlock(msg.Content, styles)
		v.content = msg.Content
		v.streaming = false
		return v
	}
	v.text = NewAssistantTextBlock(theme, styles)
	v.update(msg, styles)
	return v
}

// follows reports whether msg is a later state of the message v was built
// from, so v can be updated in place.
func (v *messageView) follows(msg ragchat.Message) bool {
	if msg.Role != v.role || !msg.Timestamp.Equal(v.timestamp) {
		return false
	}
	if v.streaming {
		return strings.HasPrefix(msg.Content, v.content)
	}
	return msg.Content == v.content &&
		msg.IsError == v.isError &&
		len(msg.Citations) == v.citations &&
		!msg.Streaming
}

func (v *messageView) update(msg ragchat.Message, styles Styles) {
	if v.text == nil || !v.streaming {
		return
	}
	if delta := strings.TrimPrefix(msg.Content, v.content); delta != "" {
		v.text.Append(delta)
		v.content = msg.Content
	}
	v.streaming = msg.Streaming
	v.text.SetStreaming(msg.Streaming)
	if msg.Streaming {
		return
	}
	v.isError = msg.IsError
	v.citations = len(msg.Citations)
	if len(msg.Citations) > 0 {
		v.sources = NewCitationsBlock(msg.Citations, styles)
	}
	if msg.IsError {
		v.failure = NewErrorBlock(msg.ErrorText, styles)
	}
}

func (v *messageView) blocks() []MessageBlock {
	if v.user != nil {
		return []MessageBlock{v.user}
	}
	var out []MessageBlock
	if v.text.Content() != "" || v.streaming {
		out = append(out, v.text)
	}
	if v.failure != nil {
		out = append(out, v.failure)
	}
	if v.sources != nil {
		out = append(out, v.sources)
	}
	return out
}
