package gemini

import (
	"github.com/fwojciec/ragchat"
	"google.golang.org/genai"
)

// Memory exposes the conversation memory for testing.
type Memory = memory

// NewMemory exports newMemory for testing.
var NewMemory = newMemory

// Prepare exports memory.prepare for testing.
func (m *memory) Prepare(req ragchat.Request) (string, []*genai.Content) { return m.prepare(req) }

// Record exports memory.record for testing.
func (m *memory) Record(convID, query, answer string) { m.record(convID, query, answer) }
