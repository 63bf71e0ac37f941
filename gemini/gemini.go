// Package gemini implements [ragchat.Provider] on top of the Google Gemini
// API, for answering without the document backend.
//
// It wraps the google.golang.org/genai SDK. Streaming uses the SDK's
// iter.Seq2 iterator, pulled one chunk at a time and classified into
// [ragchat.Frame] values. Gemini has no conversation identifiers or
// citations, so the client mints identifiers itself and keeps each
// conversation's turns in memory.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8192
)
