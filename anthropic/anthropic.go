// Package anthropic implements [ragchat.Provider] on top of the Anthropic
// Messages API, for answering without the document backend.
//
// It connects to the Messages API via SSE and classifies events into
// [ragchat.Frame] values through the pull-based [ragchat.Stream] interface.
// The SSE parser drives one step at a time. The API has no conversation
// identifiers or citations, so the client mints identifiers itself and keeps
// each conversation's turns in memory.
package anthropic

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	apiVersion       = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// apiCacheControl specifies a cache breakpoint for prompt caching.
type apiCacheControl struct {
	Type string `json:"type"` // always "ephemeral"
}

// apiRequest is the JSON body sent to the Anthropic Messages API.
type apiRequest struct {
	Model        string           `json:"model"`
	MaxTokens    int              `json:"max_tokens"`
	Stream       bool             `json:"stream"`
	System       []apiTextBlock   `json:"system,omitempty"`
	Messages     []apiMessage     `json:"messages"`
	CacheControl *apiCacheControl `json:"cache_control,omitempty"`
}

type apiMessage struct {
	Role    string         `json:"role"`
	Content []apiTextBlock `json:"content"`
}

type apiTextBlock struct {
	Type         string           `json:"type"` // always "text"
	Text         string           `json:"text"`
	CacheControl *apiCacheControl `json:"cache_control,omitempty"`
}

// SSE response types.

type sseContentBlockDelta struct {
	Type  string   `json:"type"`
	Index int      `json:"index"`
	Delta sseDelta `json:"delta"`
}

type sseDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type sseMessageDelta struct {
	Type  string             `json:"type"`
	Delta sseMessageDeltaVal `json:"delta"`
}

type sseMessageDeltaVal struct {
	StopReason *string `json:"stop_reason"`
}

type sseError struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}

type sseErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// apiErrorResponse is the JSON body returned on non-200 HTTP responses.
type apiErrorResponse struct {
	Type  string         `json:"type"`
	Error sseErrorDetail `json:"error"`
}
