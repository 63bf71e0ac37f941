// Package ragapi implements [ragchat.Provider], [ragchat.Answerer] and
// [ragchat.HistoryReader] for the document-chat HTTP backend.
//
// Streaming answers arrive as newline-delimited "data: " lines. The decoder
// in this package classifies each line into a [ragchat.Frame] and guarantees
// that every stream ends with exactly one terminal frame, synthesizing an
// error frame when the transport fails, stalls, or closes early.
package ragapi

import "time"

const (
	defaultBaseURL     = "http://localhost:8000"
	defaultIdleTimeout = 60 * time.Second
	defaultHistorySize = 50

	chatPath      = "/api/chat"
	streamPath    = "/api/chat/stream"
	historyPath   = "/api/chat/history"
	rateLimitPath = "/api/chat/rate-limit"

	requestIDHeader = "X-Request-ID"
)

// Stream line sentinels.
const (
	linePrefix      = "data: "
	sentinelDone    = "[DONE]"
	prefixError     = "[ERROR]"
	prefixCitations = "[CITATIONS]"
	prefixConvID    = "[CONV_ID]"
)

// maxLineSize bounds a single stream line.
const maxLineSize = 1 << 20

// apiChatRequest is the JSON body sent to both chat endpoints.
type apiChatRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id,omitempty"`
	UserID         string   `json:"user_id,omitempty"`
	DocIDs         []string `json:"doc_ids,omitempty"`
	Template       string   `json:"template,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	Stream         bool     `json:"stream"`
	IncludeHistory bool     `json:"include_history"`
	Language       string   `json:"language,omitempty"`
}

// apiCitation is a citation as the backend serializes it. Older endpoints
// use doc_id, newer ones document_id.
type apiCitation struct {
	ID          int     `json:"id"`
	DocumentID  string  `json:"document_id"`
	DocID       string  `json:"doc_id"`
	Page        int     `json:"page"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// apiChatResponse is the body of a non-streaming chat response.
type apiChatResponse struct {
	Answer         string        `json:"answer"`
	Citations      []apiCitation `json:"citations"`
	ConversationID string        `json:"conversation_id"`
	Usage          apiUsage      `json:"usage"`
	Model          string        `json:"model"`
	ContextsUsed   int           `json:"contexts_used"`
	Query          string        `json:"query"`
	Timestamp      string        `json:"timestamp"`
}

// apiStoredMessage is one message of a stored conversation.
type apiStoredMessage struct {
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	CreatedAt      string        `json:"created_at"`
	UserID         string        `json:"user_id"`
	Citations      []apiCitation `json:"citations"`
	Usage          *apiUsage     `json:"usage"`
	Model          string        `json:"model"`
}

type apiHistoryResponse struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []apiStoredMessage `json:"messages"`
	Total          int                `json:"total"`
}

type apiConversation struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	LastMessage    string `json:"last_message"`
	LastMessageAt  string `json:"last_message_at"`
	LastRole       string `json:"last_role"`
}

type apiConversationList struct {
	Conversations []apiConversation `json:"conversations"`
	HasMore       bool              `json:"has_more"`
}

type apiDeleteResponse struct {
	ConversationID  string `json:"conversation_id"`
	DeletedMessages int    `json:"deleted_messages"`
	Status          string `json:"status"`
}

type apiRateLimitStatus struct {
	RequestsRemaining int     `json:"requests_remaining"`
	TokensRemaining   int     `json:"tokens_remaining"`
	ResetAt           float64 `json:"reset_at"`
	IsLimited         bool    `json:"is_limited"`
	RetryAfter        float64 `json:"retry_after"`
}

type apiRateLimitResponse struct {
	UserID string             `json:"user_id"`
	Status apiRateLimitStatus `json:"status"`
}

// apiErrorResponse is the JSON body returned on non-2xx HTTP responses.
// Validation failures carry a list of field errors instead of a string.
type apiErrorResponse struct {
	Detail any `json:"detail"`
}
