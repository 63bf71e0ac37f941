package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/fwojciec/ragchat"
	"github.com/google/uuid"
)

// Interface compliance check.
var _ ragchat.Provider = (*Client)(nil)

// Client implements [ragchat.Provider] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
	maxTokens  int
	memory     *memory
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the length of each answer.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		memory:     newMemory(func() string { return uuid.New().String() }),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Stream sends the query, with earlier turns of the same conversation when
// IncludeHistory is set, and returns a [ragchat.Stream] of its answer. The
// first frame assigns the conversation identifier. A non-200 response is
// returned as an error.
func (c *Client) Stream(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
	convID, msgs := c.memory.prepare(req)
	body, err := json.Marshal(c.buildRequest(req, msgs))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	query := req.Query
	return newStream(ctx, resp.Body, convID, c.logger, func(answer string) {
		c.memory.record(convID, query, answer)
	}), nil
}

func (c *Client) buildRequest(req ragchat.Request, msgs []apiMessage) apiRequest {
	// The system prompt is stable per template, so it carries a cache
	// breakpoint; the top-level marker caches the message window.
	cc := &apiCacheControl{Type: "ephemeral"}
	return apiRequest{
		Model:        c.model,
		MaxTokens:    c.maxTokens,
		Stream:       true,
		System:       []apiTextBlock{{Type: "text", Text: ragchat.SystemPrompt(req), CacheControl: cc}},
		Messages:     msgs,
		CacheControl: cc,
	}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("anthropic: HTTP %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
}

func textMessage(role, text string) apiMessage {
	return apiMessage{Role: role, Content: []apiTextBlock{{Type: "text", Text: text}}}
}

// memory keeps the completed turns of each conversation.
type memory struct {
	newID func() string

	mu    sync.Mutex
	turns map[string][]apiMessage
}

func newMemory(newID func() string) *memory {
	return &memory{newID: newID, turns: make(map[string][]apiMessage)}
}

// prepare resolves the conversation identifier and builds the messages to
// send: prior turns (if requested) followed by the query.
func (m *memory) prepare(req ragchat.Request) (string, []apiMessage) {
	convID := req.ConversationID
	if convID == "" {
		convID = m.newID()
	}
	var msgs []apiMessage
	if req.IncludeHistory {
		m.mu.Lock()
		msgs = append(msgs, m.turns[convID]...)
		m.mu.Unlock()
	}
	return convID, append(msgs, textMessage("user", req.Query))
}

// record appends a completed turn.
func (m *memory) record(convID, query, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[convID] = append(m.turns[convID],
		textMessage("user", query),
		textMessage("assistant", answer),
	)
}
