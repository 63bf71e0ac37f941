package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/fwojciec/ragchat"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ ragchat.Provider = (*Client)(nil)

// Client implements [ragchat.Provider] for the Google Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	maxTokens int
	memory    *memory
}

// Option configures a [Client].
type Option func(*Client)

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

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client:    gc,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		memory:    newMemory(func() string { return uuid.New().String() }),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream sends the query, with earlier turns of the same conversation when
// IncludeHistory is set, and returns a [ragchat.Stream] of its answer. The
// first frame assigns the conversation identifier.
func (c *Client) Stream(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
	convID, contents := c.memory.prepare(req)
	iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, BuildConfig(req, c.maxTokens))
	query := req.Query
	return newStream(ctx, iter, convID, func(answer string) {
		c.memory.record(convID, query, answer)
	}), nil
}

// BuildConfig maps request options onto a generation config. Exported for
// testing.
func BuildConfig(req ragchat.Request, maxTokens int) *genai.GenerateContentConfig {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if prompt := ragchat.SystemPrompt(req); prompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt}},
		}
	}
	return config
}

// memory keeps the completed turns of each conversation.
type memory struct {
	newID func() string

	mu    sync.Mutex
	turns map[string][]*genai.Content
}

func newMemory(newID func() string) *memory {
	return &memory{newID: newID, turns: make(map[string][]*genai.Content)}
}

// prepare resolves the conversation identifier and builds the contents to
// send: prior turns (if requested) followed by the query.
func (m *memory) prepare(req ragchat.Request) (string, []*genai.Content) {
	convID := req.ConversationID
	if convID == "" {
		convID = m.newID()
	}
	var contents []*genai.Content
	if req.IncludeHistory {
		m.mu.Lock()
		contents = append(contents, m.turns[convID]...)
		m.mu.Unlock()
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Query}},
	})
	return convID, contents
}

// record appends a completed turn.
func (m *memory) record(convID, query, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[convID] = append(m.turns[convID],
		&genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: query}}},
		&genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: answer}}},
	)
}
