package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Interface compliance checks.
var (
	_ ragchat.Provider      = (*Client)(nil)
	_ ragchat.Answerer      = (*Client)(nil)
	_ ragchat.HistoryReader = (*Client)(nil)
)

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	ConversationID string
	UserID         string
	LastMessage    string // truncated preview
	LastMessageAt  time.Time
	LastRole       ragchat.Role
}

// RateLimitStatus is the backend's view of a user's remaining quota.
type RateLimitStatus struct {
	UserID            string
	RequestsRemaining int
	TokensRemaining   int
	ResetAt           time.Time
	Limited           bool
	RetryAfter        time.Duration
}

// Client talks to the document-chat backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	identity    ragchat.Identity
	idleTimeout time.Duration
	historySize int
	limiter     *rate.Limiter
	logger      *slog.Logger
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

// WithIdentity sets the identity whose bearer token authenticates requests.
func WithIdentity(id ragchat.Identity) Option {
	return func(c *Client) { c.identity = id }
}

// WithIdleTimeout sets how long a streaming read may stall before the answer
// fails. Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithHistoryLimit sets how many messages History requests.
func WithHistoryLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.historySize = n
		}
	}
}

// WithRateLimit paces outgoing requests to rps per second with the given
// burst. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  http.DefaultClient,
		idleTimeout: defaultIdleTimeout,
		historySize: defaultHistorySize,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Stream opens a streaming answer. A non-2xx response is returned as an
// [*APIError]; once the response is accepted every failure is reported as a
// terminal error frame.
func (c *Client) Stream(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
	body := buildChatRequest(req, true)
	resp, reqID, err := c.do(ctx, http.MethodPost, streamPath, nil, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return NewDecoder(ctx, resp.Body,
		WithDecoderIdleTimeout(c.idleTimeout),
		WithDecoderLogger(c.logger.With("request_id", reqID)),
	), nil
}

// Chat requests a complete answer in one response.
func (c *Client) Chat(ctx context.Context, req ragchat.Request) (ragchat.Answer, error) {
	var out apiChatResponse
	if err := c.doJSON(ctx, http.MethodPost, chatPath, nil, buildChatRequest(req, false), &out); err != nil {
		return ragchat.Answer{}, err
	}
	return ragchat.Answer{
		Text:           out.Answer,
		Citations:      convertCitations(out.Citations),
		ConversationID: out.ConversationID,
		Usage: ragchat.Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
		Model:     out.Model,
		Timestamp: parseTime(out.Timestamp),
	}, nil
}

// History loads the stored messages of a conversation, oldest first.
func (c *Client) History(ctx context.Context, conversationID string) ([]ragchat.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("ragapi: conversation id must not be empty: %w", ragchat.ErrValidation)
	}
	q := url.Values{"limit": {strconv.Itoa(c.historySize)}}
	var out apiHistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, historyPath+"/"+url.PathEscape(conversationID), q, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]ragchat.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := ragchat.Message{
			Role:      ragchat.Role(m.Role),
			Content:   m.Content,
			Citations: ragchat.NormalizeCitations(convertCitations(m.Citations)),
			Timestamp: parseTime(m.CreatedAt),
			Model:     m.Model,
		}
		if m.Usage != nil {
			msg.Usage = ragchat.Usage{InputTokens: m.Usage.InputTokens, OutputTokens: m.Usage.OutputTokens}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Conversations lists a user's conversations, most recent first. The bool
// reports whether more conversations exist beyond limit.
func (c *Client) Conversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, bool, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out apiConversationList
	if err := c.doJSON(ctx, http.MethodGet, historyPath, q, nil, &out); err != nil {
		return nil, false, err
	}
	convs := make([]ConversationSummary, len(out.Conversations))
	for i, cv := range out.Conversations {
		convs[i] = ConversationSummary{
			ConversationID: cv.ConversationID,
			UserID:         cv.UserID,
			LastMessage:    cv.LastMessage,
			LastMessageAt:  parseTime(cv.LastMessageAt),
			LastRole:       ragchat.Role(cv.LastRole),
		}
	}
	return convs, out.HasMore, nil
}

// Delete removes a conversation and returns the number of deleted messages.
func (c *Client) Delete(ctx context.Context, conversationID, userID string) (int, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("ragapi: conversation id must not be empty: %w", ragchat.ErrValidation)
	}
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	var out apiDeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, historyPath+"/"+url.PathEscape(conversationID), q, nil, &out); err != nil {
		return 0, err
	}
	return out.DeletedMessages, nil
}

// RateLimit reports the backend's rate-limit status for userID.
func (c *Client) RateLimit(ctx context.Context, userID string) (RateLimitStatus, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	var out apiRateLimitResponse
	if err := c.doJSON(ctx, http.MethodGet, rateLimitPath, q, nil, &out); err != nil {
		return RateLimitStatus{}, err
	}
	st := RateLimitStatus{
		UserID:            out.UserID,
		RequestsRemaining: out.Status.RequestsRemaining,
		TokensRemaining:   out.Status.TokensRemaining,
		Limited:           out.Status.IsLimited,
		RetryAfter:        time.Duration(out.Status.RetryAfter * float64(time.Second)),
	}
	if out.Status.ResetAt > 0 {
		sec := int64(out.Status.ResetAt)
		nsec := int64((out.Status.ResetAt - float64(sec)) * 1e9)
		st.ResetAt = time.Unix(sec, nsec).UTC()
	}
	return st, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, _, err := c.do(ctx, method, path, query, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ragapi: decode %s response: %w", path, err)
	}
	return nil
}

// do sends one request and returns the response when the status is 2xx.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, accept string) (*http.Response, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("ragapi: rate limit wait: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("ragapi: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, "", fmt.Errorf("ragapi: %w", err)
	}

	reqID := uuid.New().String()
	httpReq.Header.Set(requestIDHeader, reqID)
	httpReq.Header.Set("Accept", accept)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.identity != nil && c.identity.Authenticated() {
		tok, err := c.identity.Token(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("ragapi: bearer token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	c.logger.Debug("sending request", "method", method, "path", path, "request_id", reqID)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("ragapi: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := parseHTTPError(resp)
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", reqID, "status", resp.StatusCode)
		return nil, "", apiErr
	}
	return resp, reqID, nil
}

func buildChatRequest(req ragchat.Request, stream bool) apiChatRequest {
	return apiChatRequest{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		DocIDs:         req.DocIDs,
		Template:       req.Template,
		TopK:           req.TopK,
		Stream:         stream,
		IncludeHistory: req.IncludeHistory,
		Language:       req.Language,
	}
}

// parseTime reads the backend's ISO-8601 timestamps. Unparsable values
// yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
