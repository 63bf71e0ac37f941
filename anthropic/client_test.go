package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingServer captures request bodies and answers every request with
// the given SSE response.
type recordingServer struct {
	mu     sync.Mutex
	bodies []map[string]any
	header http.Header
}

func (rs *recordingServer) start(t *testing.T, resp sseResponse) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		rs.header = r.Header.Clone()
		rs.mu.Unlock()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		resp.handler()(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func (rs *recordingServer) body(i int) map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bodies[i]
}

func (rs *recordingServer) requests() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.bodies)
}

func TestClient_RequestFormat(t *testing.T) {
	t.Parallel()

	var rs recordingServer
	url := rs.start(t, textStreamResponse("ok"))
	client := anthropic.New("test-api-key",
		anthropic.WithBaseURL(url),
		anthropic.WithModel("claude-opus-4-20250514"),
		anthropic.WithMaxTokens(1024),
	)

	s, err := client.Stream(context.Background(), ragchat.Request{
		Query:    "Hello",
		Template: "concise",
		Language: "vi",
	})
	require.NoError(t, err)
	defer s.Close()

	rs.mu.Lock()
	header := rs.header
	rs.mu.Unlock()
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "test-api-key", header.Get("X-Api-Key"))
	assert.Equal(t, "2023-06-01", header.Get("Anthropic-Version"))

	body := rs.body(0)
	assert.Equal(t, "claude-opus-4-20250514", body["model"])
	assert.Equal(t, float64(1024), body["max_tokens"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, map[string]any{"type": "ephemeral"}, body["cache_control"])

	system := body["system"].([]any)
	require.Len(t, system, 1)
	sys0 := system[0].(map[string]any)
	assert.Equal(t, ragchat.SystemPrompt(ragchat.Request{Template: "concise", Language: "vi"}), sys0["text"])
	assert.Equal(t, map[string]any{"type": "ephemeral"}, sys0["cache_control"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	msg0 := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg0["role"])
	block0 := msg0["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", block0["type"])
	assert.Equal(t, "Hello", block0["text"])
}

func TestClient_DefaultModelAndMaxTokens(t *testing.T) {
	t.Parallel()

	var rs recordingServer
	url := rs.start(t, textStreamResponse("ok"))
	client := anthropic.New("k", anthropic.WithBaseURL(url), anthropic.WithModel(""), anthropic.WithMaxTokens(0))
	s, err := client.Stream(context.Background(), ragchat.Request{Query: "Hi"})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "claude-sonnet-4-20250514", rs.body(0)["model"])
	assert.Equal(t, float64(8192), rs.body(0)["max_tokens"])
}

func TestClient_ConversationMemory(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, includeHistory bool) []any {
		t.Helper()
		var rs recordingServer
		url := rs.start(t, textStreamResponse("Paris."))
		r := ragchat.NewReducer(
			anthropic.New("k", anthropic.WithBaseURL(url)),
			ragchat.WithRequestDefaults(ragchat.Request{IncludeHistory: includeHistory}),
		)
		_, err := r.Submit(context.Background(), "Capital of France?")
		require.NoError(t, err)
		_, err = r.Submit(context.Background(), "And its population?")
		require.NoError(t, err)
		require.Equal(t, 2, rs.requests())
		return rs.body(1)["messages"].([]any)
	}

	t.Run("includes earlier turns", func(t *testing.T) {
		t.Parallel()
		msgs := run(t, true)
		require.Len(t, msgs, 3)
		roles := []string{"user", "assistant", "user"}
		texts := []string{"Capital of France?", "Paris.", "And its population?"}
		for i, m := range msgs {
			mm := m.(map[string]any)
			assert.Equal(t, roles[i], mm["role"])
			assert.Equal(t, texts[i], mm["content"].([]any)[0].(map[string]any)["text"])
		}
	})

	t.Run("omits earlier turns", func(t *testing.T) {
		t.Parallel()
		msgs := run(t, false)
		require.Len(t, msgs, 1)
	})
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: integer above 1 expected"}}`))
	}))
	defer srv.Close()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	_, err := client.Stream(context.Background(), ragchat.Request{Query: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_request_error")
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestClient_HTTPErrorNonJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	_, err := client.Stream(context.Background(), ragchat.Request{Query: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
