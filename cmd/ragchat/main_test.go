package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/ragchat"
	ragjson "github.com/fwojciec/ragchat/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a config file and session directory under a temp dir.
type testEnv struct {
	dir        string
	configPath string
	sessionDir string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		sessionDir: filepath.Join(dir, "sessions"),
	}
	yaml := fmt.Sprintf("session_dir: %s\nlog:\n  file: %s\napi:\n  user_id: u-1\n%s",
		env.sessionDir, filepath.Join(dir, "ragchat.log"), extra)
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0o644))
	return env
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, env testEnv, baseURL string, args ...string) (string, string, error) {
	t.Helper()
	a := &app{}
	t.Cleanup(func() { _ = a.close() })
	cmd := a.rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := append([]string{"--config", env.configPath}, args...)
	if baseURL != "" {
		full = append(full, "--base-url", baseURL)
	}
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func frameHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, l := range lines {
			fmt.Fprintf(w, "data: %s\n\n", l)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func newBackend(t *testing.T, routes map[string]http.HandlerFunc) string {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

const citationsLine = `[CITATIONS][{"id":1,"document_id":"handbook.pdf","page":3,"text_snippet":"Paris is\n the capital.","score":0.87}]`

func TestAsk(t *testing.T) {
	t.Parallel()

	t.Run("streams answer and sources", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"POST /api/chat/stream": frameHandler("[CONV_ID]conv-1", "Paris is ", "the capital [1].", citationsLine, "[DONE]"),
		})

		stdout, _, err := execute(t, env, url, "ask", "What is the capital?")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Paris is the capital [1].\n")
		assert.Contains(t, stdout, "[1] handbook.pdf, p. 3 (87%)")
		assert.Contains(t, stdout, "Paris is the capital.")
		assert.Contains(t, stdout, "Conversation: conv-1")
	})

	t.Run("failed answer keeps partial text", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"POST /api/chat/stream": frameHandler("Partial", "[ERROR] model overloaded"),
		})

		stdout, stderr, err := execute(t, env, url, "ask", "q")
		require.ErrorIs(t, err, errAnswerFailed)
		assert.Equal(t, "Partial\n", stdout)
		assert.Contains(t, stderr, "The answer could not be completed: model overloaded")
	})

	t.Run("terminal escapes are stripped", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"POST /api/chat/stream": frameHandler("\x1b[31mred\x1b[0m", " text\x07", "[DONE]"),
		})

		stdout, _, err := execute(t, env, url, "ask", "q")
		require.NoError(t, err)
		assert.Equal(t, "red text\n", stdout)
	})

	t.Run("no-stream uses the chat endpoint", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"POST /api/chat": jsonHandler(`{"answer":"Whole answer [1].","conversation_id":"conv-9",
				"citations":[{"id":1,"doc_id":"a.pdf","page":0,"text_snippet":"","score":45}]}`),
		})

		stdout, _, err := execute(t, env, url, "ask", "--no-stream", "q")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Whole answer [1].")
		assert.Contains(t, stdout, "[1] a.pdf (45%)")
		assert.Contains(t, stdout, "Conversation: conv-9")
	})

	t.Run("invalid query is rejected before any request", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		_, _, err := execute(t, env, "http://127.0.0.1:1", "ask", "   ")
		require.ErrorIs(t, err, ragchat.ErrValidation)
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		_, _, err := execute(t, env, "", "ask")
		require.Error(t, err)
	})
}

func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("prints one conversation", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"GET /api/chat/history/conv-1": jsonHandler(`{"conversation_id":"conv-1","messages":[
				{"role":"user","content":"What is the capital?","created_at":"2026-01-02T10:00:00Z"},
				{"role":"assistant","content":"Paris [1].","created_at":"2026-01-02T10:00:05Z",
				 "citations":[{"id":1,"document_id":"handbook.pdf","page":3,"score":0.5}]}]}`),
		})

		stdout, _, err := execute(t, env, url, "history", "conv-1")
		require.NoError(t, err)
		assert.Contains(t, stdout, "user (")
		assert.Contains(t, stdout, "What is the capital?")
		assert.Contains(t, stdout, "Paris [1].")
		assert.Contains(t, stdout, "[1] handbook.pdf, p. 3 (50%)")
	})

	t.Run("lists conversations", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		var gotUser string
		url := newBackend(t, map[string]http.HandlerFunc{
			"GET /api/chat/history": func(w http.ResponseWriter, r *http.Request) {
				gotUser = r.URL.Query().Get("user_id")
				jsonHandler(`{"conversations":[{"conversation_id":"conv-1","last_message":"Paris\nis nice",
					"last_message_at":"2026-01-02T10:00:05Z","last_role":"assistant"}],"has_more":true}`)(w, r)
			},
		})

		stdout, _, err := execute(t, env, url, "history")
		require.NoError(t, err)
		assert.Equal(t, "u-1", gotUser)
		assert.Contains(t, stdout, "CONVERSATION")
		assert.Contains(t, stdout, "conv-1")
		assert.Contains(t, stdout, "Paris is nice")
		assert.Contains(t, stdout, "more conversations available")
	})

	t.Run("backend error", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"GET /api/chat/history/missing": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"detail":"conversation not found"}`)
			},
		})

		_, _, err := execute(t, env, url, "history", "missing")
		require.ErrorContains(t, err, "conversation not found")
	})

	t.Run("requires the ragapi provider", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "gemini:\n  api_key: k\n")
		_, _, err := execute(t, env, "", "--provider", "gemini", "history")
		require.ErrorIs(t, err, errNoBackend)
	})
}

func TestSessions(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		stdout, _, err := execute(t, env, "", "sessions")
		require.NoError(t, err)
		assert.Contains(t, stdout, "No sessions")
	})

	t.Run("lists saved sessions", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
		require.NoError(t, ragjson.Save(filepath.Join(env.sessionDir, "s1.json"), ragjson.Session{
			ID: "s1", CreatedAt: now, UpdatedAt: now,
			Transcript: ragchat.Transcript{
				ConversationID: "conv-1",
				Messages: []ragchat.Message{
					{Role: ragchat.RoleUser, Content: "What is the capital?", Timestamp: now},
					{Role: ragchat.RoleAssistant, Content: "Paris.", Timestamp: now, Citations: []ragchat.Citation{}},
				},
			},
		}))

		stdout, _, err := execute(t, env, "", "sessions")
		require.NoError(t, err)
		assert.Contains(t, stdout, "conv-1")
		assert.Contains(t, stdout, "What is the capital?")
		assert.Contains(t, stdout, "s1.json")
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	url := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/chat/rate-limit": jsonHandler(`{"user_id":"u-1","status":{"requests_remaining":0,
			"tokens_remaining":1200,"reset_at":1767348000,"is_limited":true,"retry_after":30}}`),
	})

	stdout, _, err := execute(t, env, url, "rate-limit")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Requests remaining: 0")
	assert.Contains(t, stdout, "Tokens remaining:   1200")
	assert.Contains(t, stdout, "retry after 30s")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	var method string
	url := newBackend(t, map[string]http.HandlerFunc{
		"/api/chat/history/conv-1": func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			jsonHandler(`{"conversation_id":"conv-1","deleted_messages":4,"status":"deleted"}`)(w, r)
		},
	})

	stdout, _, err := execute(t, env, url, "delete", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "Deleted 4 messages from conv-1\n", stdout)
}

func TestSetup(t *testing.T) {
	t.Parallel()

	t.Run("flags override the config file", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "api:\n  base_url: http://from-file:1\n")
		url := newBackend(t, map[string]http.HandlerFunc{
			"GET /api/chat/rate-limit": jsonHandler(`{"status":{}}`),
		})
		_, _, err := execute(t, env, url, "--log-level", "debug", "rate-limit")
		require.NoError(t, err)
	})

	t.Run("invalid flag value is reported", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		_, _, err := execute(t, env, "", "--provider", "openai", "sessions")
		require.ErrorContains(t, err, "unknown provider")
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		env.configPath = filepath.Join(env.dir, "absent.yaml")
		_, _, err := execute(t, env, "", "sessions")
		require.Error(t, err)
	})

	t.Run("console logging for one-shot commands", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		url := newBackend(t, map[string]http.HandlerFunc{
			"POST /api/chat/stream": frameHandler("[CITATIONS]not-json", "ok", "[DONE]"),
		})
		_, stderr, err := execute(t, env, url, "ask", "q")
		require.NoError(t, err)
		assert.True(t, strings.Contains(stderr, "level=WARN"), stderr)
	})
}

func TestChatCmd_Resume(t *testing.T) {
	t.Parallel()

	t.Run("from session file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "s.json")
		saved := ragjson.Session{
			ID: "s-1",
			Transcript: ragchat.Transcript{
				ConversationID: "conv-1",
				Messages:       []ragchat.Message{{Role: ragchat.RoleUser, Content: "hi"}},
			},
		}
		require.NoError(t, ragjson.Save(path, saved))

		c := &chatCmd{app: &app{}, sessionPath: path}
		r := ragchat.NewReducer(nil)
		cmd := c.command()
		cmd.SetContext(context.Background())
		s, err := c.resume(cmd, r, nil)
		require.NoError(t, err)
		assert.Equal(t, "s-1", s.ID)
		assert.Equal(t, "conv-1", r.Snapshot().ConversationID)
		assert.True(t, hasUserMessage(r.Snapshot()))
	})

	t.Run("conversation without backend", func(t *testing.T) {
		t.Parallel()
		c := &chatCmd{app: &app{}, conversationID: "conv-1"}
		cmd := c.command()
		cmd.SetContext(context.Background())
		_, err := c.resume(cmd, ragchat.NewReducer(nil), nil)
		require.ErrorIs(t, err, errNoBackend)
	})

	t.Run("fresh session", func(t *testing.T) {
		t.Parallel()
		c := &chatCmd{app: &app{}}
		cmd := c.command()
		cmd.SetContext(context.Background())
		r := ragchat.NewReducer(nil)
		s, err := c.resume(cmd, r, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, s.ID)
		assert.False(t, hasUserMessage(r.Snapshot()))
	})
}
