package json_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/ragchat"
	ragjson "github.com/fwojciec/ragchat/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() ragjson.Session {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ragjson.Session{
		ID:        "sess-1",
		CreatedAt: ts,
		UpdatedAt: ts.Add(5 * time.Minute),
		Transcript: ragchat.Transcript{
			ConversationID: "conv-abc",
			Messages: []ragchat.Message{
				{Role: ragchat.RoleAssistant, Content: ragchat.DefaultGreeting, Citations: []ragchat.Citation{}, Timestamp: ts},
				{Role: ragchat.RoleUser, Content: "What is an array?", Citations: []ragchat.Citation{}, Timestamp: ts.Add(time.Second)},
				{
					Role:    ragchat.RoleAssistant,
					Content: "An array is contiguous memory [1].",
					Citations: []ragchat.Citation{
						{ID: 1, DocumentID: "doc-1", Page: 12, TextSnippet: "Arrays store...", Score: 0.87},
					},
					Timestamp: ts.Add(2 * time.Second),
					Model:     "claude-haiku",
					Usage:     ragchat.Usage{InputTokens: 100, OutputTokens: 20},
				},
				{
					Role:      ragchat.RoleAssistant,
					Content:   "Hello wor",
					Citations: []ragchat.Citation{},
					Timestamp: ts.Add(3 * time.Second),
					IsError:   true,
					ErrorText: "The answer could not be completed: boom",
				},
			},
		},
	}
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()

	s := sampleSession()
	data, err := ragjson.MarshalSession(s)
	require.NoError(t, err)

	got, err := ragjson.UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestMarshalSession_Format(t *testing.T) {
	t.Parallel()

	data, err := ragjson.MarshalSession(sampleSession())
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"version": 1`)
	assert.Contains(t, s, `"conversation_id": "conv-abc"`)
	assert.Contains(t, s, `"document_id": "doc-1"`)
	assert.NotContains(t, s, "streaming")
}

func TestMarshalSession_InterruptedAnswerStoredAsFailed(t *testing.T) {
	t.Parallel()

	s := ragjson.Session{ID: "x", Transcript: ragchat.Transcript{Messages: []ragchat.Message{
		{Role: ragchat.RoleAssistant, Content: "partial", Streaming: true},
	}}}
	data, err := ragjson.MarshalSession(s)
	require.NoError(t, err)
	got, err := ragjson.UnmarshalSession(data)
	require.NoError(t, err)

	m := got.Transcript.Messages[0]
	assert.False(t, m.Streaming)
	assert.True(t, m.IsError)
	assert.Equal(t, "partial", m.Content)
	assert.NotEmpty(t, m.ErrorText)
}

func TestMarshalSession_UnknownRole(t *testing.T) {
	t.Parallel()

	s := ragjson.Session{Transcript: ragchat.Transcript{Messages: []ragchat.Message{{Role: "system"}}}}
	_, err := ragjson.MarshalSession(s)
	assert.ErrorContains(t, err, `unknown message role: "system"`)
}

func TestUnmarshalSession_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"invalid json", `{`, "unmarshal envelope"},
		{"wrong version", `{"version": 2, "messages": []}`, "unsupported envelope version: 2"},
		{"unknown role", `{"version": 1, "messages": [{"role": "tool"}]}`, `message 0: unknown message role: "tool"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ragjson.UnmarshalSession([]byte(tt.data))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestUnmarshalSession_NormalizesCitations(t *testing.T) {
	t.Parallel()

	data := `{"version": 1, "messages": [{"role": "assistant", "content": "x",
		"citations": [{"id": 0, "document_id": "a", "score": 80}, {"id": 0, "document_id": "b", "score": 0.5}]}]}`
	s, err := ragjson.UnmarshalSession([]byte(data))
	require.NoError(t, err)
	cites := s.Transcript.Messages[0].Citations
	require.Len(t, cites, 2)
	assert.Equal(t, 1, cites[0].ID)
	assert.Equal(t, 2, cites[1].ID)
	assert.InDelta(t, 0.8, cites[0].Score, 1e-9)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sess-1.json")
	s := sampleSession()

	require.NoError(t, ragjson.Save(path, s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	got, err := ragjson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := ragjson.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read file")
}

func TestList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	older := sampleSession()
	older.ID = "older"
	older.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := sampleSession()
	newer.ID = "newer"
	newer.UpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer.Transcript.Messages[1].Content = "A very long question that goes on and on well past the preview limit of the list\nsecond line"

	require.NoError(t, ragjson.Save(filepath.Join(dir, "older.json"), older))
	require.NoError(t, ragjson.Save(filepath.Join(dir, "2026", "newer.json"), newer))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	infos, err := ragjson.List(dir)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "newer", infos[0].ID)
	assert.Equal(t, filepath.Join(dir, "2026", "newer.json"), infos[0].Path)
	assert.Equal(t, "conv-abc", infos[0].ConversationID)
	assert.Equal(t, 4, infos[0].Messages)
	assert.Equal(t, 60, len([]rune(infos[0].Preview)))
	assert.NotContains(t, infos[0].Preview, "second line")

	assert.Equal(t, "older", infos[1].ID)
	assert.Equal(t, "What is an array?", infos[1].Preview)
}

func TestList_MissingDir(t *testing.T) {
	t.Parallel()
	infos, err := ragjson.List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, infos)
}
