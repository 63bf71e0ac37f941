// Package json persists chat sessions as versioned JSON files.
//
// A session file holds one Transcript plus bookkeeping timestamps. Files are
// written atomically through a temporary file and rename, so a crash never
// leaves a truncated session behind.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/ragchat"
)

// envelopeVersion is the current wire format version.
const envelopeVersion = 1

// Session is a persisted Transcript.
type Session struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Transcript ragchat.Transcript
}

// envelope is the v1 wire format for a persisted session.
type envelope struct {
	Version        int          `json:"version"`
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Messages       []messageDTO `json:"messages"`
}

// MarshalSession serializes a Session to JSON in v1 envelope format.
// Streaming state is not persisted.
func MarshalSession(s Session) ([]byte, error) {
	env := envelope{
		Version:        envelopeVersion,
		ID:             s.ID,
		ConversationID: s.Transcript.ConversationID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Messages:       make([]messageDTO, len(s.Transcript.Messages)),
	}
	for i, msg := range s.Transcript.Messages {
		dto, err := marshalMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		env.Messages[i] = dto
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalSession deserializes a Session from JSON in v1 envelope format.
func UnmarshalSession(data []byte) (Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Session{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return Session{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]ragchat.Message, len(env.Messages))
	for i, dto := range env.Messages {
		msg, err := unmarshalMessage(dto)
		if err != nil {
			return Session{}, fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return Session{
		ID:        env.ID,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
		Transcript: ragchat.Transcript{
			ConversationID: env.ConversationID,
			Messages:       msgs,
		},
	}, nil
}

// Save writes a Session to a JSON file, creating parent directories as needed.
func Save(path string, s Session) error {
	data, err := MarshalSession(s)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Session from a JSON file.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalSession(data)
}
