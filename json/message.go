package json

import (
	"fmt"
	"time"

	"github.com/fwojciec/ragchat"
)

// messageDTO is the JSON representation of a Message.
type messageDTO struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Citations []citationDTO `json:"citations,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	IsError   bool          `json:"is_error,omitempty"`
	ErrorText string        `json:"error_text,omitempty"`
	Model     string        `json:"model,omitempty"`
	Usage     *usageDTO     `json:"usage,omitempty"`
}

type citationDTO struct {
	ID          int     `json:"id"`
	DocumentID  string  `json:"document_id"`
	Page        int     `json:"page,omitempty"`
	TextSnippet string  `json:"text_snippet"`
	Score       float64 `json:"score"`
}

func marshalMessage(m ragchat.Message) (messageDTO, error) {
	switch m.Role {
	case ragchat.RoleUser, ragchat.RoleAssistant:
	default:
		return messageDTO{}, fmt.Errorf("unknown message role: %q", m.Role)
	}
	dto := messageDTO{
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
		IsError:   m.IsError,
		ErrorText: m.ErrorText,
		Model:     m.Model,
	}
	if m.Streaming && !m.IsError {
		// An answer interrupted by the save is stored as failed so a restored
		// transcript never shows it as complete.
		dto.IsError = true
		dto.ErrorText = "The answer was interrupted."
	}
	if m.Usage != (ragchat.Usage{}) {
		dto.Usage = &usageDTO{InputTokens: m.Usage.InputTokens, OutputTokens: m.Usage.OutputTokens}
	}
	for _, c := range m.Citations {
		dto.Citations = append(dto.Citations, citationDTO{
			ID:          c.ID,
			DocumentID:  c.DocumentID,
			Page:        c.Page,
			TextSnippet: c.TextSnippet,
			Score:       c.Score,
		})
	}
	return dto, nil
}

func unmarshalMessage(dto messageDTO) (ragchat.Message, error) {
	role := ragchat.Role(dto.Role)
	switch role {
	case ragchat.RoleUser, ragchat.RoleAssistant:
	default:
		return ragchat.Message{}, fmt.Errorf("unknown message role: %q", dto.Role)
	}
	m := ragchat.Message{
		Role:      role,
		Content:   dto.Content,
		Citations: make([]ragchat.Citation, len(dto.Citations)),
		Timestamp: dto.Timestamp,
		IsError:   dto.IsError,
		ErrorText: dto.ErrorText,
		Model:     dto.Model,
	}
	for i, c := range dto.Citations {
		m.Citations[i] = ragchat.Citation{
			ID:          c.ID,
			DocumentID:  c.DocumentID,
			Page:        c.Page,
			TextSnippet: c.TextSnippet,
			Score:       c.Score,
		}
	}
	m.Citations = ragchat.NormalizeCitations(m.Citations)
	if dto.Usage != nil {
		m.Usage = ragchat.Usage{InputTokens: dto.Usage.InputTokens, OutputTokens: dto.Usage.OutputTokens}
	}
	return m, nil
}
