package ragchat

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Limits enforced by the chat backend.
const (
	MaxQueryLength = 2000
	MaxTopK        = 10
)

// Templates lists the prompt templates the backend accepts.
var Templates = []string{"default", "academic", "concise", "detailed"}

// Languages lists the response language preferences the backend accepts.
var Languages = []string{"auto", "vi", "en"}

// Validate checks a Request against the backend's documented constraints.
func (r Request) Validate() error {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return fmt.Errorf("query must not be empty: %w", ErrValidation)
	}
	if n := utf8.RuneCountInString(q); n > MaxQueryLength {
		return fmt.Errorf("query must be at most %d characters, got %d: %w", MaxQueryLength, n, ErrValidation)
	}
	if r.TopK < 0 || r.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between 1 and %d (0 for the backend default), got %d: %w", MaxTopK, r.TopK, ErrValidation)
	}
	if r.Template != "" && !slices.Contains(Templates, r.Template) {
		return fmt.Errorf("unknown template %q: %w", r.Template, ErrValidation)
	}
	if r.Language != "" && !slices.Contains(Languages, r.Language) {
		return fmt.Errorf("unknown language %q: %w", r.Language, ErrValidation)
	}
	return nil
}
