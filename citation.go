package ragchat

import "math"

// Citation is a reference to a source passage backing part of an answer.
// Citations are immutable once attached to a Message.
type Citation struct {
	ID          int // 1-based, unique within a message
	DocumentID  string
	Page        int // 0 = unknown
	TextSnippet string
	Score       float64 // relevance in [0, 1]
}

// Percent returns the relevance score on a 0-100 scale for display.
func (c Citation) Percent() int {
	return int(math.Round(c.Score * 100))
}

// NormalizeScore converts a backend relevance score to the canonical [0, 1]
// scale. The backend reports cosine similarity in [0, 1] on some paths and a
// percentage on others, so values in (1, 100] are read as percentages.
func NormalizeScore(raw float64) float64 {
	switch {
	case math.IsNaN(raw) || raw <= 0:
		return 0
	case raw <= 1:
		return raw
	case raw <= 100:
		return raw / 100
	default:
		return 1
	}
}

// NormalizeCitations returns a copy of cs with scores on the canonical scale,
// negative pages cleared, and IDs made 1-based and unique. Order is preserved.
// IDs that are already valid and unique are kept; the rest are assigned the
// next free ordinal.
func NormalizeCitations(cs []Citation) []Citation {
	if len(cs) == 0 {
		return []Citation{}
	}
	out := make([]Citation, len(cs))
	seen := make(map[int]bool, len(cs))
	var invalid []int
	for i, c := range cs {
		c.Score = NormalizeScore(c.Score)
		if c.Page < 0 {
			c.Page = 0
		}
		if c.ID <= 0 || seen[c.ID] {
			invalid = append(invalid, i)
		} else {
			seen[c.ID] = true
		}
		out[i] = c
	}
	next := 1
	for _, i := range invalid {
		for seen[next] {
			next++
		}
		out[i].ID = next
		seen[next] = true
	}
	return out
}
