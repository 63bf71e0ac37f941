package ragchat

// Usage tracks token consumption reported by the backend. Zero values mean
// the backend did not report usage (streaming answers never do).
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}
