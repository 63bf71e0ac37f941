package mock

import "github.com/fwojciec/ragchat"

// Interface compliance check.
var _ ragchat.Stream = (*Stream)(nil)

// Stream is a test double for ragchat.Stream.
// Set the function fields for the methods you need. NextFn panics when nil
// to catch missing setup. CloseFn and StateFn are nil-safe (no-op and zero
// value) because callers commonly defer stream.Close().
type Stream struct {
	NextFn  func() (ragchat.Frame, error)
	StateFn func() ragchat.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (ragchat.Frame, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() ragchat.StreamState {
	if s.StateFn == nil {
		return ragchat.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
