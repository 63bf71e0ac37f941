package ragchat

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrBusy indicates Submit was called while another answer is streaming.
	ErrBusy = errors.New("an answer is already streaming")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("not found")
)
