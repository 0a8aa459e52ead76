package scan

import (
	"errors"
	"fmt"
)

// ErrSessionUsed is returned by Session.Run when the session has already been
// started. Sessions are single-use.
var ErrSessionUsed = errors.New("session already started")

// OpenError means the video could not be opened or reports metadata that
// makes sampling impossible. It is fatal to the session.
type OpenError struct {
	Path   string
	Reason string
	Err    error
}

func (e *OpenError) Error() string {
	msg := "open video"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpenError) Unwrap() error { return e.Err }

// InferenceError is a failure of the model for a single sampled second. It
// never ends the session.
type InferenceError struct {
	Second int
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %ds: %v", e.Second, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
