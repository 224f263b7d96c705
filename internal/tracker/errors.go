package tracker

import (
	"errors"
	"fmt"
)

// TransportError wraps a network, auth, or timeout failure against the
// remote tracker. Transport errors are retryable: the invoking event
// handler's redelivery mechanism is expected to re-run the whole unit
// of work. It is the only error class allowed to abort an in-progress
// propagation sequence.
type TransportError struct {
	Op  string // the store operation that failed
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tracker transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError for the named operation.
func Transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrLabelNotConfigured means the target repository lacks a label the
// core tried to attach. Callers catch and ignore it; the operation
// continues without the label.
var ErrLabelNotConfigured = errors.New("label not configured in target repository")

// ErrIssueNotFound is returned by FetchIssue when the issue does not
// exist. The resolver treats a mapping pointing at a missing issue as
// dangling and falls back to search.
var ErrIssueNotFound = errors.New("issue not found")
