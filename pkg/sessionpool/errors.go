package sessionpool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrResourceCreationFailed is returned when the provider cannot create a resource.
	ErrResourceCreationFailed = errors.New("resource creation failed")
	// ErrDomainRejected is returned when a navigation target is outside the allow-list.
	ErrDomainRejected = errors.New("domain not allowed")
	// ErrSessionNotFound is returned when an id does not name a live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPoolClosed is returned by Acquire after Shutdown.
	ErrPoolClosed = errors.New("session pool is closed")
	// ErrOperationTimeout is returned when a page operation exceeds its deadline.
	ErrOperationTimeout = errors.New("operation timed out")
	// ErrOperationFailed wraps any other page operation failure.
	ErrOperationFailed = errors.New("operation failed")
)

// SessionError describes a failure tied to a pool operation and session.
// It matches its Kind with errors.Is and exposes the underlying cause.
type SessionError struct {
	Op        string
	SessionID string
	Kind      error
	Err       error
}

func (e *SessionError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.SessionID != "" {
		msg = fmt.Sprintf("%s (session %s)", msg, e.SessionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newSessionError(op, id string, kind, err error) *SessionError {
	return &SessionError{Op: op, SessionID: id, Kind: kind, Err: err}
}

// OperationError classifies a PageDriver failure. Deadline expiry becomes
// ErrOperationTimeout, anything else ErrOperationFailed. The cause is kept.
func OperationError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return err
	}
	kind := ErrOperationFailed
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrOperationTimeout
	}
	return newSessionError(op, id, kind, err)
}

// Kind returns a stable name for the class of err, suitable for callers that
// decide between retrying with a fresh session and reporting upward.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResourceCreationFailed):
		return "ResourceCreationFailed"
	case errors.Is(err, ErrDomainRejected):
		return "DomainRejected"
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrPoolClosed):
		return "PoolClosed"
	case errors.Is(err, ErrOperationTimeout), errors.Is(err, context.DeadlineExceeded):
		return "OperationTimeout"
	default:
		return "OperationFailed"
	}
}
