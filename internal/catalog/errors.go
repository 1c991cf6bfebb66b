package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound    = errors.New("catalog: not found")
	ErrUnavailable = errors.New("catalog: unavailable")
)

// UpstreamError reports a non-2xx response from the catalog. The status is
// forwarded verbatim to API clients.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog: upstream status %d", e.Status)
}

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // Operation: "getBook", "search", "similar"
	BookID string // If applicable
	Err    error
}

func (e *Error) Error() string {
	if e.BookID != "" {
		return fmt.Sprintf("catalog %s [%s]: %v", e.Op, e.BookID, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError creates an Error with context.
func wrapError(op, bookID string, err error) error {
	return &Error{
		Op:     op,
		BookID: bookID,
		Err:    err,
	}
}

// transportError marks a network-level failure: the only kind that is
// retried and counted by the circuit breaker.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

// outcome labels an error for metrics.
func outcome(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &upstream):
		return "upstream_error"
	default:
		return "unavailable"
	}
}
