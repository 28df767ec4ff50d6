package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrAlreadyExists is returned by Add when a document with the same
// identifier is already stored. The store is left unchanged.
var ErrAlreadyExists = errors.New("storage: document already exists")

// ErrUnavailable wraps backend connectivity failures on write paths.
var ErrUnavailable = errors.New("storage: backend unavailable")

// TransientError marks a backend failure that is worth a bounded retry:
// timeouts, oversized paginated responses, momentary connection loss.
// Read loops that exhaust their retries treat the failure as end-of-data
// rather than a hard error.
type TransientError struct {
	// Op is the backend operation that failed (e.g. "scroll", "scan").
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("storage: transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable: an explicit *TransientError,
// a context deadline, or a network timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
