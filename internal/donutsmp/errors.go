package donutsmp

import (
	"errors"
	"fmt"
)

// ErrUnauthorized signals a credential problem (HTTP 401). Credential
// issues do not self-heal quickly, so callers must back off before any
// retry instead of hammering the endpoint.
var ErrUnauthorized = errors.New("unauthorized: check auth key and header format")

// ErrPageOutOfRange is returned before any network call when a caller
// requests a transaction page outside [1, 10].
var ErrPageOutOfRange = errors.New("transaction page must be between 1 and 10")

// ErrMissingAuthKey is returned before any network call when no bearer
// credential is configured.
var ErrMissingAuthKey = errors.New("auth key not set")

// RetryableError wraps a transient failure: a transport error or an
// HTTP 5xx response. Callers may retry the same page after a backoff.
type RetryableError struct {
	Page int
	Err  error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error on page %d: %v", e.Page, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks an unexpected non-200 response for a page. It is not
// retried further within the same call; the page is logged and skipped.
type FatalError struct {
	Page   int
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("unexpected status %d on page %d: %s", e.Status, e.Page, e.Body)
}

// IsRetryable reports whether err represents a transient condition.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
