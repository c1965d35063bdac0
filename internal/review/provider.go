// Package review sends batches of text to a language model and turns its
// replies into validated correction proposals.
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider completes one prompt against a remote model.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
	Close()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// RateLimited reports whether the failure was a 429.
func (e *RetryableError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth another attempt: transient HTTP
// statuses and per-call deadlines.
func IsRetryable(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func statusRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
