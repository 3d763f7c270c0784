package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for generation calls. Check with errors.Is.
var (
	ErrTimeout         = errors.New("ai: generation timed out")
	ErrRateLimited     = errors.New("ai: rate limited")
	ErrInvalidResponse = errors.New("ai: response failed validation")
	ErrUnavailable     = errors.New("ai: no provider available")
	ErrBudgetExhausted = errors.New("ai: token budget exhausted")
)

// StatusError is a non-2xx response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Retryable reports whether err is worth retrying: timeouts, rate limits and
// server-side failures.
func Retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}
