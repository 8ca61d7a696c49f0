package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TransientError marks a provider failure that is worth exactly one retry
// before the turn degrades. Provider names the failing dependency.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient provider error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable provider failure.
func Transient(provider string, err error) error {
	return &TransientError{Provider: provider, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	// A deadline looks like a flaky provider from the caller's point of
	// view: one retry, then degrade.
	return errors.Is(err, context.DeadlineExceeded)
}

// StoreWriteError is fatal for the turn: conversational continuity cannot be
// guaranteed once the store refuses a write.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("conversation store write failed: %v", e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

func StoreWrite(err error) error { return &StoreWriteError{Err: err} }

func IsStoreWrite(err error) bool {
	var se *StoreWriteError
	return errors.As(err, &se)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
