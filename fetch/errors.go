package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// TransientError marks a failure that is safe to retry: timeouts, connection
// resets, 429 and 5xx responses.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient: http %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError is a non-transient HTTP failure (4xx other than 429). The
// fetcher fails immediately without retrying.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.Code, e.URL)
}

// ExhaustedError is returned after the final retry attempt fails. It carries
// the last underlying error; callers treat it as "listing unavailable".
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// CancelledError surfaces run-wide cancellation. The affected listing is
// recorded as skipped, never retried.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or anything in its chain) may succeed on
// a retry.
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
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsCancelled reports whether err stems from run-wide cancellation.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// IsExhausted reports whether err is a retry-exhaustion failure.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// errorTypeLabel maps an error to the metrics label for its category.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var te *TransientError
	if errors.As(err, &te) {
		switch {
		case te.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case te.StatusCode != 0:
			return "server_error"
		}
		return "connection"
	}
	var se *StatusError
	if errors.As(err, &se) {
		return "client_error"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
