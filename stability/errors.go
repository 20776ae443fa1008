package stability

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates that a ReliableFetcher could not be constructed
// from the given URL or options.
var ErrInvalidConfig = errors.New("invalid fetcher configuration")

// ErrInvalidBackoff indicates a BackoffConfig or retry count that violates its
// constraints (see BackoffConfig.Validate).
var ErrInvalidBackoff = errors.New("invalid backoff configuration")

// ErrInvalidBreakerConfig indicates a CircuitBreakerConfig with a threshold
// below one or a non-positive open timeout.
var ErrInvalidBreakerConfig = errors.New("invalid circuit breaker configuration")

// ErrTimeout is matched by every TimeoutError.
var ErrTimeout = errors.New("orders request timed out")

// ErrMaxRetries is matched by every MaxRetriesError.
var ErrMaxRetries = errors.New("maximum retries exceeded")

// ErrCircuitOpen is matched by every CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Error codes carried by FetchError.
const (
	CodeTransport    = "TRANSPORT"
	CodeBadStatus    = "BAD_STATUS"
	CodeDecodeFailed = "DECODE_FAILED"
	CodeBuildRequest = "BUILD_REQUEST"
)

// FetchError describes a failed request to the orders endpoint.
//
// Code is one of the Code* constants. StatusCode is set when the endpoint
// answered. Retryable reports whether repeating the request may succeed.
type FetchError struct {
	Message    string
	Code       string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned by FetchOrdersWithTimeout when the configured
// timeout elapses before the endpoint answers.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("orders request exceeded timeout of %v", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// MaxRetriesError is returned when every attempt of FetchOrdersWithRetries
// failed with a retryable error. Err holds the error of the last attempt.
type MaxRetriesError struct {
	Attempts int
	Err      error
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("orders request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MaxRetriesError) Is(target error) bool {
	return target == ErrMaxRetries
}

func (e *MaxRetriesError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is returned without contacting the endpoint while the
// circuit breaker rejects calls. RetryAfter is the time left until the
// breaker lets a trial through; it is zero when a trial is already in flight.
type CircuitOpenError struct {
	State      BreakerState
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker is %s, retry after %v", e.State, e.RetryAfter)
	}
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// IsRetryable is the default retry predicate. FetchErrors report their own
// retryability; timeouts are retryable; everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	// A TimeoutError wraps the transport failure that ended the attempt,
	// so it has to be recognised before the FetchError inside it.
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}
