package stability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	transport := &FetchError{Code: CodeTransport, Message: "request failed", Err: context.DeadlineExceeded}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable fetch error", &FetchError{Code: CodeBadStatus, StatusCode: 503, Retryable: true}, true},
		{"permanent fetch error", &FetchError{Code: CodeBadStatus, StatusCode: 404}, false},
		{"timeout wrapping a transport failure", &TimeoutError{Timeout: time.Second, Err: transport}, true},
		{"wrapped timeout", fmt.Errorf("fetch: %w", &TimeoutError{Timeout: time.Second, Err: transport}), true},
		{"bare timeout sentinel", ErrTimeout, true},
		{"open circuit", &CircuitOpenError{State: StateOpen}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
