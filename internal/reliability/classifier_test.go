package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestIsPermanentHTTPStatus(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 422} {
		if !IsPermanentHTTPStatus(code) {
			t.Fatalf("status %d should be permanent", code)
		}
	}
	if IsPermanentHTTPStatus(503) {
		t.Fatalf("503 is transient, not permanent")
	}
}

func TestIsTransientNetworkError(t *testing.T) {
	if !IsTransientNetworkError(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be transient")
	}
	if IsTransientNetworkError(nil) {
		t.Fatalf("nil error should not be transient")
	}
	if IsTransientNetworkError(errors.New("boom")) {
		t.Fatalf("generic error should not be transient")
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second

	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 backoff = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, cap); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 backoff = %v, want 200ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 backoff = %v, want cap %v", got, cap)
	}
}
