package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestWithRetry_Success(t *testing.T) {
	ctx := context.Background()
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	callCount := 0
	err := WithRetry(ctx, config, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestWithRetry_EventualSuccess(t *testing.T) {
	ctx := context.Background()
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	callCount := 0
	err := WithRetry(ctx, config, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestWithRetry_AllFail(t *testing.T) {
	ctx := context.Background()
	config := RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	callCount := 0
	expectedErr := errors.New("persistent error")
	err := WithRetry(ctx, config, func() error {
		callCount++
		return expectedErr
	})

	if err == nil {
		t.Error("expected error, got nil")
	}

	if callCount != 3 {
		t.Errorf("expected 3 calls (initial + 2 retries), got %d", callCount)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
	}

	callCount := 0
	err := WithRetry(ctx, config, func() error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return errors.New("error")
	})

	if err == nil {
		t.Error("expected error, got nil")
	}

	if callCount > 3 {
		t.Errorf("expected at most 3 calls before cancellation, got %d", callCount)
	}
}

func TestWithRetry_ExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}

	startTime := time.Now()
	callCount := 0
	WithRetry(ctx, config, func() error {
		callCount++
		return errors.New("error")
	})
	duration := time.Since(startTime)

	expectedMinDuration := 10*time.Millisecond + 20*time.Millisecond + 40*time.Millisecond

	if duration < expectedMinDuration {
		t.Errorf("expected duration >= %v, got %v", expectedMinDuration, duration)
	}
}

func TestWithRetry_MaxBackoff(t *testing.T) {
	ctx := context.Background()
	config := RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     30 * time.Millisecond,
	}

	startTime := time.Now()
	WithRetry(ctx, config, func() error {
		return errors.New("error")
	})
	duration := time.Since(startTime)

	expectedMaxDuration := 30*time.Millisecond*5 + 100*time.Millisecond

	if duration > expectedMaxDuration {
		t.Errorf("backoff seems too long, expected < %v, got %v", expectedMaxDuration, duration)
	}
}

func TestWithRetry_PermanentStopsImmediately(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}

	callCount := 0
	err := WithRetry(context.Background(), config, func() error {
		callCount++
		return Permanent(ErrNotFound)
	})

	if callCount != 1 {
		t.Errorf("expected a single call for a permanent error, got %d", callCount)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestWithRetry_HonoursShortRetryAfter(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	start := time.Now()
	callCount := 0
	err := WithRetry(context.Background(), config, func() error {
		callCount++
		if callCount == 1 {
			return RetryAfter(errors.New("rate limit"), 30*time.Millisecond)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after the vendor's wait, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
	if waited := time.Since(start); waited < 30*time.Millisecond {
		t.Errorf("expected to wait the requested 30ms, waited %v", waited)
	}
}

func TestWithRetry_RetryAfterBeyondBudget(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}

	tests := []struct {
		name string
		wait time.Duration
	}{
		{"longer than max backoff", time.Minute},
		{"unknown wait", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := errors.New("rate limit")
			callCount := 0
			err := WithRetry(context.Background(), config, func() error {
				callCount++
				return RetryAfter(limit, tt.wait)
			})

			if callCount != 1 {
				t.Errorf("expected a single call, got %d", callCount)
			}
			if err != limit {
				t.Errorf("expected the unwrapped rate limit error, got %v", err)
			}
		})
	}
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"2", 2 * time.Second},
		{" 1 ", time.Second},
		{"", 0},
		{"0", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}

	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := retryAfterHeader(h); got != tt.want {
			t.Errorf("retryAfterHeader(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestRetryAfter_Nil(t *testing.T) {
	if RetryAfter(nil, time.Second) != nil {
		t.Error("RetryAfter(nil) should be nil")
	}
}
