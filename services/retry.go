package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockpulse/observability"
)

// RetryConfig bounds retries of vendor calls. MaxBackoff also caps how long a
// vendor's own Retry-After is honoured.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig fits inside the default 30s analysis budget: three
// retries back off for at most 0.25+0.5+1s, and a vendor may ask for up to 2s.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that WithRetry returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// rateLimitError is a vendor rate limit that names its own cool-down
type rateLimitError struct {
	err  error
	wait time.Duration
}

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

// RetryAfter wraps a rate-limit failure with the wait the vendor asked for.
// WithRetry honours waits up to MaxBackoff and gives up on longer or unknown
// ones, so a throttled vendor never stalls an analysis past its budget.
func RetryAfter(err error, wait time.Duration) error {
	if err == nil {
		return nil
	}
	return &rateLimitError{err: err, wait: wait}
}

// retryAfterHeader reads a Retry-After header given in seconds
func retryAfterHeader(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff
	wait := backoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
		wait = backoff

		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		var limited *rateLimitError
		if errors.As(err, &limited) {
			if limited.wait <= 0 || limited.wait > config.MaxBackoff || attempt == config.MaxRetries {
				return limited.err
			}
			wait = max(limited.wait, backoff)
		}

		lastErr = err
		if attempt < config.MaxRetries {
			observability.Debug("retry attempt failed",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
