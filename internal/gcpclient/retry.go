package gcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// retryConfig holds the exponential backoff schedule shared by the
// embedding and LLM clients: base 500ms, factor 2, cap 3 total
// attempts (1 initial + 2 retries; 4s ceiling on any single delay).
var retryConfig = struct {
	delays  []time.Duration
	ceiling time.Duration
}{
	delays:  []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond},
	ceiling: 4 * time.Second,
}

// isRetryableError reports whether err looks like a transient upstream
// failure: 5xx status, timeout, connection reset, or rate limiting.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "eof"):
		return true
	default:
		return false
	}
}

// isRetryableStatus checks if an HTTP status code warrants a retry.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// withRetry executes fn up to len(retryConfig.delays)+1 times, retrying
// on transient upstream errors with exponential backoff. Once retries
// are exhausted it returns apperr.ErrUpstreamUnavailable.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil {
		return result, nil
	}

	if !isRetryableError(err) {
		return result, err
	}

	for i, delay := range retryConfig.delays {
		if delay > retryConfig.ceiling {
			delay = retryConfig.ceiling
		}

		slog.Warn("upstream call failed, retrying",
			"operation", operation,
			"attempt", i+2,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, apperr.Stage(apperr.ErrCanceled, operation, ctx.Err())
		case <-time.After(delay):
		}

		result, err = fn()
		if err == nil {
			slog.Info("upstream retry succeeded", "operation", operation, "attempt", i+2)
			return result, nil
		}

		if !isRetryableError(err) {
			return result, err
		}
	}

	var zero T
	slog.Error("upstream retries exhausted", "operation", operation, "attempts", len(retryConfig.delays)+1)
	return zero, apperr.Stage(apperr.ErrUpstreamUnavailable, operation, fmt.Errorf("retries exhausted: %w", err))
}
