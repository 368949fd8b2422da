package client

import (
	"context"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/flagkeeper/internal/core/api"
)

// retryableMethods are the calls that may run more than once. Submit is
// guarded by its base version; approval requests and resolutions are not
// and run exactly once.
var retryableMethods = map[string]bool{
	api.MethodLoad:          true,
	api.MethodSubmit:        true,
	api.MethodCheck:         true,
	api.MethodDiff:          true,
	api.MethodGetSegment:    true,
	api.MethodGetPreference: true,
	api.MethodSetPreference: true,
}

// retryConfig controls retries of transient transport failures.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// isTransient reports whether a call failed in a way a retry can fix:
// the server was unreachable or the attempt ran out of time.
func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// retryOp runs fn with exponential backoff + jitter for transient errors.
// A non-transient error or the end of ctx stops it immediately.
func retryOp(ctx context.Context, cfg retryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}

		timer := time.NewTimer(backoffDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// backoffDelay is baseDelay * 2^attempt, capped at maxDelay, plus a
// random jitter in [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if cfg.maxDelay > 0 && (delay > cfg.maxDelay || delay <= 0) {
		delay = cfg.maxDelay
	}
	if cfg.baseDelay <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Int64N(int64(cfg.baseDelay)))
}
