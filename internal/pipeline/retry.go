package pipeline

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/config"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// retryBackoff returns the delay before retry attempt (zero based):
// exponential growth from BaseDelay with ±12.5% jitter, capped at MaxDelay.
func retryBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := cfg.BaseDelay << uint(attempt) //nolint:gosec // attempt is bounded above
	if delay <= 0 {
		delay = cfg.MaxDelay
	}
	if quarter := int64(delay / 4); quarter > 0 {
		delay += time.Duration(rand.Int63n(quarter)) - time.Duration(quarter/2)
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// retryable reports whether another attempt can help. Configuration errors
// and context cancellation are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !csverrors.IsType(err, csverrors.ErrorTypeConfig)
}

// withRetry calls fn until it succeeds, fails permanently or runs out of
// attempts. The last error is returned.
func withRetry[T any](ctx context.Context, cfg config.RetryConfig, log *zap.Logger, what string, fn func() (T, error)) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)
	var (
		v   T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if attempt == attempts-1 || !retryable(ctx, err) {
			break
		}

		delay := retryBackoff(cfg, attempt)
		log.Warn("attempt failed, retrying",
			zap.String("operation", what),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
	}
	return v, err
}
