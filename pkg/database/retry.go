package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// retryBackoff returns the wait before retry number attempt (0-indexed):
// 1s, 2s, 4s, each with ±25% jitter.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
	return base + jitter
}

// retrier runs a startup step up to attempts times. Steps whose error is not
// retryable fail at once.
type retrier struct {
	attempts  int
	backoff   func(int) time.Duration
	retryable func(error) bool
	logger    *slog.Logger
}

func newRetrier(logger *slog.Logger, retryable func(error) bool) retrier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	return retrier{
		attempts:  defaultRetryAttempts,
		backoff:   retryBackoff,
		retryable: retryable,
		logger:    logger,
	}
}

func (r retrier) do(ctx context.Context, step string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !r.retryable(err) {
			return err
		}
		if attempt == r.attempts-1 {
			break
		}

		wait := r.backoff(attempt)
		r.logger.WarnContext(ctx, step+" failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", r.attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during retry: %w", step, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", step, r.attempts, err)
}
