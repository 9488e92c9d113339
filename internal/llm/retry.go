package llm

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// RetryConfig tunes the retry wrapper. Zero values select the defaults:
// three retries with 2s/4s/8s backoff.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first
	// failure.
	MaxRetries int

	// BaseDelay is the backoff before the first retry; it doubles on each
	// subsequent one.
	BaseDelay time.Duration

	Logger *slog.Logger
}

// Retrying wraps a Client and retries transient failures. All retry policy
// lives here; the concurrency gate above this layer only serializes.
type Retrying struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// WithRetry wraps inner with the transient-failure retry policy.
func WithRetry(inner Client, cfg RetryConfig) *Retrying {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retrying{
		inner:      inner,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     cfg.Logger.With("component", "llm"),
	}
}

// Name returns the wrapped adapter's name.
func (r *Retrying) Name() string {
	return r.inner.Name()
}

// Complete calls the wrapped adapter, retrying retryable failures with
// exponential backoff. A stream that has already delivered chunks to the
// caller is never retried: replaying it would duplicate visible output.
func (r *Retrying) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	var emitted bool
	if opts.OnChunk != nil {
		forward := opts.OnChunk
		opts.OnChunk = func(chunk string) {
			emitted = true
			forward(chunk)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			r.logger.Warn("retrying llm request",
				"provider", r.inner.Name(),
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return "", NewAPIError(KindAborted, r.inner.Name(), ctx.Err())
			case <-time.After(backoff):
			}
		}

		out, err := r.inner.Complete(ctx, msgs, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if emitted || !IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}
