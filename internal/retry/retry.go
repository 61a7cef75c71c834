// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // attempts including the first
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap on any single delay
	Multiplier   float64
	// Jitter in [0,1] shortens each delay by up to that fraction so that
	// several workers backing off together spread out
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
}

// DefaultRetryConfig backs off 1s, 2s, 4s, 8s with 20% jitter
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
		Retryable:    SystemErrorsOnly,
	}
}

// RetryResult reports how an operation went
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Err returns nil on success, otherwise the last error annotated with the attempt count
func (r *RetryResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("operation failed after %d attempts: %w", r.Attempts, r.LastError)
}

// RetryFunc is one attempt; attempt starts at 1
type RetryFunc func(ctx context.Context, attempt int) error

// WithExponentialBackoff calls fn until it succeeds, returns a non-retryable
// error, runs out of attempts, or ctx is done.
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	start := time.Now()
	result := &RetryResult{}
	defer func() { result.TotalDuration = time.Since(start) }()

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		if !config.shouldRetry(err, attempt) {
			if attempt >= config.MaxAttempts {
				logger.WithError(err).WithField("attempts", attempt).Error("Operation failed after max retry attempts")
			}
			return result
		}

		delay := config.delay(attempt)
		logger.WithError(err).WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
		}).Warn("Operation failed, backing off")

		if err := sleep(ctx, delay); err != nil {
			result.LastError = err
			return result
		}
	}
}

func (c *RetryConfig) shouldRetry(err error, attempt int) bool {
	if attempt >= c.MaxAttempts {
		return false
	}
	return c.Retryable == nil || c.Retryable(err)
}

// delay applies jitter on top of calculateDelay
func (c *RetryConfig) delay(attempt int) time.Duration {
	d := calculateDelay(c, attempt)
	if c.Jitter <= 0 || d <= 0 {
		return d
	}
	jitter := math.Min(c.Jitter, 1)
	return d - time.Duration(rand.Float64()*jitter*float64(d))
}

// calculateDelay computes InitialDelay * Multiplier^(attempt-1), capped at MaxDelay
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}

// sleep waits for d or until ctx is done, returning ctx's error in that case
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemErrorsOnly retries everything except user-caused errors
func SystemErrorsOnly(err error) bool {
	return !apperrors.IsUserError(err)
}
