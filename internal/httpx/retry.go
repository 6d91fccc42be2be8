package httpx

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// maxBackoffClamp bounds every inter-attempt delay so retry storms cannot
// stretch tail latency past the stage's own budget.
const maxBackoffClamp = time.Second

// RetryConfig holds the retry policy for one outbound collaborator.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the policy used when configuration is silent.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     maxBackoffClamp,
		Multiplier:     2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	// A misconfigured policy (attempts < 1) degrades to a single attempt
	// rather than zero: exhaustion must always surface a real cause.
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 || c.MaxBackoff > maxBackoffClamp {
		c.MaxBackoff = maxBackoffClamp
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Backoff calculates the delay before retry number attempt (0-based),
// exponential with ±25% jitter, clamped to MaxBackoff.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = cfg.normalized()
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	jitterRange := 0.25 * backoff
	result := backoff + (rand.Float64()*2*jitterRange - jitterRange)
	if result > float64(cfg.MaxBackoff) {
		result = float64(cfg.MaxBackoff)
	}
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}

// Operation is a unit of work eligible for retry.
type Operation func(ctx context.Context) error

// Do executes op with exponential backoff. Only transient errors
// (HTTP_5XX, NETWORK, TIMEOUT) are retried; exhaustion returns the
// original error from the final attempt, never a wrapper, so callers see
// the real failure reason.
func Do(ctx context.Context, cfg RetryConfig, op Operation) error {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			return err
		}

		select {
		case <-time.After(Backoff(attempt, cfg)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
