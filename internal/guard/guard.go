// Package guard bounds concurrent upstream calls and retries transient
// failures with capped exponential backoff.
package guard

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
)

// Config holds guard configuration for one upstream provider
type Config struct {
	// MaxInFlight caps simultaneous in-flight calls to the provider
	MaxInFlight int64

	// RPS limits outbound request rate; 0 disables rate limiting
	RPS int

	// MaxAttempts is the total attempt count including the first try
	MaxAttempts int

	// InitialDelay is the backoff before the first retry
	InitialDelay time.Duration

	// MaxDelay caps exponential backoff growth
	MaxDelay time.Duration

	// RateLimitFloor is the minimum wait after a 429, regardless of the
	// computed backoff
	RateLimitFloor time.Duration
}

// DefaultConfig returns the standard per-provider guard settings:
// 5 in-flight slots, 3 attempts, 1s -> 2s -> 4s backoff.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:    5,
		RPS:            10,
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       4 * time.Second,
		RateLimitFloor: 5 * time.Second,
	}
}

// Guard serializes access to one upstream provider
type Guard struct {
	name    string
	config  Config
	slots   *semaphore.Weighted
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

// New creates a guard for the named provider
func New(name string, config Config) *Guard {
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 5
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 4 * time.Second
	}

	var limiter *rate.Limiter
	if config.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RPS), config.RPS)
	}

	return &Guard{
		name:    name,
		config:  config,
		slots:   semaphore.NewWeighted(config.MaxInFlight),
		limiter: limiter,
		sleep:   sleepContext,
	}
}

// Do acquires an in-flight slot, applies the rate limit, and runs fn with
// retry on transient failures. Non-transient errors surface immediately.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.slots.Release(1)

	var lastErr error
	delay := g.config.InitialDelay

	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperrors.IsTransient(err) {
			return err
		}

		if attempt == g.config.MaxAttempts {
			break
		}

		wait := delay
		if apperrors.IsType(err, apperrors.ErrTypeRateLimit) && wait < g.config.RateLimitFloor {
			wait = g.config.RateLimitFloor
		}

		logging.Warn("retrying upstream call",
			logging.String("provider", g.name),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", wait),
			logging.Err(err),
		)

		if err := g.sleep(ctx, wait); err != nil {
			return err
		}

		delay *= 2
		if delay > g.config.MaxDelay {
			delay = g.config.MaxDelay
		}
	}

	return lastErr
}

// InFlight reports how many slots are currently held. Best effort, for stats.
func (g *Guard) InFlight() int64 {
	// TryAcquire-all is the only probe semaphore.Weighted offers
	for held := int64(0); held <= g.config.MaxInFlight; held++ {
		if g.slots.TryAcquire(g.config.MaxInFlight - held) {
			g.slots.Release(g.config.MaxInFlight - held)
			return held
		}
	}
	return g.config.MaxInFlight
}

// Stats returns guard statistics
func (g *Guard) Stats() map[string]interface{} {
	return map[string]interface{}{
		"provider":      g.name,
		"max_in_flight": g.config.MaxInFlight,
		"in_flight":     g.InFlight(),
		"max_attempts":  g.config.MaxAttempts,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
