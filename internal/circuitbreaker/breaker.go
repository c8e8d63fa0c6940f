// Package circuitbreaker protects provider calls using Sony's gobreaker
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before probing half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the request cap while half-open
	MaxConcurrentRequests int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Predefined configurations per provider style
var (
	// RESTConfig is for the address-search provider's API calls, which
	// should fail fast
	RESTConfig = Config{
		MaxFailures:           3,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 2,
	}

	// OAuthConfig is for token endpoint calls
	OAuthConfig = Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}

	// PollingConfig is for the legacy provider's status polls, which need
	// more tolerance since transient poll failures are expected
	PollingConfig = Config{
		MaxFailures:           8,
		Timeout:               90 * time.Second,
		MaxConcurrentRequests: 2,
	}
)

// Breaker wraps Sony's gobreaker with our error taxonomy
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New creates a circuit breaker for the named provider endpoint
func New(name string, config Config) *Breaker {
	if config.MaxFailures <= 0 || config.Timeout <= 0 || config.MaxConcurrentRequests <= 0 {
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A clean no-match or caller mistake is not provider ill health
			switch apperrors.GetType(err) {
			case apperrors.ErrTypeNotFound, apperrors.ErrTypeValidation, apperrors.ErrTypeMultiMatch:
				return true
			}
			return false
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn within the circuit breaker. An open breaker surfaces as an
// upstream error so the guard treats it like any other provider outage.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperrors.UpstreamError(fmt.Sprintf("circuit breaker '%s' is open", b.name), err)
	}

	return err
}

// IsOpen returns true if the circuit breaker is open
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

// Stats returns current counts for the stats endpoint
func (b *Breaker) Stats() map[string]interface{} {
	counts := b.breaker.Counts()
	return map[string]interface{}{
		"name":      b.name,
		"state":     b.breaker.State().String(),
		"failures":  counts.TotalFailures,
		"successes": counts.TotalSuccesses,
	}
}
