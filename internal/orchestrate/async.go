package orchestrate

import (
	"context"
	"strings"
	"time"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
	"propertygate/internal/models"
)

// LegacyClient is the legacy provider surface the async orchestrator needs
type LegacyClient interface {
	CreateRequest(ctx context.Context, query models.SearchQuery) (string, error)
	CheckStatus(ctx context.Context, requestID string) (bool, string, error)
	FetchResult(ctx context.Context, requestID string) (map[string]interface{}, error)
}

// AsyncConfig bounds the poll loop
type AsyncConfig struct {
	// PollInterval is the delay between status polls
	PollInterval time.Duration
	// MaxWait is the overall wall-clock budget, independent of the
	// per-call timeouts of the underlying client
	MaxWait time.Duration
}

// DefaultAsyncConfig returns the poll loop defaults
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		PollInterval: 2 * time.Second,
		MaxWait:      20 * time.Second,
	}
}

// AsyncOrchestrator drives one legacy request through create, poll, and
// fetch. States move Created -> Polling -> Complete, Failed, or TimedOut;
// terminal states are final and no poll happens after one is reached.
type AsyncOrchestrator struct {
	provider LegacyClient
	config   AsyncConfig
	logger   logging.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewAsyncOrchestrator creates an async orchestrator
func NewAsyncOrchestrator(provider LegacyClient, config AsyncConfig, logger logging.Logger) *AsyncOrchestrator {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 20 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &AsyncOrchestrator{
		provider: provider,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Run executes the full protocol and returns the raw result tree alongside
// the final request handle. The handle's terminal state distinguishes the
// outcomes: Complete carries a tree, TimedOut means the budget elapsed
// without a completion signal, Failed carries the provider's error text.
// Transient poll errors are logged and polling continues; they never
// terminate the request on their own.
func (o *AsyncOrchestrator) Run(ctx context.Context, query models.SearchQuery) (map[string]interface{}, *models.AsyncRequestHandle, error) {
	requestID, err := o.provider.CreateRequest(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	handle := &models.AsyncRequestHandle{
		RequestID: requestID,
		State:     models.AsyncCreated,
		CreatedAt: o.now(),
	}

	o.logger.Debug("legacy request created",
		logging.String("request_id", requestID),
		logging.String("client_reference", query.ClientReference),
	)

	handle.State = models.AsyncPolling
	deadline := handle.CreatedAt.Add(o.config.MaxWait)

	for {
		if !o.now().Before(deadline) {
			handle.State = models.AsyncTimedOut
			o.logger.Warn("legacy request timed out",
				logging.String("request_id", requestID),
				logging.Int("poll_count", handle.PollCount),
				logging.Duration("max_wait", o.config.MaxWait),
			)
			return nil, handle, nil
		}

		if err := o.sleep(ctx, o.config.PollInterval); err != nil {
			// Cancelled mid-wait; no upstream cancel exists, the handle
			// is simply abandoned
			handle.State = models.AsyncFailed
			handle.ErrorText = "cancelled"
			return nil, handle, apperrors.TimeoutError("legacy poll loop")
		}

		complete, status, err := o.provider.CheckStatus(ctx, requestID)
		handle.PollCount++
		handle.LastPolledAt = o.now()

		if err != nil {
			if apperrors.IsTransient(err) {
				o.logger.Warn("poll failed, will retry",
					logging.String("request_id", requestID),
					logging.Int("poll_count", handle.PollCount),
					logging.Err(err),
				)
				continue
			}
			handle.State = models.AsyncFailed
			handle.ErrorText = err.Error()
			return nil, handle, err
		}

		if complete {
			handle.State = models.AsyncComplete
			break
		}

		if failedStatus(status) {
			handle.State = models.AsyncFailed
			handle.ErrorText = status
			return nil, handle, nil
		}
	}

	tree, err := o.provider.FetchResult(ctx, handle.RequestID)
	if err != nil {
		return nil, handle, err
	}

	o.logger.Info("legacy request completed",
		logging.String("request_id", handle.RequestID),
		logging.Int("poll_count", handle.PollCount),
	)

	return tree, handle, nil
}

// failedStatus detects the provider's explicit failure markers
func failedStatus(status string) bool {
	s := strings.ToUpper(status)
	return strings.Contains(s, "FAIL") || strings.Contains(s, "ERROR") || strings.Contains(s, "CANCEL")
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
