// Package engine is the enrichment entry point: given an address query it
// produces either a normalized property record or an explicit manual-entry
// outcome. It owns the wiring between cache, concurrency guard, and the
// two provider orchestrators.
package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"propertygate/internal/cache"
	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/common/logging"
	"propertygate/internal/guard"
	"propertygate/internal/models"
	"propertygate/internal/normalize"
	"propertygate/internal/orchestrate"
)

// Searcher runs the REST address-search flow
type Searcher interface {
	Search(ctx context.Context, query models.SearchQuery) (orchestrate.Outcome, error)
}

// AsyncRunner runs the legacy create/poll/fetch flow
type AsyncRunner interface {
	Run(ctx context.Context, query models.SearchQuery) (map[string]interface{}, *models.AsyncRequestHandle, error)
}

// Engine coordinates one enrichment request end to end
type Engine struct {
	cache    cache.Cache
	guard    *guard.Guard
	searcher Searcher
	// legacy is nil when the legacy provider is not configured
	legacy   AsyncRunner
	cacheTTL time.Duration
	logger   logging.Logger

	requests  int64
	cacheHits int64
	manual    int64
}

// New creates an engine. The legacy runner may be nil; the engine then
// degrades to manual entry where the fallback would have run.
func New(store cache.Cache, g *guard.Guard, searcher Searcher, legacy AsyncRunner, cacheTTL time.Duration, logger logging.Logger) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{
		cache:    store,
		guard:    g,
		searcher: searcher,
		legacy:   legacy,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// EnrichAddress resolves an address to a property record. Exactly one of
// the two returns is non-nil: a record on success, a manual-entry outcome
// on any terminal non-success. It never returns an error; every failure
// class maps to a manual-entry reason so the calling workflow can prompt
// instead of blocking.
func (e *Engine) EnrichAddress(ctx context.Context, query models.SearchQuery) (*models.PropertyRecord, *models.ManualEntry) {
	atomic.AddInt64(&e.requests, 1)

	if strings.TrimSpace(query.Street) == "" {
		return nil, e.manualEntry(query, models.ReasonNotFound, nil)
	}
	if query.ClientReference == "" {
		query.ClientReference = uuid.NewString()
	}
	ctx = context.WithValue(ctx, logging.ClientReferenceKey, query.ClientReference)
	log := e.logger.WithFields(logging.String("client_reference", query.ClientReference))

	key := cache.Key(query)
	if record, ok := e.cache.Get(ctx, key); ok {
		atomic.AddInt64(&e.cacheHits, 1)
		log.Debug("cache hit", logging.String("key", key))
		return record, nil
	}

	var outcome orchestrate.Outcome
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var searchErr error
		outcome, searchErr = e.searcher.Search(ctx, query)
		return searchErr
	})

	if err != nil {
		return e.afterSearchFailure(ctx, log, query, key, err)
	}

	switch outcome.Kind {
	case orchestrate.OutcomeSingle:
		log.Info("enriched from address search",
			logging.String("apn", outcome.Record.APN),
		)
		e.store(ctx, key, outcome.Record)
		return outcome.Record, nil

	case orchestrate.OutcomeMulti:
		log.Info("multi-match unresolved",
			logging.Int("candidates", len(outcome.Candidates)),
		)
		return nil, e.manualEntry(query, models.ReasonMultiMatchUnresolved, outcome.Candidates)

	default: // not found
		return e.legacyFallback(ctx, log, query, key, models.ReasonNotFound)
	}
}

// afterSearchFailure maps a search failure to its outcome: auth and parse
// failures surface directly, transient provider failures get one more
// chance through the legacy provider before degrading.
func (e *Engine) afterSearchFailure(ctx context.Context, log logging.Logger, query models.SearchQuery, key string, err error) (*models.PropertyRecord, *models.ManualEntry) {
	switch apperrors.GetType(err) {
	case apperrors.ErrTypeAuth:
		log.Error("address search auth failure", err)
		return nil, e.manualEntry(query, models.ReasonAuthFailed, nil)
	case apperrors.ErrTypeParse:
		log.Error("address search returned unusable payload", err)
		return nil, e.manualEntry(query, models.ReasonParseFailed, nil)
	case apperrors.ErrTypeValidation:
		log.Warn("address search rejected query", logging.Err(err))
		return nil, e.manualEntry(query, models.ReasonNotFound, nil)
	default:
		log.Warn("address search unavailable, trying legacy provider", logging.Err(err))
		return e.legacyFallback(ctx, log, query, key, models.ReasonProviderUnavailable)
	}
}

// legacyFallback runs the async provider when the REST flow produced
// nothing. fallbackReason is reported when the legacy provider is absent
// or also comes back empty-handed.
func (e *Engine) legacyFallback(ctx context.Context, log logging.Logger, query models.SearchQuery, key, fallbackReason string) (*models.PropertyRecord, *models.ManualEntry) {
	if e.legacy == nil {
		return nil, e.manualEntry(query, fallbackReason, nil)
	}

	var tree map[string]interface{}
	var handle *models.AsyncRequestHandle
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var runErr error
		tree, handle, runErr = e.legacy.Run(ctx, query)
		return runErr
	})
	if err != nil {
		log.Error("legacy provider failed", err)
		if apperrors.IsType(err, apperrors.ErrTypeAuth) {
			return nil, e.manualEntry(query, models.ReasonAuthFailed, nil)
		}
		return nil, e.manualEntry(query, models.ReasonProviderUnavailable, nil)
	}

	if handle != nil && handle.State == models.AsyncTimedOut {
		return nil, e.manualEntry(query, models.ReasonTimedOut, nil)
	}
	if handle != nil && handle.State == models.AsyncFailed {
		log.Warn("legacy request failed",
			logging.String("request_id", handle.RequestID),
			logging.String("provider_error", handle.ErrorText),
		)
		return nil, e.manualEntry(query, fallbackReason, nil)
	}

	record := normalize.Record(tree, models.SourceProviderB, normalize.ConfidenceLegacy)
	if !normalize.Usable(record) {
		return nil, e.manualEntry(query, fallbackReason, nil)
	}

	log.Info("enriched from legacy provider",
		logging.String("request_id", handle.RequestID),
		logging.Int("poll_count", handle.PollCount),
	)
	e.store(ctx, key, record)
	return record, nil
}

func (e *Engine) store(ctx context.Context, key string, record *models.PropertyRecord) {
	if err := e.cache.Set(ctx, key, record, e.cacheTTL); err != nil {
		e.logger.Warn("cache write failed", logging.Err(err))
	}
}

func (e *Engine) manualEntry(query models.SearchQuery, reason string, candidates []models.MatchCandidate) *models.ManualEntry {
	atomic.AddInt64(&e.manual, 1)
	return &models.ManualEntry{Reason: reason, Candidates: candidates}
}

// Stats reports engine counters alongside the guard's
func (e *Engine) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"requests":       atomic.LoadInt64(&e.requests),
		"cache_hits":     atomic.LoadInt64(&e.cacheHits),
		"manual_entries": atomic.LoadInt64(&e.manual),
	}
	if e.guard != nil {
		for k, v := range e.guard.Stats() {
			stats[k] = v
		}
	}
	return stats
}
