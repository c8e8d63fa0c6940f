// Package handlers exposes the enrichment engine over HTTP
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"propertygate/internal/common/logging"
	"propertygate/internal/models"
)

// Enricher is the engine surface the HTTP layer needs
type Enricher interface {
	EnrichAddress(ctx context.Context, query models.SearchQuery) (*models.PropertyRecord, *models.ManualEntry)
	Stats() map[string]interface{}
}

// StatsSource contributes a named block to the stats endpoint
type StatsSource interface {
	Stats() map[string]interface{}
}

// Handler serves the gateway's HTTP API
type Handler struct {
	engine    Enricher
	cache     StatsSource
	tokenInfo func() map[string]interface{}
	startedAt time.Time
}

// New creates the HTTP handler set. tokenInfo may be nil.
func New(engine Enricher, cache StatsSource, tokenInfo func() map[string]interface{}) *Handler {
	return &Handler{
		engine:    engine,
		cache:     cache,
		tokenInfo: tokenInfo,
		startedAt: time.Now(),
	}
}

// enrichResponse is the wire shape of an enrichment outcome. Exactly one
// of record and manual_entry is set.
type enrichResponse struct {
	Record      *models.PropertyRecord `json:"record,omitempty"`
	ManualEntry *models.ManualEntry    `json:"manual_entry,omitempty"`
}

// Enrich handles POST /api/enrich
func (h *Handler) Enrich(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var query models.SearchQuery
	if err := json.Unmarshal(body, &query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if query.Street == "" {
		writeError(w, http.StatusBadRequest, "street is required")
		return
	}

	record, manual := h.engine.EnrichAddress(r.Context(), query)

	// A manual-entry outcome is a normal, successful degradation, not a
	// server error
	writeJSON(w, http.StatusOK, enrichResponse{Record: record, ManualEntry: manual})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Stats handles GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"engine": h.engine.Stats(),
	}
	if h.cache != nil {
		stats["cache"] = h.cache.Stats()
	}
	if h.tokenInfo != nil {
		stats["token"] = h.tokenInfo()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error("failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
