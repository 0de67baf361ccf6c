// Package handler serves the tracker's HTTP control surface: read endpoints
// for the presentation layer and mutators for the control panel.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
)

// TrackerService defines what the handlers need from the pipeline. It is
// declared locally so this package does not depend on the concrete
// orchestrator.
type TrackerService interface {
	Tick(ctx context.Context) domain.TickOutcome
	LatestObservations(n int) []domain.Observation
	HistoryLen() int
	HistoryCapacity() int
	LastUpdate() time.Time
	LastMetrics() domain.Metrics
	LastOutcome() (domain.TickOutcome, bool)
	Forwarding() domain.ForwardingConfig
	SetForwarding(cfg domain.ForwardingConfig)
	ClearHistory()
}

// TrackerHandler serves all tracker endpoints.
type TrackerHandler struct {
	tracker TrackerService
	logger  *slog.Logger
}

// NewTrackerHandler creates a TrackerHandler with the given service.
func NewTrackerHandler(tracker TrackerService, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{
		tracker: tracker,
		logger:  logger.With(slog.String("component", "handler")),
	}
}

// defaultHistoryLimit matches the depth of the dashboard's recent-data table.
const defaultHistoryLimit = 10

// historyResponse wraps the history endpoint output with buffer metadata.
type historyResponse struct {
	Observations []domain.Observation `json:"observations"`
	Count        int                  `json:"count"`
	Capacity     int                  `json:"capacity"`
}

// History returns the latest observations, oldest first.
// GET /api/history?limit=10
func (h *TrackerHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLimit)
	if capacity := h.tracker.HistoryCapacity(); limit > capacity {
		limit = capacity
	}

	obs := h.tracker.LatestObservations(limit)
	if obs == nil {
		obs = []domain.Observation{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Observations: obs,
		Count:        h.tracker.HistoryLen(),
		Capacity:     h.tracker.HistoryCapacity(),
	})
}

// Metrics returns the metrics derived on the last successful tick.
// GET /api/metrics
func (h *TrackerHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.LastMetrics())
}

// statusResponse reports the last tick outcome and buffer state.
type statusResponse struct {
	LastOutcome *domain.TickOutcome     `json:"last_outcome,omitempty"`
	LastUpdate  *time.Time              `json:"last_update,omitempty"`
	HistoryLen  int                     `json:"history_len"`
	Forwarding  domain.ForwardingConfig `json:"forwarding"`
}

// Status returns the most recent tick outcome, the last update time, and the
// current buffer length.
// GET /api/status
func (h *TrackerHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		HistoryLen: h.tracker.HistoryLen(),
		Forwarding: h.tracker.Forwarding(),
	}
	if outcome, ok := h.tracker.LastOutcome(); ok {
		resp.LastOutcome = &outcome
	}
	if lu := h.tracker.LastUpdate(); !lu.IsZero() {
		resp.LastUpdate = &lu
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tick triggers one pipeline cycle immediately, independent of the poll loop.
// POST /api/tick
func (h *TrackerHandler) Tick(w http.ResponseWriter, r *http.Request) {
	outcome := h.tracker.Tick(r.Context())

	status := http.StatusOK
	if !outcome.FetchOK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcome)
}

// ClearHistory empties the observation buffer and the last-update marker.
// POST /api/history/clear
func (h *TrackerHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.tracker.ClearHistory()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetForwarding returns the current forwarding configuration.
// GET /api/forwarding
func (h *TrackerHandler) GetForwarding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Forwarding())
}

// UpdateForwarding replaces the forwarding configuration. The new settings
// apply from the next tick.
// PUT /api/forwarding
func (h *TrackerHandler) UpdateForwarding(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ForwardingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid forwarding config body")
		return
	}

	if cfg.Enabled && cfg.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required when forwarding is enabled")
		return
	}
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			writeError(w, http.StatusBadRequest, "endpoint must be an absolute URL")
			return
		}
	}

	h.tracker.SetForwarding(cfg)
	writeJSON(w, http.StatusOK, cfg)
}
