// Package network - history.go
// JSON export of the tick history for debugging and dashboards.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/waynr/wasm-renderer/internal/events"
	"github.com/waynr/wasm-renderer/internal/infra/storage"
	"github.com/waynr/wasm-renderer/internal/platform/logger"
)

// HistoryHandler exposes the tick event log over HTTP.
type HistoryHandler struct {
	tickLog    *events.Log
	summarizer *storage.Summarizer
	runID      string
	logger     *logger.Logger
}

// NewHistoryHandler creates a handler over the in-memory tick log. The
// summarizer may be nil when persistence is disabled.
func NewHistoryHandler(tl *events.Log, sum *storage.Summarizer, runID string, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		tickLog:    tl,
		summarizer: sum,
		runID:      runID,
		logger:     log,
	}
}

// HistoryResponse is the API response for the tick history.
type HistoryResponse struct {
	RunID       string             `json:"run_id"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.TickEvent `json:"events"`
}

// HandleHistory returns the recent tick events.
// GET /api/history?limit=N&failures_only=true
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			hh.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	failuresOnly := r.URL.Query().Get("failures_only") == "true"

	var evs []events.TickEvent
	filterDesc := ""
	if failuresOnly {
		evs = hh.tickLog.Failures()
		if len(evs) > limit {
			evs = evs[len(evs)-limit:]
		}
		filterDesc = "failures"
	} else {
		evs = hh.tickLog.Recent(limit)
	}

	response := HistoryResponse{
		RunID:       hh.runID,
		TotalEvents: len(evs),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      evs,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleSummary returns aggregate statistics for the current run.
// GET /api/summary?limit=N
func (hh *HistoryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hh.summarizer == nil {
		hh.jsonError(w, "Persistence disabled", http.StatusNotFound)
		return
	}

	limit := 1000
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			hh.jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	summary, err := hh.summarizer.Summarize(r.Context(), hh.runID, limit)
	if err != nil {
		hh.logger.Error("summary query failed", err)
		hh.jsonError(w, "Summary unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"summary":      summary,
	})
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history", hh.HandleHistory)
	mux.HandleFunc("/api/summary", hh.HandleSummary)
}

// jsonError sends an error response.
func (hh *HistoryHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
