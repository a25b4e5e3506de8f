package handlers

import (
	"net/http"

	"faceid/internal/database"
)

// StatsHandler serves store-wide counters.
type StatsHandler struct {
	stats     database.StatsStore
	threshold float64
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats database.StatsStore, threshold float64) *StatsHandler {
	return &StatsHandler{stats: stats, threshold: threshold}
}

// systemStatsResponse extends the store counters with the configured
// matching threshold so clients can display it.
type systemStatsResponse struct {
	database.SystemStats
	Threshold float64 `json:"threshold"`
}

// System returns counters across the whole store.
func (h *StatsHandler) System(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.SystemStats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, systemStatsResponse{
		SystemStats: *stats,
		Threshold:   h.threshold,
	})
}
