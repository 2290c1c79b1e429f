package api

import (
	"context"
	"net/http"
	"time"
)

// StatsProvider reports queue and job counters.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a stats handler; uptime counts from now.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats writes the provider's stats plus uptime_s.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.provider.GetStats(r.Context())
	if stats == nil {
		stats = make(map[string]interface{}, 1)
	}
	stats["uptime_s"] = time.Since(h.started).Seconds()
	writeJSON(w, http.StatusOK, stats)
}
