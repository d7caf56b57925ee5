package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/internal/netmon"
	"github.com/sadewadee/dynamic-search/internal/search"
)

// StatsHandler handles statistics and network-related HTTP requests.
type StatsHandler struct {
	orchestrator *search.Orchestrator
	monitor      *netmon.Monitor
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(orchestrator *search.Orchestrator, monitor *netmon.Monitor) *StatsHandler {
	return &StatsHandler{
		orchestrator: orchestrator,
		monitor:      monitor,
	}
}

// GetStatistics handles GET /api/v1/stats
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	RenderJSON(w, http.StatusOK, h.orchestrator.GetStatistics(r.Context()))
}

// NetworkChange handles POST /api/v1/network: inject a connectivity-change
// event into the monitor.
func (h *StatsHandler) NetworkChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var cond domain.NetworkCondition
	if err := json.NewDecoder(r.Body).Decode(&cond); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	h.monitor.Observe(cond)

	w.WriteHeader(http.StatusAccepted)
}
