package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/internal/search"
)

// SearchHandler exposes the orchestrator's event entry points and the
// manual search trigger.
type SearchHandler struct {
	orchestrator *search.Orchestrator
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(orchestrator *search.Orchestrator) *SearchHandler {
	return &SearchHandler{orchestrator: orchestrator}
}

// Perform handles POST /api/v1/search: run a search for explicit criteria
// and return the result.
func (h *SearchHandler) Perform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var criteria domain.SearchCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	result, err := h.orchestrator.PerformDynamicSearch(r.Context(), &criteria)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRegion), errors.Is(err, domain.ErrInvalidRadius):
			RenderError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, search.ErrBandwidthLimited):
			RenderError(w, http.StatusTooManyRequests, err.Error())
		default:
			RenderError(w, http.StatusBadGateway, "Search failed: "+err.Error())
		}
		return
	}

	RenderJSON(w, http.StatusOK, result)
}

// RegionChange handles POST /api/v1/region: inject a viewport change event.
func (h *SearchHandler) RegionChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Region  domain.SearchRegion        `json:"region"`
		Trigger domain.RegionChangeTrigger `json:"trigger"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if !req.Region.IsValid() {
		RenderError(w, http.StatusBadRequest, "Invalid region")
		return
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerViewportPan
	}

	h.orchestrator.HandleRegionChange(req.Region, req.Trigger)

	w.WriteHeader(http.StatusAccepted)
}

// LocationUpdate handles POST /api/v1/location: inject a location provider
// push.
func (h *SearchHandler) LocationUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var loc domain.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	h.orchestrator.HandleLocationUpdate(loc)

	w.WriteHeader(http.StatusAccepted)
}

// Invalidate handles POST /api/v1/cache/invalidate: evict cached results
// overlapping a region.
func (h *SearchHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Region domain.SearchRegion `json:"region"`
		Reason string              `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	evicted, err := h.orchestrator.InvalidateSearchResults(r.Context(), req.Region, req.Reason)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Invalidation failed: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}
