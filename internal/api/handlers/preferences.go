package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/internal/search"
)

// PreferencesHandler handles user preference HTTP requests.
type PreferencesHandler struct {
	orchestrator *search.Orchestrator
}

// NewPreferencesHandler creates a new PreferencesHandler.
func NewPreferencesHandler(orchestrator *search.Orchestrator) *PreferencesHandler {
	return &PreferencesHandler{orchestrator: orchestrator}
}

// Handle handles GET and PUT on /api/v1/preferences
func (h *PreferencesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		RenderJSON(w, http.StatusOK, h.orchestrator.Preferences())
	case http.MethodPut, http.MethodPost:
		var prefs domain.Preferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			RenderError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if !prefs.DataUsageMode.IsValid() {
			RenderError(w, http.StatusBadRequest, "Invalid data usage mode: "+string(prefs.DataUsageMode))
			return
		}
		if err := h.orchestrator.SetPreferences(r.Context(), prefs); err != nil {
			RenderError(w, http.StatusInternalServerError, "Failed to save preferences: "+err.Error())
			return
		}
		RenderJSON(w, http.StatusOK, prefs)
	default:
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
