package api

import (
	"net/http"

	"github.com/sadewadee/dynamic-search/internal/api/handlers"
)

// Router sets up all API routes
type Router struct {
	mux     *http.ServeMux
	search  *handlers.SearchHandler
	stats   *handlers.StatsHandler
	history *handlers.HistoryHandler
	prefs   *handlers.PreferencesHandler
}

// NewRouter creates a new Router
func NewRouter(
	search *handlers.SearchHandler,
	stats *handlers.StatsHandler,
	history *handlers.HistoryHandler,
	prefs *handlers.PreferencesHandler,
) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		search:  search,
		stats:   stats,
		history: history,
		prefs:   prefs,
	}
}

// Setup configures all routes
func (r *Router) Setup(token string) http.Handler {
	// Stats endpoint
	r.mux.HandleFunc("/api/v1/stats", r.stats.GetStatistics)

	// Search endpoints
	r.mux.HandleFunc("/api/v1/search", r.search.Perform)
	r.mux.HandleFunc("/api/v1/region", r.search.RegionChange)
	r.mux.HandleFunc("/api/v1/location", r.search.LocationUpdate)
	r.mux.HandleFunc("/api/v1/network", r.stats.NetworkChange)
	r.mux.HandleFunc("/api/v1/cache/invalidate", r.search.Invalidate)

	// History endpoints
	r.mux.HandleFunc("/api/v1/history", r.history.List)
	r.mux.HandleFunc("/api/v1/history/stats", r.history.Stats)
	r.mux.HandleFunc("/api/v1/history/download", r.history.Download)

	// Preference endpoints
	r.mux.HandleFunc("/api/v1/preferences", r.prefs.Handle)

	// Apply middleware
	return Chain(r.mux,
		Recovery,
		Logger,
		CORS,
		SecurityHeaders,
		Auth(token),
	)
}
