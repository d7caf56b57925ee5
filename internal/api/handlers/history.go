package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

const exportPageSize = 10000

// HistoryHandler handles search history HTTP requests.
type HistoryHandler struct {
	history domain.HistoryRepository
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history domain.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/v1/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := parseListParams(r)

	records, total, err := h.history.List(r.Context(), params)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list history: "+err.Error())
		return
	}

	perPage := params.Limit
	page := params.Offset/perPage + 1

	RenderJSON(w, http.StatusOK, NewPaginatedResponse(records, total, page, perPage))
}

// Stats handles GET /api/v1/history/stats
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.history.Stats(r.Context())
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to get history stats: "+err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, stats)
}

// Download handles GET /api/v1/history/download: export the search history
// as an xlsx workbook.
func (h *HistoryHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		RenderError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := parseListParams(r)
	params.Limit = exportPageSize
	params.Offset = 0

	records, _, err := h.history.List(r.Context(), params)
	if err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to list history: "+err.Error())
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "History"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Created At", "Search ID", "Query", "Category",
		"Center Lat", "Center Lon", "Radius Km", "Region Code",
		"Results", "Source", "Confidence", "Network", "Duration Ms",
	}
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, head)
	}

	for row, rec := range records {
		values := []any{
			rec.CreatedAt.Format(time.RFC3339), rec.SearchID, rec.Query, rec.Category,
			rec.CenterLat, rec.CenterLon, rec.RadiusKm, rec.RegionCode,
			rec.ResultCount, string(rec.Source), rec.Confidence, rec.NetworkLabel, rec.DurationMs,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("search-history-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(w); err != nil {
		RenderError(w, http.StatusInternalServerError, "Failed to write workbook: "+err.Error())
	}
}

func parseListParams(r *http.Request) domain.HistoryListParams {
	q := r.URL.Query()

	params := domain.HistoryListParams{
		Query:  q.Get("query"),
		Source: domain.ResultSource(q.Get("source")),
		Limit:  50,
	}

	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= 500 {
		params.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 1 {
		params.Offset = (v - 1) * params.Limit
	}
	if v, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		params.Since = v
	}

	return params
}
