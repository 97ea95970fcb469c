package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tunehive/pulse/internal/config"
	"github.com/tunehive/pulse/internal/service"
)

type Handler struct {
	queries    *service.Queries
	collector  *service.Collector
	backfiller *service.Backfiller
}

func NewHandler(queries *service.Queries, collector *service.Collector, backfiller *service.Backfiller) *Handler {
	return &Handler{queries: queries, collector: collector, backfiller: backfiller}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// MetricsRangeHandler serves GET /api/metrics?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) MetricsRangeHandler(w http.ResponseWriter, r *http.Request) {
	from, err := config.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid or missing from date", http.StatusBadRequest)
		return
	}
	to, err := config.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid or missing to date", http.StatusBadRequest)
		return
	}

	records, err := h.queries.Range(r.Context(), from, to)
	if err != nil {
		if err == service.ErrInvalidRange {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// LatestMetricsHandler serves GET /api/metrics/latest.
func (h *Handler) LatestMetricsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.Latest(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ActivityHandler serves GET /api/metrics/activity/{days}.
func (h *Handler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(chi.URLParam(r, "days"))
	if err != nil || days <= 0 {
		http.Error(w, "Invalid days", http.StatusBadRequest)
		return
	}

	series, err := h.queries.Activity(r.Context(), days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// RunsHandler serves GET /api/runs?limit=N with the recent audit rows.
func (h *Handler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.queries.Runs(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
