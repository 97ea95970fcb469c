package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tunehive/pulse/internal/config"
	"github.com/tunehive/pulse/internal/repository"
	"github.com/tunehive/pulse/internal/service"
)

type collectRequest struct {
	Date string `json:"date,omitempty"`
}

type backfillRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CollectHandler serves POST /api/collect. An empty or omitted date
// collects today.
func (h *Handler) CollectHandler(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	var targetDate time.Time
	if req.Date != "" {
		parsed, err := config.ParseDate(req.Date)
		if err != nil {
			http.Error(w, "Invalid date", http.StatusBadRequest)
			return
		}
		targetDate = parsed
	}

	result, err := h.collector.Collect(r.Context(), targetDate)
	if err != nil {
		if errors.Is(err, repository.ErrDateLocked) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BackfillHandler serves POST /api/backfill.
func (h *Handler) BackfillHandler(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	start, err := config.ParseDate(req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start_date", http.StatusBadRequest)
		return
	}
	end, err := config.ParseDate(req.EndDate)
	if err != nil {
		http.Error(w, "Invalid end_date", http.StatusBadRequest)
		return
	}

	result, err := h.backfiller.Backfill(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
