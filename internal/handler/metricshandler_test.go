package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/repository"
	"github.com/tunehive/pulse/internal/service"
)

func newTestRouter(storage *repository.MemStorage) *chi.Mux {
	collector := service.NewCollector(storage, nil)
	backfiller := service.NewBackfiller(collector, 0)
	queries := service.NewQueries(storage)
	h := NewHandler(queries, collector, backfiller)

	r := chi.NewRouter()
	r.Get("/api/metrics", h.MetricsRangeHandler)
	r.Get("/api/metrics/latest", h.LatestMetricsHandler)
	r.Get("/api/metrics/activity/{days}", h.ActivityHandler)
	r.Get("/api/runs", h.RunsHandler)
	r.Post("/api/collect", h.CollectHandler)
	r.Post("/api/backfill", h.BackfillHandler)
	return r
}

func TestHandlersStatusCodes(t *testing.T) {
	storage := repository.NewMemStorage()
	r := newTestRouter(storage)

	tests := []struct {
		name           string
		method         string
		url            string
		body           string
		expectedStatus int
	}{
		{
			name:           "metrics range ok",
			method:         http.MethodGet,
			url:            "/api/metrics?from=2024-01-01&to=2024-01-31",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "metrics range missing from",
			method:         http.MethodGet,
			url:            "/api/metrics?to=2024-01-31",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "metrics range malformed date",
			method:         http.MethodGet,
			url:            "/api/metrics?from=01-01-2024&to=2024-01-31",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "metrics range inverted",
			method:         http.MethodGet,
			url:            "/api/metrics?from=2024-02-01&to=2024-01-01",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "latest ok",
			method:         http.MethodGet,
			url:            "/api/metrics/latest",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "activity ok",
			method:         http.MethodGet,
			url:            "/api/metrics/activity/7",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "activity invalid days",
			method:         http.MethodGet,
			url:            "/api/metrics/activity/abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "runs ok",
			method:         http.MethodGet,
			url:            "/api/runs",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "runs invalid limit",
			method:         http.MethodGet,
			url:            "/api/runs?limit=zero",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "collect explicit date",
			method:         http.MethodPost,
			url:            "/api/collect",
			body:           `{"date":"2024-01-02"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "collect invalid date",
			method:         http.MethodPost,
			url:            "/api/collect",
			body:           `{"date":"yesterday"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "backfill ok",
			method:         http.MethodPost,
			url:            "/api/backfill",
			body:           `{"start_date":"2024-01-01","end_date":"2024-01-03"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "backfill inverted range",
			method:         http.MethodPost,
			url:            "/api/backfill",
			body:           `{"start_date":"2024-01-05","end_date":"2024-01-01"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "backfill invalid json",
			method:         http.MethodPost,
			url:            "/api/backfill",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.url, nil)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status code %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCollectHandlerResult(t *testing.T) {
	storage := repository.NewMemStorage()
	storage.AddUser(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	r := newTestRouter(storage)

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(`{"date":"2024-01-02"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result model.CollectionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Status != model.StatusCompleted {
		t.Errorf("expected status %q, got %q", model.StatusCompleted, result.Status)
	}
	if result.MetricsWritten != len(model.Categories) {
		t.Errorf("expected %d metrics written, got %d", len(model.Categories), result.MetricsWritten)
	}
}

func TestCollectHandlerDateLocked(t *testing.T) {
	storage := repository.NewMemStorage()
	if err := storage.TryLockDate(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}
	r := newTestRouter(storage)

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(`{"date":"2024-01-02"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}
