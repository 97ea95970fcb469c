package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error {
	return s.err
}

func TestPingHandler(t *testing.T) {
	tests := []struct {
		name           string
		pinger         DBPinger
		expectedStatus int
	}{
		{
			name:           "healthy database",
			pinger:         &stubPinger{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unreachable database",
			pinger:         &stubPinger{err: errors.New("connection refused")},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "nil pinger",
			pinger:         nil,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPingHandler(tt.pinger)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			w := httptest.NewRecorder()
			h.PingHandler(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status code %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}
