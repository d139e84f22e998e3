package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/reporthub/internal/http/handlers"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		ping       func() error
		wantStatus int
	}{
		{
			name:       "store reachable",
			ping:       func() error { return nil },
			wantStatus: http.StatusOK,
		},
		{
			name:       "store down",
			ping:       func() error { return errors.New("connection refused") },
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(tt.ping)
			r := setupRouter(http.MethodGet, "/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
