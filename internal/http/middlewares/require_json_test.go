package middlewares_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/reporthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupJSONRouter() *gin.Engine {
	r := gin.New()

	r.Use(middlewares.CorrelationID(), middlewares.RequireJSON())
	r.POST("/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/reports", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"json accepted", http.MethodPost, "application/json", http.StatusCreated},
		{"json with charset accepted", http.MethodPost, "application/json; charset=utf-8", http.StatusCreated},
		{"wrong content type", http.MethodPost, "text/plain", http.StatusBadRequest},
		{"missing content type", http.MethodPost, "", http.StatusBadRequest},
		{"get passes without content type", http.MethodGet, "", http.StatusOK},
	}

	r := setupJSONRouter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/reports", strings.NewReader("{}"))

			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}

			if tt.wantStatus != http.StatusBadRequest {
				return
			}

			var body struct {
				StatusCode    int    `json:"statusCode"`
				Path          string `json:"path"`
				CorrelationID string `json:"correlationId"`
				Message       string `json:"message"`
			}

			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not the uniform shape: %v", err)
			}

			if body.StatusCode != http.StatusBadRequest || body.Path != "/reports" || body.CorrelationID == "" || body.Message == "" {
				t.Fatalf("incomplete error body: %+v", body)
			}
		})
	}
}
