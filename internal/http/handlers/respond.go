package handlers

import (
	"net/http"
	"time"

	"github.com/geocoder89/reporthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the uniform error body for every non-2xx response.

type APIError struct {
	StatusCode    int    `json:"statusCode"`
	Timestamp     string `json:"timestamp"`
	Path          string `json:"path"`
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
}

func correlationIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxCorrelationID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("x-correlation-id")
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, APIError{
		StatusCode:    status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Path:          ctx.Request.URL.Path,
		CorrelationID: correlationIDFrom(ctx),
		Message:       message,
	})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondConflict(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusConflict, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}
