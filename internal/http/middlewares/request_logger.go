package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path // fallback (e.g. 404)
		}

		method := ctx.Request.Method

		ctx.Next()

		lat := time.Since(start)
		status := ctx.Writer.Status()

		correlationID, _ := ctx.Get(CtxCorrelationID)

		logAttrs := []any{
			"method", method,
			"route", route,
			"status", status,
			"latency_ms", lat.Milliseconds(),
			"correlation_id", correlationID,
		}

		if reportID, ok := ctx.Get(CtxReportID); ok {
			if reportIDStr, ok := reportID.(string); ok && reportIDStr != "" {
				logAttrs = append(logAttrs, "report_id", reportIDStr)
			}
		}

		log.InfoContext(ctx.Request.Context(), "http_request", logAttrs...)
	}
}
