package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				correlationID, _ := c.Get(CtxCorrelationID)
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"statusCode":    http.StatusBadRequest,
					"timestamp":     time.Now().UTC().Format(time.RFC3339),
					"path":          c.Request.URL.Path,
					"correlationId": correlationID,
					"message":       "Content-Type must be application/json",
				})
				return
			}
		}
		c.Next()
	}
}
