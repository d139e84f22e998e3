package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationIDHeader = "x-correlation-id"

// CorrelationID echoes the client's correlation id or assigns one, sets it on
// the response, and stashes it in the gin context for handlers and logging.

func CorrelationID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(correlationIDHeader)

		if id == "" {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(correlationIDHeader, id)

		ctx.Set(CtxCorrelationID, id)

		ctx.Next()
	}
}
