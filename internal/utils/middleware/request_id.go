package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uniedit/imagegen/internal/utils/requestctx"
)

const (
	// RequestIDHeader is the header key for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for request ID.
	RequestIDKey = "request_id"
)

// RequestID returns a middleware that adds a request ID to each request.
// The ID is also placed on the request context for the domain layer.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(requestctx.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID from context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
