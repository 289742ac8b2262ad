package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/uniedit/imagegen/internal/utils/errors"
)

// Recovery returns a middleware that recovers from panics.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					apperrors.Internal("internal server error", nil).ToResponse())
			}
		}()
		c.Next()
	}
}
