package middleware

import (
	"stockroom/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorLogger logs every error a handler attached with c.Error once the request is done
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			log.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", c.Writer.Status(),
				"error", e.Err,
			)
		}
	}
}
