package middleware

import (
	"time"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/gin-gonic/gin"
)

func CorsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestLogger writes one structured line per request. Chunk uploads log at debug level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"remote", c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Log.Error("Request failed", attrs...)
		case c.Request.URL.Path == "/send_chunk" && c.Writer.Status() < 400:
			logger.Log.Debug("Request handled", attrs...)
		default:
			logger.Log.Info("Request handled", attrs...)
		}
	}
}
