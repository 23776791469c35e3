package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// requestLogger はリクエストごとに ID を振り、完了時に1行のログを出します。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		c.Set("reqId", reqID)
		c.Header(requestIDHeader, reqID)

		start := time.Now()
		c.Next()

		attrs := []any{
			"reqId", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"dur", time.Since(start).String(),
		}
		ctx := c.Request.Context()
		if len(c.Errors) > 0 {
			slog.WarnContext(ctx, "リクエストが失敗しました", append(attrs, "error", c.Errors.Last().Err)...)
			return
		}
		slog.InfoContext(ctx, "リクエストが完了しました", attrs...)
	}
}
