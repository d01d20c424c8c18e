package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// RequestLogMiddleware 请求日志中间件
func RequestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// 使用路由模板作为指标标签,避免 ID 造成高基数
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordAPIRequest(method, path, status, latency.Seconds())

		fields := logrus.Fields{
			"request_id": c.GetString(ContextRequestID),
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
		}
		if caller, ok := auth.GetUserID(c); ok {
			fields["caller"] = caller
		}
		entry := logger.WithFields(fields)

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			entry.Error("API request")
		case status >= 400:
			entry.Warn("API request")
		default:
			entry.Info("API request")
		}
	}
}
