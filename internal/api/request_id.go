package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/service"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// ContextRequestID gin 上下文中的请求 ID 键
const ContextRequestID = "request_id"

// RequestIDMiddleware 生成或透传请求 ID,同时把请求元数据写入请求上下文供审计使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}

		c.Set(ContextRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := service.WithRequestInfo(c.Request.Context(), service.RequestInfo{
			RequestID: requestID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
