package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/bounty-gin/internal/auth"
)

// NewUpgrader 创建升级器,allowedOrigins 为空或包含 * 时不校验 Origin
func NewUpgrader(allowedOrigins []string) *gorillaWS.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &gorillaWS.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// WebSocketHandler 事件推送处理器
// token 取自 query 参数或 Authorization 头,aggregate_id 可选
func WebSocketHandler(hub *Hub, validator auth.TokenValidator, upgrader *gorillaWS.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 获取 token
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing token"})
			return
		}

		// 2. 验证 token
		identity, err := validator.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		// 3. 升级连接,失败时 upgrader 已写回错误响应
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.WithError(err).Warn("Failed to upgrade websocket connection")
			return
		}

		// 4. 注册客户端
		client := NewClient(uuid.New().String(), identity.Subject, c.Query("aggregate_id"), hub, conn)
		hub.Register <- client

		// 5. 启动 readPump 和 writePump
		go client.ReadPump()
		go client.WritePump()
	}
}
