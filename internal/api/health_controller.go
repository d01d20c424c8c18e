package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/websocket"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db        *gorm.DB
	fgaClient *authz.OpenFGAClient
	hub       *websocket.Hub
}

// NewHealthController 创建健康检查控制器,fgaClient 和 hub 可为 nil
func NewHealthController(db *gorm.DB, fgaClient *authz.OpenFGAClient, hub *websocket.Hub) *HealthController {
	return &HealthController{
		db:        db,
		fgaClient: fgaClient,
		hub:       hub,
	}
}

// Check 健康检查
// @Summary      健康检查
// @Description  检查数据库与授权后端连接
// @Tags         系统
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	if c.db == nil {
		checks["database"] = "not configured"
	} else if database.CheckHealth(c.db) {
		checks["database"] = "healthy"
	} else {
		status = "unhealthy"
		checks["database"] = "unhealthy"
	}

	if c.fgaClient == nil {
		checks["openfga"] = "not configured"
	} else if c.fgaClient.CheckHealth(ctx.Request.Context()) {
		checks["openfga"] = "healthy"
	} else {
		status = "unhealthy"
		checks["openfga"] = "unhealthy"
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}
	if c.hub != nil {
		body["websocket_clients"] = c.hub.GetClientCount()
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	ctx.JSON(httpStatus, body)
}
