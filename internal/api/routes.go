package api

import (
	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/logging"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/mautops/bounty-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *gorm.DB

	Validator auth.TokenValidator
	FGAClient *authz.OpenFGAClient // 可选
	Hub       *websocket.Hub       // 可选
	Upgrader  *gorillaWS.Upgrader  // 可选,为空时按 CORS 源创建
	SLAAlerts *SLAAlertManager     // 可选

	Tasks        service.TaskService
	Verification service.VerificationService
	Reputation   service.ReputationService
	Admin        service.AdminService
	Audit        service.AuditLogService
	Statistics   service.StatisticsService
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware())
	}
	router.Use(SLAMonitorMiddleware(DefaultSLAConfig(), deps.SLAAlerts))

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.FGAClient, deps.Hub)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 事件推送
	if deps.Hub != nil {
		upgrader := deps.Upgrader
		if upgrader == nil {
			upgrader = websocket.NewUpgrader(cfg.CORS.AllowedOrigins)
		}
		router.GET("/ws", websocket.WebSocketHandler(deps.Hub, deps.Validator, upgrader))
	}

	taskController := NewTaskController(deps.Tasks)
	submissionController := NewSubmissionController(deps.Verification)
	reputationController := NewReputationController(deps.Reputation)
	adminController := NewAdminController(deps.Admin, deps.Audit)
	statisticsController := NewStatisticsController(deps.Statistics)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(auth.IdentityMiddleware(deps.Validator))
	if cfg.Tracing.Enabled {
		v1.Use(SpanAttributesMiddleware())
	}
	if cfg.RateLimit.RPS > 0 {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.Create)
			tasks.GET("", taskController.List)
			tasks.GET("/:id", taskController.Get)
			tasks.POST("/:id/claim", taskController.Claim)
			tasks.POST("/:id/submissions", taskController.Submit)
			tasks.POST("/:id/expire", taskController.Expire)
			tasks.POST("/:id/cancel", taskController.Cancel)
			tasks.GET("/:id/claims", taskController.Claims)
			tasks.GET("/:id/escrow", taskController.Escrow)
			tasks.GET("/:id/history", taskController.History)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("", submissionController.List)
			submissions.GET("/:id", submissionController.Get)
			submissions.POST("/:id/stake", submissionController.Stake)
			submissions.POST("/:id/votes", submissionController.Vote)
			submissions.GET("/:id/votes", submissionController.Votes)
			submissions.POST("/:id/distribute", submissionController.Distribute)
			submissions.GET("/:id/history", submissionController.History)
		}

		v1.GET("/reputation", reputationController.Leaderboard)
		v1.GET("/reputation/:identity", reputationController.Profile)
		v1.GET("/reputation/:identity/categories/:category", reputationController.Category)
		v1.GET("/accounts/:identity", reputationController.Account)

		statistics := v1.Group("/statistics")
		{
			statistics.GET("/tasks", statisticsController.Tasks)
			statistics.GET("/tasks/daily", statisticsController.Daily)
			statistics.GET("/verification", statisticsController.Verification)
			statistics.GET("/pools", statisticsController.Pools)
		}

		// 平台管理: 所有者身份由账本校验,管理员密钥由中间件校验
		admin := v1.Group("/admin")
		admin.Use(auth.AdminKeyMiddleware(cfg.Auth.AdminKeyHash))
		{
			admin.GET("/blacklist", adminController.Blacklisted)
			admin.POST("/blacklist/:worker", adminController.Blacklist)
			admin.DELETE("/blacklist/:worker", adminController.Unblacklist)
			admin.GET("/workers/:worker/activity", adminController.Activity)
			admin.POST("/stakes/:worker", adminController.DepositStake)
			admin.POST("/fees/withdraw", adminController.WithdrawFees)
			admin.POST("/submissions/:id/resolve", adminController.ResolveDispute)
			admin.GET("/grants", adminController.Grants)
			admin.POST("/grants", adminController.Grant)
			admin.DELETE("/grants", adminController.Revoke)
			admin.GET("/audit-logs", adminController.AuditLogs)
		}
	}

	return router
}
