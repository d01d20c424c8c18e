package container

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/api"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/events"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/logging"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/mautops/bounty-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 指标采集间隔
const metricsInterval = 15 * time.Second

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、账本、服务、后台任务等
type Container struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB

	fgaClient  *authz.OpenFGAClient
	authorizer authz.Authorizer
	system     *ledger.System
	validator  auth.TokenValidator

	hub        *websocket.Hub
	amqpSink   *events.AMQPSink
	dispatcher *events.Dispatcher
	collector  *metrics.Collector
	sweeper    *service.SweepScheduler
	slaAlerts  *api.SLAAlertManager
	watcher    *config.ConfigWatcher

	audit        service.AuditLogService
	tasks        service.TaskService
	verification service.VerificationService
	reputation   service.ReputationService
	admin        service.AdminService
	statistics   service.StatisticsService

	cancel context.CancelFunc
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件,后台任务由 Start 启动
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	// 1. 日志
	logger, err := logging.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetLogger(logger)

	// 2. 数据库(带重试机制),默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{cfg: cfg, logger: logger, db: db}
	if err := c.init(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// init 初始化数据库之后的组件
func (c *Container) init() error {
	cfg := c.cfg

	// 3. 组件授权
	authorizer, err := c.newAuthorizer()
	if err != nil {
		return err
	}
	c.authorizer = authorizer

	// 4. 账本
	params, err := ledger.ParamsFromConfig(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("invalid ledger config: %w", err)
	}
	c.system, err = ledger.NewSystem(ledger.Options{
		DB:         c.db,
		Params:     params,
		Authorizer: authorizer,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	if err := c.applyPolicy(context.Background()); err != nil {
		return err
	}

	// 5. 身份认证
	c.validator, err = newValidator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token validator: %w", err)
	}

	// 6. 服务
	c.audit = service.NewAuditLogService(repository.NewAuditLogRepository(c.db), c.logger)
	c.tasks = service.NewTaskService(c.system, c.audit)
	c.verification = service.NewVerificationService(c.system, c.audit)
	c.reputation = service.NewReputationService(c.system, repository.NewAccountRepository(c.db))
	c.admin = service.NewAdminService(c.system, c.audit)
	c.statistics = service.NewStatisticsService(c.db)

	// 7. 事件推送
	c.hub = websocket.NewHub(c.logger)
	sinks := []events.Sink{events.NewHubSink(c.hub)}
	if cfg.Events.AMQPURL != "" {
		c.amqpSink = events.NewAMQPSink(cfg.Events.AMQPURL, cfg.Events.Exchange, c.logger)
		sinks = append(sinks, c.amqpSink)
	}
	for _, url := range cfg.Events.Webhooks {
		sinks = append(sinks, events.NewWebhookSink(url, nil))
	}
	c.dispatcher = events.NewDispatcher(
		repository.NewEventRepository(c.db),
		sinks,
		events.Options{
			Workers:      cfg.Events.Workers,
			PollInterval: time.Duration(cfg.Events.PollInterval) * time.Millisecond,
		},
		c.logger,
	)

	// 8. 后台任务
	c.collector = metrics.NewCollector(c.db, metricsInterval, c.logger)
	c.sweeper = service.NewSweepScheduler(c.system, time.Duration(cfg.Ledger.SweepIntervalSeconds)*time.Second, c.logger)
	c.slaAlerts = api.NewSLAAlertManager()
	c.slaAlerts.LogAlerts(c.logger)

	return nil
}

// newAuthorizer 按配置选择授权后端,统一加权限缓存
func (c *Container) newAuthorizer() (authz.Authorizer, error) {
	cfg := c.cfg
	var inner authz.Authorizer
	switch cfg.Authz.Backend {
	case "", "db":
		inner = authz.NewDBAuthorizer(repository.NewGrantRepository(c.db))
	case "openfga":
		// 默认重试 3 次,初始间隔 1 秒,指数退避
		client, err := authz.NewOpenFGAClientWithRetry(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenFGA client: %w", err)
		}
		c.fgaClient = client
		inner = authz.NewOpenFGAAuthorizer(client)
	default:
		return nil, fmt.Errorf("unknown authz backend: %s", cfg.Authz.Backend)
	}

	if cfg.Authz.CacheTTL <= 0 {
		return inner, nil
	}
	return authz.NewCachedAuthorizer(inner, authz.NewPermissionCache(time.Duration(cfg.Authz.CacheTTL)*time.Second)), nil
}

// applyPolicy 写入默认组件授权,配置了策略文件时合并文件中的授权
func (c *Container) applyPolicy(ctx context.Context) error {
	policy := ledger.DefaultPolicy()
	if c.cfg.Authz.PolicyFile != "" {
		extra, err := authz.LoadPolicy(c.cfg.Authz.PolicyFile)
		if err != nil {
			return err
		}
		policy = policy.Merge(extra)
	}

	applied, err := c.system.ApplyPolicy(ctx, c.system.Params.Owner, policy)
	if err != nil {
		return fmt.Errorf("failed to apply authz policy: %w", err)
	}
	c.logger.WithField("grants", applied).Debug("Authz policy applied")
	return nil
}

// newValidator 配置了 Keycloak 时使用 RS256,否则使用 HS256 共享密钥
func newValidator(cfg config.AuthConfig) (auth.TokenValidator, error) {
	if cfg.KeycloakIssuer != "" {
		return auth.NewKeycloakTokenValidator(cfg.KeycloakIssuer), nil
	}
	return auth.NewHMACTokenValidator(cfg.JWTSecret, api.ServiceName)
}

// Start 启动后台任务: WebSocket Hub、事件分发、过期清理、指标采集
func (c *Container) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.hub.Run(ctx)
	c.dispatcher.Start(ctx)
	c.sweeper.Start(ctx)
	c.collector.Start()
}

// Watch 监听配置文件,热更新日志级别
func (c *Container) Watch(configPath string) error {
	if configPath == "" {
		return nil
	}
	w := config.NewConfigWatcher(c.cfg, configPath)
	w.OnConfigChange(func(cfg *config.Config) {
		level := logging.ParseLevel(cfg.Log.Level)
		if level != c.logger.GetLevel() {
			c.logger.SetLevel(level)
			c.logger.WithField("level", level.String()).Info("Log level reloaded")
		}
	})
	w.OnError(func(err error) {
		c.logger.WithError(err).Warn("Config reload failed")
	})
	if err := w.Start(); err != nil {
		return err
	}
	c.watcher = w
	return nil
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutes(api.RouterDeps{
		Config:       c.cfg,
		Logger:       c.logger,
		DB:           c.db,
		Validator:    c.validator,
		FGAClient:    c.fgaClient,
		Hub:          c.hub,
		SLAAlerts:    c.slaAlerts,
		Tasks:        c.tasks,
		Verification: c.verification,
		Reputation:   c.reputation,
		Admin:        c.admin,
		Audit:        c.audit,
		Statistics:   c.statistics,
	})
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// System 获取账本系统
func (c *Container) System() *ledger.System {
	return c.system
}

// Sweeper 获取过期清理调度器
func (c *Container) Sweeper() *service.SweepScheduler {
	return c.sweeper
}

// Dispatcher 获取事件分发器
func (c *Container) Dispatcher() *events.Dispatcher {
	return c.dispatcher
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if c.cancel != nil {
		c.collector.Stop()
		c.sweeper.Stop()
		c.dispatcher.Stop()
		c.cancel()
	}
	if c.amqpSink != nil {
		if err := c.amqpSink.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close AMQP connection")
		}
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
