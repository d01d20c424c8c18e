package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/mautops/bounty-gin/internal/money"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_tasks_created_total",
			Help: "Total number of bounty tasks created",
		},
		[]string{"category"},
	)

	// 账本操作结果,result 为 ok 或错误码
	ledgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_ledger_operations_total",
			Help: "Total number of ledger operations by result",
		},
		[]string{"operation", "result"},
	)

	// 审核投票
	votesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_votes_total",
			Help: "Total number of verification votes",
		},
		[]string{"approved"},
	)

	// 达成共识的提交
	consensusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_consensus_total",
			Help: "Total number of submissions reaching a final or disputed status",
		},
		[]string{"status"},
	)

	// 出账金额(单位: 元)
	payoutAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_payout_amount_total",
			Help: "Total amount paid out of escrow",
		},
		[]string{"kind"},
	)

	// 事件投递
	eventDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_event_deliveries_total",
			Help: "Total number of outbox event deliveries",
		},
		[]string{"result"},
	)

	// 后台清理
	sweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_swept_total",
			Help: "Total number of claims released and tasks expired by the sweeper",
		},
		[]string{"kind"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 任务状态分布
	tasksByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bounty_tasks_by_state",
			Help: "Number of tasks by state",
		},
		[]string{"state"},
	)

	// 提交状态分布
	submissionsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bounty_submissions_by_state",
			Help: "Number of submissions by state",
		},
		[]string{"state"},
	)

	// 资金池余额
	poolBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bounty_pool_balance",
			Help: "Balance held by each ledger pool",
		},
		[]string{"pool"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(ledgerOperationsTotal)
	prometheus.MustRegister(votesTotal)
	prometheus.MustRegister(consensusTotal)
	prometheus.MustRegister(payoutAmountTotal)
	prometheus.MustRegister(eventDeliveriesTotal)
	prometheus.MustRegister(sweptTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(tasksByState)
	prometheus.MustRegister(submissionsByState)
	prometheus.MustRegister(poolBalance)

	// Go 运行时指标只注册一次,已注册时忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(category string) {
	tasksCreatedTotal.WithLabelValues(category).Inc()
}

// RecordOperation 记录账本操作结果
func RecordOperation(operation, result string) {
	ledgerOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordVote 记录投票
func RecordVote(approved bool) {
	votesTotal.WithLabelValues(fmt.Sprintf("%t", approved)).Inc()
}

// RecordConsensus 记录提交进入终态或争议
func RecordConsensus(status string) {
	consensusTotal.WithLabelValues(status).Inc()
}

// RecordPayout 记录出账金额
func RecordPayout(kind string, amount money.Amount) {
	if amount <= 0 {
		return
	}
	value, _ := amount.Decimal().Float64()
	payoutAmountTotal.WithLabelValues(kind).Add(value)
}

// RecordEventDelivery 记录事件投递结果
func RecordEventDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	eventDeliveriesTotal.WithLabelValues(result).Inc()
}

// RecordSwept 记录后台清理数量
func RecordSwept(kind string, n int) {
	if n > 0 {
		sweptTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTasksByState 更新任务状态分布指标
func UpdateTasksByState(state string, count float64) {
	tasksByState.WithLabelValues(state).Set(count)
}

// UpdateSubmissionsByState 更新提交状态分布指标
func UpdateSubmissionsByState(state string, count float64) {
	submissionsByState.WithLabelValues(state).Set(count)
}

// UpdatePoolBalance 更新资金池余额指标
func UpdatePoolBalance(pool string, amount money.Amount) {
	value, _ := amount.Decimal().Float64()
	poolBalance.WithLabelValues(pool).Set(value)
}
