package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SLA 监控的账本操作
const (
	OperationTaskCreation = "task_creation"
	OperationTaskClaim    = "task_claim"
	OperationSubmission   = "submission"
	OperationVote         = "vote"
	OperationDistribution = "distribution"
	OperationQuery        = "query"
)

// maxViolationsPerOperation 每个操作保留的最近违反记录数
const maxViolationsPerOperation = 100

// SLAConfig SLA 配置,按操作设置最大响应时间
type SLAConfig struct {
	MaxTime map[string]time.Duration
}

// DefaultSLAConfig 返回默认 SLA 配置
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{MaxTime: map[string]time.Duration{
		OperationTaskCreation: 1 * time.Second,
		OperationTaskClaim:    500 * time.Millisecond,
		OperationSubmission:   1 * time.Second,
		OperationVote:         1 * time.Second,
		OperationDistribution: 2 * time.Second,
		OperationQuery:        500 * time.Millisecond,
	}}
}

// Expected 获取期望的响应时间,未配置的操作返回 0
func (c *SLAConfig) Expected(operation string) time.Duration {
	if c == nil {
		return 0
	}
	return c.MaxTime[operation]
}

// Check 检查 SLA,未配置的操作不检查
func (c *SLAConfig) Check(operation string, duration time.Duration) bool {
	expected := c.Expected(operation)
	return expected == 0 || duration <= expected
}

// operationOf 按路由模板与方法识别账本操作
func operationOf(c *gin.Context) string {
	route := c.FullPath()
	method := c.Request.Method

	switch {
	case route == "":
		return ""
	case method == http.MethodGet:
		return OperationQuery
	case strings.HasSuffix(route, "/tasks") && method == http.MethodPost:
		return OperationTaskCreation
	case strings.HasSuffix(route, "/claim"):
		return OperationTaskClaim
	case strings.HasSuffix(route, "/tasks/:id/submissions"):
		return OperationSubmission
	case strings.HasSuffix(route, "/stake"), strings.HasSuffix(route, "/votes"):
		return OperationVote
	case strings.HasSuffix(route, "/distribute"):
		return OperationDistribution
	}
	return ""
}

// SLAViolation SLA 违反记录
type SLAViolation struct {
	Operation string
	Duration  time.Duration
	Expected  time.Duration
	Timestamp time.Time
	Path      string
	Method    string
	RequestID string
}

// SLAAlertManager SLA 告警管理器
type SLAAlertManager struct {
	violations     map[string][]SLAViolation
	counts         map[string]int
	thresholds     map[string]int
	alertCallbacks []func(string, []SLAViolation)
	mu             sync.RWMutex
}

// NewSLAAlertManager 创建 SLA 告警管理器
func NewSLAAlertManager() *SLAAlertManager {
	return &SLAAlertManager{
		violations: make(map[string][]SLAViolation),
		counts:     make(map[string]int),
		thresholds: make(map[string]int),
	}
}

// RecordViolation 记录 SLA 违反,每累计 threshold 次触发一次告警
func (m *SLAAlertManager) RecordViolation(violation SLAViolation) {
	m.mu.Lock()
	op := violation.Operation
	list := append(m.violations[op], violation)
	if len(list) > maxViolationsPerOperation {
		list = list[len(list)-maxViolationsPerOperation:]
	}
	m.violations[op] = list
	m.counts[op]++

	var (
		callbacks []func(string, []SLAViolation)
		snapshot  []SLAViolation
	)
	if threshold := m.thresholds[op]; threshold > 0 && m.counts[op]%threshold == 0 {
		callbacks = append(callbacks, m.alertCallbacks...)
		snapshot = append(snapshot, list...)
	}
	m.mu.Unlock()

	// 回调在锁外执行
	for _, callback := range callbacks {
		callback(op, snapshot)
	}
}

// SetAlertThreshold 设置告警阈值
func (m *SLAAlertManager) SetAlertThreshold(operation string, threshold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[operation] = threshold
}

// OnAlert 注册告警回调
func (m *SLAAlertManager) OnAlert(callback func(string, []SLAViolation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCallbacks = append(m.alertCallbacks, callback)
}

// GetViolations 获取最近的违反记录
func (m *SLAAlertManager) GetViolations(operation string) []SLAViolation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SLAViolation(nil), m.violations[operation]...)
}

// Count 获取累计违反次数
func (m *SLAAlertManager) Count(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[operation]
}

// LogAlerts 注册一个以 warn 级别输出告警的回调
func (m *SLAAlertManager) LogAlerts(logger *logrus.Logger) {
	m.OnAlert(func(operation string, violations []SLAViolation) {
		last := violations[len(violations)-1]
		logger.WithFields(logrus.Fields{
			"component":  "sla",
			"operation":  operation,
			"violations": len(violations),
			"duration":   last.Duration.String(),
			"expected":   last.Expected.String(),
			"request_id": last.RequestID,
		}).Warn("SLA threshold exceeded")
	})
}

// SLAMonitorMiddleware SLA 监控中间件,超时请求记入告警管理器
func SLAMonitorMiddleware(config *SLAConfig, alertManager *SLAAlertManager) gin.HandlerFunc {
	if config == nil {
		config = DefaultSLAConfig()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		operation := operationOf(c)
		if operation == "" {
			return
		}
		duration := time.Since(start)
		if config.Check(operation, duration) || alertManager == nil {
			return
		}
		alertManager.RecordViolation(SLAViolation{
			Operation: operation,
			Duration:  duration,
			Expected:  config.Expected(operation),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
			RequestID: c.GetString(ContextRequestID),
		})
	}
}
