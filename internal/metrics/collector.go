package metrics

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collector 定期采集数据库连接、状态分布和资金池余额
type Collector struct {
	db          *gorm.DB
	tasks       repository.TaskRepository
	submissions repository.SubmissionRepository
	pools       repository.PoolRepository
	interval    time.Duration
	log         *logrus.Entry
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration, logger *logrus.Logger) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:          db,
		tasks:       repository.NewTaskRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		pools:       repository.NewPoolRepository(db),
		interval:    interval,
		log:         logger.WithField("component", "metrics"),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(c.ctx)
		}
	}
}

// CollectOnce 采集一次
func (c *Collector) CollectOnce(ctx context.Context) {
	_ = UpdateDatabaseConnections(c.db)

	if counts, err := c.tasks.CountByStatus(ctx); err != nil {
		c.log.WithError(err).Warn("Failed to count tasks")
	} else {
		for state, n := range counts {
			UpdateTasksByState(state, float64(n))
		}
	}

	if counts, err := c.submissions.CountByStatus(ctx); err != nil {
		c.log.WithError(err).Warn("Failed to count submissions")
	} else {
		for state, n := range counts {
			UpdateSubmissionsByState(state, float64(n))
		}
	}

	if pools, err := c.pools.FindAll(ctx); err != nil {
		c.log.WithError(err).Warn("Failed to load pools")
	} else {
		for _, p := range pools {
			UpdatePoolBalance(p.Name, p.Balance)
		}
	}
}
