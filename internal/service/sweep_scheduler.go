package service

import (
	"context"
	"sync"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// SweepResult 一轮清理的结果
type SweepResult struct {
	ReleasedClaims int `json:"released_claims"`
	ExpiredTasks   int `json:"expired_tasks"`
}

// SweepScheduler 定期释放超时认领并使逾期任务过期
type SweepScheduler struct {
	system    *ledger.System
	interval  time.Duration
	batchSize int
	log       *logrus.Entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewSweepScheduler 创建清理调度器
func NewSweepScheduler(system *ledger.System, interval time.Duration, logger *logrus.Logger) *SweepScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepScheduler{
		system:    system,
		interval:  interval,
		batchSize: 100,
		log:       logger.WithField("component", "sweeper"),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动调度器
func (s *SweepScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop 停止调度器
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *SweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.WithError(err).Error("Sweep failed")
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce 执行一轮清理,每类最多处理 batchSize 条
func (s *SweepScheduler) RunOnce(ctx context.Context) (*SweepResult, error) {
	released, err := s.system.Tasks.ReleaseExpiredClaims(ctx, s.batchSize)
	metrics.RecordSwept("claims", released)
	if err != nil {
		return &SweepResult{ReleasedClaims: released}, err
	}

	expired, err := s.system.Tasks.ExpireOverdueTasks(ctx, s.batchSize)
	metrics.RecordSwept("tasks", expired)
	result := &SweepResult{ReleasedClaims: released, ExpiredTasks: expired}
	if err != nil {
		return result, err
	}

	if released > 0 || expired > 0 {
		s.log.WithFields(logrus.Fields{
			"released_claims": released,
			"expired_tasks":   expired,
		}).Info("Sweep completed")
	}
	return result, nil
}
