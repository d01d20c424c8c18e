package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	TasksByState(ctx context.Context) ([]*CountByState, error)
	SubmissionsByState(ctx context.Context) ([]*CountByState, error)
	TasksByCategory(ctx context.Context) ([]*CategoryStatistics, error)
	TasksByDay(ctx context.Context, days int) ([]*DailyStatistics, error)
	Verification(ctx context.Context) (*VerificationStatistics, error)
	Pools(ctx context.Context) ([]*PoolBalance, error)
}

// CountByState 按状态统计
type CountByState struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

// CategoryStatistics 按类别统计
type CategoryStatistics struct {
	Category string       `json:"category"`
	Count    int64        `json:"count"`
	Funded   money.Amount `json:"funded"`
}

// DailyStatistics 按日统计
type DailyStatistics struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// VerificationStatistics 审核统计
type VerificationStatistics struct {
	TotalSubmissions    int64   `json:"total_submissions"`
	VerifiedCount       int64   `json:"verified_count"`
	RejectedCount       int64   `json:"rejected_count"`
	DisputedCount       int64   `json:"disputed_count"`
	ApprovalRate        float64 `json:"approval_rate"`
	AverageConsensusSec float64 `json:"average_consensus_seconds"`
}

// PoolBalance 资金池余额
type PoolBalance struct {
	Name    string       `json:"name"`
	Owner   string       `json:"owner"`
	Balance money.Amount `json:"balance"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db          *gorm.DB
	tasks       repository.TaskRepository
	submissions repository.SubmissionRepository
	pools       repository.PoolRepository
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{
		db:          db,
		tasks:       repository.NewTaskRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		pools:       repository.NewPoolRepository(db),
	}
}

// TasksByState 按状态统计任务
func (s *statisticsService) TasksByState(ctx context.Context) ([]*CountByState, error) {
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get task statistics by state: %w", err)
	}
	return sortedCounts(counts), nil
}

// SubmissionsByState 按状态统计提交
func (s *statisticsService) SubmissionsByState(ctx context.Context) ([]*CountByState, error) {
	counts, err := s.submissions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission statistics by state: %w", err)
	}
	return sortedCounts(counts), nil
}

func sortedCounts(counts map[string]int64) []*CountByState {
	stats := make([]*CountByState, 0, len(counts))
	for state, n := range counts {
		stats = append(stats, &CountByState{State: state, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].State < stats[j].State })
	return stats
}

// TasksByCategory 按类别统计任务数量和托管总额
func (s *statisticsService) TasksByCategory(ctx context.Context) ([]*CategoryStatistics, error) {
	var results []struct {
		Category string
		Count    int64
		Funded   int64
	}

	err := s.db.WithContext(ctx).Model(&model.TaskModel{}).
		Select("category, COUNT(*) AS count, COALESCE(SUM(funded_amount), 0) AS funded").
		Group("category").
		Order("category").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task statistics by category: %w", err)
	}

	stats := make([]*CategoryStatistics, 0, len(results))
	for _, r := range results {
		stats = append(stats, &CategoryStatistics{
			Category: r.Category,
			Count:    r.Count,
			Funded:   money.Amount(r.Funded),
		})
	}
	return stats, nil
}

// TasksByDay 统计最近若干天每天创建的任务数
func (s *statisticsService) TasksByDay(ctx context.Context, days int) ([]*DailyStatistics, error) {
	if days <= 0 || days > 90 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var rows []struct {
		CreatedAt time.Time
	}
	err := s.db.WithContext(ctx).Model(&model.TaskModel{}).
		Select("created_at").
		Where("created_at >= ?", since).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task statistics by day: %w", err)
	}

	// 日期格式化在内存中完成,兼容 postgres 与 sqlite
	counts := make(map[string]int64)
	for _, r := range rows {
		counts[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	stats := make([]*DailyStatistics, 0, len(counts))
	for date, n := range counts {
		stats = append(stats, &DailyStatistics{Date: date, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
	return stats, nil
}

// Verification 审核统计
func (s *statisticsService) Verification(ctx context.Context) (*VerificationStatistics, error) {
	counts, err := s.submissions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get verification statistics: %w", err)
	}

	stats := &VerificationStatistics{
		VerifiedCount: counts[string(ledger.SubmissionVerified)],
		RejectedCount: counts[string(ledger.SubmissionRejected)],
		DisputedCount: counts[string(ledger.SubmissionDisputed)],
	}
	for _, n := range counts {
		stats.TotalSubmissions += n
	}
	if decided := stats.VerifiedCount + stats.RejectedCount; decided > 0 {
		stats.ApprovalRate = float64(stats.VerifiedCount) / float64(decided)
	}

	var rows []struct {
		SubmittedAt time.Time
		ConsensusAt time.Time
	}
	err = s.db.WithContext(ctx).Model(&model.SubmissionModel{}).
		Select("submitted_at, consensus_at").
		Where("consensus_at IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get consensus durations: %w", err)
	}
	if len(rows) > 0 {
		var total time.Duration
		for _, r := range rows {
			total += r.ConsensusAt.Sub(r.SubmittedAt)
		}
		stats.AverageConsensusSec = total.Seconds() / float64(len(rows))
	}

	return stats, nil
}

// Pools 资金池余额
func (s *statisticsService) Pools(ctx context.Context) ([]*PoolBalance, error) {
	pools, err := s.pools.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	out := make([]*PoolBalance, 0, len(pools))
	for _, p := range pools {
		out = append(out, &PoolBalance{Name: p.Name, Owner: p.Owner, Balance: p.Balance})
	}
	return out, nil
}
