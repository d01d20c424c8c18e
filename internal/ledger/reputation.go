package ledger

import (
	"context"
	"fmt"

	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// Reputation 信誉组件:分数、分类统计、徽章
type Reputation struct {
	component
	repo repository.ReputationRepository
}

// ReputationData 信誉数据
type ReputationData struct {
	Identity               string `json:"identity"`
	Score                  int    `json:"score"`
	TasksCompleted         int    `json:"tasks_completed"`
	TasksRejected          int    `json:"tasks_rejected"`
	VerificationsPerformed int    `json:"verifications_performed"`
	AccurateVerifications  int    `json:"accurate_verifications"`
	HasPriorityAccess      bool   `json:"has_priority_access"`
}

// CategoryStats 分类统计,SuccessRate 为百分比
type CategoryStats struct {
	Category    string `json:"category"`
	Success     int    `json:"success"`
	Total       int    `json:"total"`
	SuccessRate int    `json:"success_rate"`
	Badge       bool   `json:"badge"`
}

// UpdateWorkerReputation 按任务结果调整工人分数
func (r *Reputation) UpdateWorkerReputation(ctx context.Context, caller, worker string, successful bool) error {
	if err := r.authorize(ctx, caller, OpUpdateWorker); err != nil {
		return err
	}
	return r.exec(ctx, []string{identityKey(worker)}, func(ctx context.Context) error {
		_, err := r.applyWorkerOutcome(ctx, worker, successful)
		return err
	})
}

// UpdateWorkerReputationWithCategory 调整工人分数并更新分类统计,满足条件时授予徽章
func (r *Reputation) UpdateWorkerReputationWithCategory(ctx context.Context, caller, worker, category string, successful bool) error {
	if err := r.authorize(ctx, caller, OpUpdateWorkerCategory); err != nil {
		return err
	}
	if _, err := ParseCategory(category); err != nil {
		return err
	}

	return r.exec(ctx, []string{identityKey(worker)}, func(ctx context.Context) error {
		if _, err := r.applyWorkerOutcome(ctx, worker, successful); err != nil {
			return err
		}

		now := r.clock.Now()
		stat, err := r.repo.EnsureCategory(ctx, worker, category, now)
		if err != nil {
			return fmt.Errorf("failed to load category stats: %w", err)
		}
		stat.Total++
		if successful {
			stat.Success++
		}
		awarded := false
		if !stat.Badge && stat.Total >= r.params.BadgeMinTasks && stat.Success*100 >= stat.Total*r.params.BadgeRatePercent {
			stat.Badge = true
			stat.BadgeAt = timePtr(now)
			awarded = true
		}
		stat.UpdatedAt = now
		if err := r.repo.SaveCategory(ctx, stat); err != nil {
			return fmt.Errorf("failed to save category stats: %w", err)
		}

		if awarded {
			r.log.WithFields(logrus.Fields{"worker": worker, "category": category}).Info("Category badge awarded")
			return r.journal.emit(ctx, worker, EventBadgeAwarded, map[string]interface{}{
				"worker":   worker,
				"category": category,
			})
		}
		return nil
	})
}

// UpdateVerifierReputation 按审核准确性调整审核人分数
func (r *Reputation) UpdateVerifierReputation(ctx context.Context, caller, reviewer string, accurate bool) error {
	if err := r.authorize(ctx, caller, OpUpdateVerifier); err != nil {
		return err
	}
	return r.exec(ctx, []string{identityKey(reviewer)}, func(ctx context.Context) error {
		record, err := r.ensure(ctx, reviewer)
		if err != nil {
			return err
		}
		record.VerificationsPerformed++
		if accurate {
			record.AccurateVerifications++
		}
		record.Score = r.adjust(record.Score, accurate)
		record.UpdatedAt = r.clock.Now()
		return r.save(ctx, record)
	})
}

// PenalizeWorker 扣减分数,不计入任务统计(认领超时)
func (r *Reputation) PenalizeWorker(ctx context.Context, caller, worker, reason string) error {
	if err := r.authorize(ctx, caller, OpPenalize); err != nil {
		return err
	}
	return r.exec(ctx, []string{identityKey(worker)}, func(ctx context.Context) error {
		record, err := r.ensure(ctx, worker)
		if err != nil {
			return err
		}
		record.Score = r.adjust(record.Score, false)
		record.UpdatedAt = r.clock.Now()
		r.log.WithFields(logrus.Fields{"worker": worker, "reason": reason, "score": record.Score}).Info("Worker penalized")
		return r.save(ctx, record)
	})
}

func (r *Reputation) applyWorkerOutcome(ctx context.Context, worker string, successful bool) (*model.ReputationModel, error) {
	record, err := r.ensure(ctx, worker)
	if err != nil {
		return nil, err
	}
	if successful {
		record.TasksCompleted++
	} else {
		record.TasksRejected++
	}
	record.Score = r.adjust(record.Score, successful)
	record.UpdatedAt = r.clock.Now()
	return record, r.save(ctx, record)
}

// adjust 加减一个步长并限制在 [0, MaxScore]
func (r *Reputation) adjust(score int, up bool) int {
	if up {
		score += r.params.ScoreStep
	} else {
		score -= r.params.ScoreStep
	}
	if score > r.params.MaxScore {
		return r.params.MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func (r *Reputation) ensure(ctx context.Context, identity string) (*model.ReputationModel, error) {
	record, err := r.repo.Ensure(ctx, identity, r.params.DefaultScore, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load reputation: %w", err)
	}
	return record, nil
}

func (r *Reputation) save(ctx context.Context, record *model.ReputationModel) error {
	if err := r.repo.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save reputation: %w", err)
	}
	return nil
}

// find 查找信誉记录,不存在时返回默认分数的空记录
func (r *Reputation) find(ctx context.Context, identity string) (*model.ReputationModel, error) {
	record, err := r.repo.FindByIdentity(ctx, identity)
	if err != nil {
		if isNotFound(err) {
			return &model.ReputationModel{Identity: identity, Score: r.params.DefaultScore}, nil
		}
		return nil, fmt.Errorf("failed to get reputation: %w", err)
	}
	return record, nil
}

// GetReputationScore 获取分数,未记录的身份为默认分数
func (r *Reputation) GetReputationScore(ctx context.Context, identity string) (int, error) {
	record, err := r.find(ctx, identity)
	if err != nil {
		return 0, err
	}
	return record.Score, nil
}

// GetReputationData 获取完整信誉数据
func (r *Reputation) GetReputationData(ctx context.Context, identity string) (*ReputationData, error) {
	record, err := r.find(ctx, identity)
	if err != nil {
		return nil, err
	}
	return r.toData(record), nil
}

func (r *Reputation) toData(record *model.ReputationModel) *ReputationData {
	return &ReputationData{
		Identity:               record.Identity,
		Score:                  record.Score,
		TasksCompleted:         record.TasksCompleted,
		TasksRejected:          record.TasksRejected,
		VerificationsPerformed: record.VerificationsPerformed,
		AccurateVerifications:  record.AccurateVerifications,
		HasPriorityAccess:      record.Score >= r.params.PriorityScore,
	}
}

// HasCategoryBadge 是否持有分类徽章
func (r *Reputation) HasCategoryBadge(ctx context.Context, identity, category string) (bool, error) {
	stats, err := r.GetCategoryStats(ctx, identity, category)
	if err != nil {
		return false, err
	}
	return stats.Badge, nil
}

// GetCategoryStats 获取分类统计
func (r *Reputation) GetCategoryStats(ctx context.Context, identity, category string) (*CategoryStats, error) {
	stat, err := r.repo.FindCategory(ctx, identity, category)
	if err != nil {
		if isNotFound(err) {
			return &CategoryStats{Category: category}, nil
		}
		return nil, fmt.Errorf("failed to get category stats: %w", err)
	}
	return toCategoryStats(stat), nil
}

// ListCategoryStats 获取身份的全部分类统计
func (r *Reputation) ListCategoryStats(ctx context.Context, identity string) ([]*CategoryStats, error) {
	stats, err := r.repo.FindCategories(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list category stats: %w", err)
	}
	out := make([]*CategoryStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, toCategoryStats(s))
	}
	return out, nil
}

func toCategoryStats(stat *model.CategoryStatModel) *CategoryStats {
	return &CategoryStats{
		Category:    stat.Category,
		Success:     stat.Success,
		Total:       stat.Total,
		SuccessRate: percent(stat.Success, stat.Total),
		Badge:       stat.Badge,
	}
}

// GetReputationMultiplier 奖励倍率(百分比),持有分类徽章时为 110
func (r *Reputation) GetReputationMultiplier(ctx context.Context, identity, category string) (int, error) {
	badge, err := r.HasCategoryBadge(ctx, identity, category)
	if err != nil {
		return 0, err
	}
	if badge {
		return r.params.BadgeMultiplier, nil
	}
	return r.params.BaseMultiplier, nil
}

// HasPriorityAccess 分数达到优先线
func (r *Reputation) HasPriorityAccess(ctx context.Context, identity string) (bool, error) {
	score, err := r.GetReputationScore(ctx, identity)
	if err != nil {
		return false, err
	}
	return score >= r.params.PriorityScore, nil
}

// GetSuccessRate 任务成功率(百分比)
func (r *Reputation) GetSuccessRate(ctx context.Context, identity string) (int, error) {
	record, err := r.find(ctx, identity)
	if err != nil {
		return 0, err
	}
	return percent(record.TasksCompleted, record.TasksCompleted+record.TasksRejected), nil
}

// GetVerificationAccuracy 审核准确率(百分比)
func (r *Reputation) GetVerificationAccuracy(ctx context.Context, identity string) (int, error) {
	record, err := r.find(ctx, identity)
	if err != nil {
		return 0, err
	}
	return percent(record.AccurateVerifications, record.VerificationsPerformed), nil
}

// Leaderboard 分数最高的身份
func (r *Reputation) Leaderboard(ctx context.Context, limit int) ([]*ReputationData, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, err := r.repo.FindTop(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	out := make([]*ReputationData, 0, len(records))
	for _, rec := range records {
		out = append(out, r.toData(rec))
	}
	return out, nil
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}
