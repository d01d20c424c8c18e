package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// AntiFraud 反作弊组件:黑名单、日提交限额、内容哈希去重、工人保证金
type AntiFraud struct {
	component
	repo  repository.AntiFraudRepository
	pools *pools
}

// SubmissionCheck 提交准入检查的输入
type SubmissionCheck struct {
	Worker       string
	TaskID       string
	ContentHash  string
	MetadataHash string
}

// WorkerActivity 工人的反作弊状态
type WorkerActivity struct {
	Worker         string       `json:"worker"`
	Blacklisted    bool         `json:"blacklisted"`
	SubmittedToday int          `json:"submitted_today"`
	DailyLimit     int          `json:"daily_limit"`
	Stake          money.Amount `json:"stake"`
}

// CheckAndRecordSubmission 依次检查黑名单、日限额、重复内容和元数据,
// 全部通过后记录日志、登记哈希并累加计数
func (a *AntiFraud) CheckAndRecordSubmission(ctx context.Context, caller string, check SubmissionCheck) error {
	if err := a.authorize(ctx, caller, OpCheckAndRecordSubmission); err != nil {
		return err
	}
	if err := utils.ValidateContentHash(check.ContentHash); err != nil {
		return ErrInvalidContentHash.With("reason", err.Error())
	}

	return a.exec(ctx, []string{workerKey(check.Worker)}, func(ctx context.Context) error {
		now := a.clock.Now()
		activity, err := a.repo.EnsureActivity(ctx, check.Worker, now)
		if err != nil {
			return fmt.Errorf("failed to load worker activity: %w", err)
		}

		if activity.Blacklisted {
			return ErrBlacklisted.With("worker", check.Worker)
		}

		today := dayStamp(now)
		if activity.DayStamp != today {
			activity.DayStamp = today
			activity.DailyCount = 0
		}
		if activity.DailyCount >= a.params.DailySubmissionLimit {
			nextDay := time.Unix((today+1)*int64(24*time.Hour/time.Second), 0).UTC()
			return ErrRateLimited.
				With("limit", a.params.DailySubmissionLimit).
				With("retry_after_seconds", int64(nextDay.Sub(now).Seconds()))
		}

		existing, err := a.repo.FindContentHash(ctx, check.ContentHash)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to check content hash: %w", err)
		}
		if existing != nil {
			return ErrDuplicateContent.
				With("original_worker", existing.Worker).
				With("original_task_id", existing.TaskID)
		}

		if check.MetadataHash == "" {
			return ErrEmptyMetadata
		}

		if err := a.repo.AppendLog(ctx, &model.SubmissionLogModel{
			ID:           uuid.New().String(),
			Worker:       check.Worker,
			TaskID:       check.TaskID,
			ContentHash:  check.ContentHash,
			MetadataHash: check.MetadataHash,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("failed to append submission log: %w", err)
		}
		if err := a.repo.CreateContentHash(ctx, &model.ContentHashModel{
			Hash:      check.ContentHash,
			Worker:    check.Worker,
			TaskID:    check.TaskID,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to record content hash: %w", err)
		}

		activity.DailyCount++
		activity.UpdatedAt = now
		if err := a.repo.SaveActivity(ctx, activity); err != nil {
			return fmt.Errorf("failed to save worker activity: %w", err)
		}
		return nil
	})
}

// DepositStake 登记工人保证金,工人本人或所有者可调用
func (a *AntiFraud) DepositStake(ctx context.Context, caller, worker string, amount money.Amount) (money.Amount, error) {
	if caller != worker {
		if err := a.requireOwner(caller); err != nil {
			return 0, err
		}
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount.With("amount", amount.String())
	}

	var balance money.Amount
	err := a.exec(ctx, []string{workerKey(worker)}, func(ctx context.Context) error {
		activity, err := a.repo.EnsureActivity(ctx, worker, a.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to load worker activity: %w", err)
		}
		activity.StakeBalance += amount
		activity.UpdatedAt = a.clock.Now()
		balance = activity.StakeBalance
		return a.repo.SaveActivity(ctx, activity)
	})
	return balance, err
}

// ForfeitStake 没收工人保证金
func (a *AntiFraud) ForfeitStake(ctx context.Context, caller, worker, reason string) (money.Amount, error) {
	if err := a.authorize(ctx, caller, OpForfeitStake); err != nil {
		return 0, err
	}

	var forfeited money.Amount
	err := a.exec(ctx, []string{workerKey(worker)}, func(ctx context.Context) error {
		activity, err := a.repo.EnsureActivity(ctx, worker, a.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to load worker activity: %w", err)
		}
		if activity.StakeBalance <= 0 {
			return ErrNoStake.With("worker", worker)
		}
		forfeited = activity.StakeBalance
		activity.StakeBalance = 0
		activity.UpdatedAt = a.clock.Now()
		if err := a.repo.SaveActivity(ctx, activity); err != nil {
			return fmt.Errorf("failed to save worker activity: %w", err)
		}
		return a.pools.credit(ctx, PoolForfeitedStakes, PrincipalAntiFraud, forfeited)
	})
	if err != nil {
		return 0, err
	}

	a.log.WithFields(logrus.Fields{
		"worker": worker,
		"amount": forfeited.String(),
		"reason": reason,
	}).Warn("Worker stake forfeited")
	return forfeited, nil
}

// BlacklistWorker 加入黑名单
func (a *AntiFraud) BlacklistWorker(ctx context.Context, caller, worker, reason string) error {
	return a.setBlacklisted(ctx, caller, worker, reason, true)
}

// UnblacklistWorker 移出黑名单
func (a *AntiFraud) UnblacklistWorker(ctx context.Context, caller, worker string) error {
	return a.setBlacklisted(ctx, caller, worker, "", false)
}

func (a *AntiFraud) setBlacklisted(ctx context.Context, caller, worker, reason string, blacklisted bool) error {
	if err := a.requireOwner(caller); err != nil {
		return err
	}
	if err := utils.ValidateIdentity(worker); err != nil {
		return ErrInvalidParams.With("field", "worker")
	}

	return a.exec(ctx, []string{workerKey(worker)}, func(ctx context.Context) error {
		activity, err := a.repo.EnsureActivity(ctx, worker, a.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to load worker activity: %w", err)
		}
		if activity.Blacklisted == blacklisted {
			if blacklisted {
				return ErrAlreadyBlacklisted.With("worker", worker)
			}
			return ErrNotBlacklisted.With("worker", worker)
		}
		activity.Blacklisted = blacklisted
		activity.UpdatedAt = a.clock.Now()
		if err := a.repo.SaveActivity(ctx, activity); err != nil {
			return fmt.Errorf("failed to save worker activity: %w", err)
		}
		return a.journal.emit(ctx, worker, EventWorkerBlacklisted, map[string]interface{}{
			"worker":      worker,
			"blacklisted": blacklisted,
			"reason":      reason,
			"operator":    caller,
		})
	})
}

// CheckImageSimilarity 只做精确匹配,阈值仅校验范围
func (a *AntiFraud) CheckImageSimilarity(ctx context.Context, hash string, thresholdPercent int) (bool, string, error) {
	if thresholdPercent < 0 || thresholdPercent > 100 {
		return false, "", ErrInvalidParams.With("field", "threshold")
	}
	entry, err := a.repo.FindContentHash(ctx, hash)
	if err != nil {
		if isNotFound(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to check content hash: %w", err)
	}
	return true, entry.Worker, nil
}

// ValidateTimestamp 拒绝未来时间和超过 maxAge 的时间
func (a *AntiFraud) ValidateTimestamp(ts time.Time, maxAge time.Duration) error {
	now := a.clock.Now()
	if ts.After(now) {
		return ErrTimestampInFuture.With("timestamp", ts.UTC().Format(time.RFC3339))
	}
	if now.Sub(ts) > maxAge {
		return ErrTimestampTooOld.
			With("timestamp", ts.UTC().Format(time.RFC3339)).
			With("max_age_seconds", int64(maxAge.Seconds()))
	}
	return nil
}

// IsBlacklisted 是否在黑名单中
func (a *AntiFraud) IsBlacklisted(ctx context.Context, worker string) (bool, error) {
	activity, err := a.GetActivity(ctx, worker)
	if err != nil {
		return false, err
	}
	return activity.Blacklisted, nil
}

// StakeOf 工人当前保证金
func (a *AntiFraud) StakeOf(ctx context.Context, worker string) (money.Amount, error) {
	activity, err := a.GetActivity(ctx, worker)
	if err != nil {
		return 0, err
	}
	return activity.Stake, nil
}

// GetActivity 工人反作弊状态,日计数按当前日期折算
func (a *AntiFraud) GetActivity(ctx context.Context, worker string) (*WorkerActivity, error) {
	view := &WorkerActivity{Worker: worker, DailyLimit: a.params.DailySubmissionLimit}
	activity, err := a.repo.FindActivity(ctx, worker)
	if err != nil {
		if isNotFound(err) {
			return view, nil
		}
		return nil, fmt.Errorf("failed to get worker activity: %w", err)
	}
	view.Blacklisted = activity.Blacklisted
	view.Stake = activity.StakeBalance
	if activity.DayStamp == dayStamp(a.clock.Now()) {
		view.SubmittedToday = activity.DailyCount
	}
	return view, nil
}

// ListBlacklisted 黑名单
func (a *AntiFraud) ListBlacklisted(ctx context.Context) ([]string, error) {
	activities, err := a.repo.FindBlacklisted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list blacklist: %w", err)
	}
	workers := make([]string, 0, len(activities))
	for _, act := range activities {
		workers = append(workers, act.Worker)
	}
	return workers, nil
}

// SubmissionLog 工人的提交日志
func (a *AntiFraud) SubmissionLog(ctx context.Context, worker string, limit int) ([]*model.SubmissionLogModel, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return a.repo.FindLogs(ctx, worker, limit)
}
