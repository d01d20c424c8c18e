package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// TaskLedger 任务账本:任务生命周期、认领和完成提交
type TaskLedger struct {
	component
	tasks        repository.TaskRepository
	claims       repository.ClaimRepository
	submissions  repository.SubmissionRepository
	escrow       *Escrow
	antifraud    *AntiFraud
	reputation   *Reputation
	verification *Verification
}

// Requirements 任务的接单要求
type Requirements struct {
	PhotoCount       int    `json:"photo_count"`
	LocationRequired bool   `json:"location_required"`
	MinReputation    int    `json:"min_reputation"`
	RequiredBadge    string `json:"required_badge,omitempty"`
}

// CreateTaskParams 创建任务参数
type CreateTaskParams struct {
	Description  string
	Category     string
	MaxWorkers   int
	Location     utils.Point
	RadiusMeters float64
	Deadline     time.Time
	Requirements Requirements
}

// Evidence 完成证据
type Evidence struct {
	ContentHash  string
	MetadataHash string
	Location     utils.Point
	CapturedAt   *time.Time
}

// CreateTask 创建任务并把附带资金存入托管。每个名额的赏金为 funds / maxWorkers
func (l *TaskLedger) CreateTask(ctx context.Context, requester string, params CreateTaskParams, funds money.Amount) (*model.TaskModel, error) {
	if err := utils.ValidateIdentity(requester); err != nil {
		return nil, ErrInvalidParams.With("field", "requester")
	}
	category, err := ParseCategory(params.Category)
	if err != nil {
		return nil, err
	}
	if params.MaxWorkers <= 0 {
		return nil, ErrInvalidParams.With("field", "max_workers")
	}
	if !params.Location.Valid() || params.RadiusMeters < 0 || math.IsNaN(params.RadiusMeters) {
		return nil, ErrInvalidLocation
	}
	if params.Requirements.LocationRequired && params.RadiusMeters == 0 {
		return nil, ErrInvalidLocation.With("reason", "radius required when location is required")
	}
	if params.Requirements.MinReputation < 0 || params.Requirements.MinReputation > l.params.MaxScore {
		return nil, ErrInvalidParams.With("field", "min_reputation")
	}
	if params.Requirements.RequiredBadge != "" {
		if _, err := ParseCategory(params.Requirements.RequiredBadge); err != nil {
			return nil, ErrInvalidParams.With("field", "required_badge")
		}
	}
	if funds < l.params.MinimumBounty {
		return nil, ErrBountyTooLow.
			With("required", l.params.MinimumBounty.String()).
			With("available", funds.String())
	}
	perWorker := funds / money.Amount(params.MaxWorkers)
	if perWorker < l.params.MinimumBounty {
		return nil, ErrBountyTooLow.
			With("required", l.params.MinimumBounty.String()).
			With("per_worker", perWorker.String())
	}
	now := l.clock.Now()
	if !params.Deadline.After(now) {
		return nil, ErrInvalidDeadline.With("deadline", params.Deadline.UTC().Format(time.RFC3339))
	}

	task := &model.TaskModel{
		ID:               uuid.New().String(),
		Creator:          requester,
		Description:      utils.SanitizeString(params.Description),
		Category:         string(category),
		BountyAmount:     perWorker,
		FundedAmount:     funds,
		MaxWorkers:       params.MaxWorkers,
		Latitude:         params.Location.Latitude,
		Longitude:        params.Location.Longitude,
		RadiusMeters:     params.RadiusMeters,
		Deadline:         params.Deadline.UTC(),
		Status:           string(TaskActive),
		PhotoCount:       params.Requirements.PhotoCount,
		LocationRequired: params.Requirements.LocationRequired,
		MinReputation:    params.Requirements.MinReputation,
		RequiredBadge:    params.Requirements.RequiredBadge,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := task.Validate(); err != nil {
		return nil, ErrInvalidParams.With("reason", err.Error())
	}

	err = l.exec(ctx, []string{taskKey(task.ID)}, func(ctx context.Context) error {
		if err := l.tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := l.escrow.Deposit(ctx, PrincipalTaskLedger, task.ID, funds); err != nil {
			return err
		}
		if err := l.journal.transition(ctx, ResourceTask, task.ID, "", task.Status, "task created", requester); err != nil {
			return err
		}
		return l.journal.emit(ctx, task.ID, EventTaskCreated, map[string]interface{}{
			"task_id":     task.ID,
			"creator":     requester,
			"category":    task.Category,
			"bounty":      task.BountyAmount.String(),
			"max_workers": task.MaxWorkers,
			"deadline":    task.Deadline,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{"task_id": task.ID, "creator": requester, "funds": funds.String()}).Info("Task created")
	return task, nil
}

// ClaimTask 认领任务,首个认领将任务切换为进行中
func (l *TaskLedger) ClaimTask(ctx context.Context, worker, taskID string) (*model.ClaimModel, error) {
	if err := utils.ValidateIdentity(worker); err != nil {
		return nil, ErrInvalidParams.With("field", "worker")
	}

	var claim *model.ClaimModel
	err := l.exec(ctx, []string{taskKey(taskID), workerKey(worker)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		if !TaskStatus(task.Status).Claimable() {
			return ErrTaskNotClaimable.With("status", task.Status)
		}
		now := l.clock.Now()
		if !now.Before(task.Deadline) {
			return ErrTaskDeadlinePassed.With("deadline", task.Deadline.Format(time.RFC3339))
		}

		open, err := l.openClaims(ctx, worker)
		if err != nil {
			return err
		}
		// 过期认领释放后名额计数可能变化
		task, err = l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}

		existing, err := l.claims.FindActive(ctx, taskID, worker)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to get claim: %w", err)
		}
		if existing != nil {
			return ErrAlreadyClaimed.With("claim_id", existing.ID)
		}
		if len(open) >= l.params.MaxConcurrentClaims {
			return ErrClaimLimitReached.
				With("limit", l.params.MaxConcurrentClaims).
				With("open_claims", len(open))
		}
		if task.SlotsFull() {
			return ErrTaskFull.With("max_workers", task.MaxWorkers)
		}
		if task.MinReputation > 0 {
			score, err := l.reputation.GetReputationScore(ctx, worker)
			if err != nil {
				return err
			}
			if score < task.MinReputation {
				return ErrReputationTooLow.With("required", task.MinReputation).With("score", score)
			}
		}
		if task.RequiredBadge != "" {
			badge, err := l.reputation.HasCategoryBadge(ctx, worker, task.RequiredBadge)
			if err != nil {
				return err
			}
			if !badge {
				return ErrBadgeRequired.With("category", task.RequiredBadge)
			}
		}

		claim = &model.ClaimModel{
			ID:        uuid.New().String(),
			TaskID:    taskID,
			Worker:    worker,
			ClaimedAt: now,
		}
		if err := l.claims.Create(ctx, claim); err != nil {
			return fmt.Errorf("failed to create claim: %w", err)
		}

		task.ClaimedCount++
		task.UpdatedAt = now
		if TaskStatus(task.Status) == TaskActive {
			if err := l.transition(ctx, task, TaskInProgress, "first claim", worker); err != nil {
				return err
			}
		} else if err := l.tasks.Save(ctx, task); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}

		return l.journal.emit(ctx, taskID, EventTaskClaimed, map[string]interface{}{
			"task_id":  taskID,
			"worker":   worker,
			"claim_id": claim.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// openClaims 工人占用名额的认领,超过认领窗口的先释放并扣分
func (l *TaskLedger) openClaims(ctx context.Context, worker string) ([]*model.ClaimModel, error) {
	claims, err := l.claims.FindOpenByWorker(ctx, worker)
	if err != nil {
		return nil, fmt.Errorf("failed to get open claims: %w", err)
	}
	cutoff := l.clock.Now().Add(-l.params.ClaimWindow)
	open := claims[:0]
	for _, c := range claims {
		if c.ClaimedAt.Before(cutoff) {
			if err := l.releaseClaim(ctx, c, true, "claim window elapsed"); err != nil {
				return nil, err
			}
			continue
		}
		open = append(open, c)
	}
	return open, nil
}

// releaseClaim 释放认领并归还名额
func (l *TaskLedger) releaseClaim(ctx context.Context, claim *model.ClaimModel, penalize bool, reason string) error {
	now := l.clock.Now()
	claim.Released = true
	claim.ReleasedAt = timePtr(now)
	if err := l.claims.Save(ctx, claim); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}

	task, err := l.tasks.FindByIDForUpdate(ctx, claim.TaskID)
	if err != nil {
		return notFound(err, ErrTaskNotFound, claim.TaskID)
	}
	if task.ClaimedCount > 0 {
		task.ClaimedCount--
	}
	task.UpdatedAt = now
	if err := l.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if penalize {
		if err := l.reputation.PenalizeWorker(ctx, PrincipalTaskLedger, claim.Worker, reason); err != nil {
			return err
		}
	}
	return l.journal.emit(ctx, claim.TaskID, EventClaimReleased, map[string]interface{}{
		"task_id":   claim.TaskID,
		"worker":    claim.Worker,
		"claim_id":  claim.ID,
		"penalized": penalize,
		"reason":    reason,
	})
}

// SubmitCompletion 提交完成证据,通过反作弊检查后开启审核
func (l *TaskLedger) SubmitCompletion(ctx context.Context, worker, taskID string, ev Evidence) (*model.SubmissionModel, error) {
	var sub *model.SubmissionModel
	err := l.exec(ctx, []string{taskKey(taskID), workerKey(worker)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}

		claim, err := l.claims.FindActive(ctx, taskID, worker)
		if err != nil {
			if isNotFound(err) {
				return ErrNoActiveClaim.With("task_id", taskID)
			}
			return fmt.Errorf("failed to get claim: %w", err)
		}
		if !claim.Open() {
			return ErrNoActiveClaim.With("task_id", taskID)
		}

		now := l.clock.Now()
		if expiresAt := claim.ClaimedAt.Add(l.params.ClaimWindow); now.After(expiresAt) {
			return ErrClaimExpired.With("expired_at", expiresAt.Format(time.RFC3339))
		}
		if !TaskStatus(task.Status).Claimable() {
			return ErrTaskNotClaimable.With("status", task.Status)
		}
		if !now.Before(task.Deadline) {
			return ErrTaskDeadlinePassed.With("deadline", task.Deadline.Format(time.RFC3339))
		}

		if task.LocationRequired {
			if !ev.Location.Valid() {
				return ErrInvalidLocation
			}
			center := utils.Point{Latitude: task.Latitude, Longitude: task.Longitude}
			distance := utils.HaversineDistance(center, ev.Location)
			if distance > task.RadiusMeters {
				return ErrOutsideGeofence.
					With("distance_meters", math.Round(distance)).
					With("radius_meters", task.RadiusMeters)
			}
		}
		if ev.CapturedAt != nil {
			if err := l.antifraud.ValidateTimestamp(*ev.CapturedAt, l.params.MaxEvidenceAge); err != nil {
				return err
			}
		}

		if err := l.antifraud.CheckAndRecordSubmission(ctx, PrincipalTaskLedger, SubmissionCheck{
			Worker:       worker,
			TaskID:       taskID,
			ContentHash:  ev.ContentHash,
			MetadataHash: ev.MetadataHash,
		}); err != nil {
			return err
		}

		claim.Completed = true
		claim.CompletedAt = timePtr(now)
		if err := l.claims.Save(ctx, claim); err != nil {
			return fmt.Errorf("failed to save claim: %w", err)
		}
		task.SubmissionCount++
		task.UpdatedAt = now
		if err := l.tasks.Save(ctx, task); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}

		sub, err = l.verification.CreateSubmission(ctx, PrincipalTaskLedger, NewSubmission{
			TaskID:       taskID,
			Worker:       worker,
			Category:     task.Category,
			ContentHash:  ev.ContentHash,
			MetadataHash: ev.MetadataHash,
			Location:     ev.Location,
			Bounty:       task.BountyAmount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{"task_id": taskID, "worker": worker, "submission_id": sub.ID}).Info("Completion submitted")
	return sub, nil
}

// ExpireTask 截止后将任务置为过期,释放未完成认领,退还未被占用的托管余额
func (l *TaskLedger) ExpireTask(ctx context.Context, caller, taskID string) (bool, error) {
	err := l.exec(ctx, []string{taskKey(taskID)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		status := TaskStatus(task.Status)
		if status.Terminal() {
			return ErrTaskNotExpirable.With("status", task.Status)
		}
		now := l.clock.Now()
		if now.Before(task.Deadline) {
			return ErrDeadlineNotReached.With("remaining_seconds", int64(math.Ceil(task.Deadline.Sub(now).Seconds())))
		}

		claims, err := l.claims.FindByTaskID(ctx, taskID)
		if err != nil {
			return fmt.Errorf("failed to get claims: %w", err)
		}
		for _, c := range claims {
			if !c.Open() {
				continue
			}
			c.Released = true
			c.ReleasedAt = timePtr(now)
			if err := l.claims.Save(ctx, c); err != nil {
				return fmt.Errorf("failed to release claim: %w", err)
			}
			if task.ClaimedCount > 0 {
				task.ClaimedCount--
			}
		}

		task.UpdatedAt = now
		if err := l.transition(ctx, task, TaskExpired, "deadline passed", caller); err != nil {
			return err
		}
		refund, err := l.refundUnreserved(ctx, task)
		if err != nil {
			return err
		}
		return l.journal.emit(ctx, taskID, EventTaskExpired, map[string]interface{}{
			"task_id": taskID,
			"refund":  refund,
		})
	})
	if err != nil {
		return false, err
	}
	l.log.WithField("task_id", taskID).Info("Task expired")
	return true, nil
}

// CancelTask 发布者在无人认领时取消任务,全额退款(扣除退款手续费)
func (l *TaskLedger) CancelTask(ctx context.Context, caller, taskID string) (*Payout, error) {
	var payout *Payout
	err := l.exec(ctx, []string{taskKey(taskID)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		if task.Creator != caller {
			return ErrNotCreator.With("caller", caller)
		}
		if TaskStatus(task.Status) != TaskActive || task.ClaimedCount > 0 || task.SubmissionCount > 0 {
			return ErrTaskNotCancellable.
				With("status", task.Status).
				With("claims", task.ClaimedCount).
				With("submissions", task.SubmissionCount)
		}

		task.UpdatedAt = l.clock.Now()
		if err := l.transition(ctx, task, TaskCancelled, "cancelled by creator", caller); err != nil {
			return err
		}
		balance, err := l.escrow.GetBalance(ctx, taskID)
		if err != nil {
			return err
		}
		if balance > 0 {
			payout, err = l.escrow.RefundBounty(ctx, PrincipalTaskLedger, taskID, task.Creator, balance)
			if err != nil {
				return err
			}
		}
		return l.journal.emit(ctx, taskID, EventTaskCancelled, map[string]interface{}{
			"task_id": taskID,
			"refund":  payout,
		})
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// RecordVerified 审核通过回调,通过数达到名额数时任务完成并退还余量
func (l *TaskLedger) RecordVerified(ctx context.Context, caller, taskID string) error {
	if err := l.authorize(ctx, caller, OpRecordVerified); err != nil {
		return err
	}
	return l.exec(ctx, []string{taskKey(taskID)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		task.VerifiedCount++
		task.UpdatedAt = l.clock.Now()

		if task.VerifiedCount < task.MaxWorkers || TaskStatus(task.Status) != TaskInProgress {
			if err := l.tasks.Save(ctx, task); err != nil {
				return fmt.Errorf("failed to save task: %w", err)
			}
			return nil
		}

		if err := l.transition(ctx, task, TaskCompleted, "all slots verified", caller); err != nil {
			return err
		}
		refund, err := l.refundUnreserved(ctx, task)
		if err != nil {
			return err
		}
		return l.journal.emit(ctx, taskID, EventTaskCompleted, map[string]interface{}{
			"task_id":        taskID,
			"verified_count": task.VerifiedCount,
			"refund":         refund,
		})
	})
}

// RecordRejected 审核拒绝回调。任务未结束时释放该工人的认领以归还名额,
// 任务已结束时退还该提交预留的赏金
func (l *TaskLedger) RecordRejected(ctx context.Context, caller, taskID, worker string, bounty money.Amount) error {
	if err := l.authorize(ctx, caller, OpRecordRejected); err != nil {
		return err
	}
	return l.exec(ctx, []string{taskKey(taskID), workerKey(worker)}, func(ctx context.Context) error {
		task, err := l.tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		if !TaskStatus(task.Status).Terminal() {
			return l.reopenSlot(ctx, taskID, worker)
		}
		if bounty <= 0 {
			return nil
		}
		balance, err := l.escrow.GetBalance(ctx, taskID)
		if err != nil {
			return err
		}
		if bounty > balance {
			bounty = balance
		}
		if bounty == 0 {
			return nil
		}
		_, err = l.escrow.RefundBounty(ctx, PrincipalTaskLedger, taskID, task.Creator, bounty)
		return err
	})
}

// reopenSlot 释放被拒绝提交对应的已完成认领,不扣分
func (l *TaskLedger) reopenSlot(ctx context.Context, taskID, worker string) error {
	claim, err := l.claims.FindActive(ctx, taskID, worker)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get claim: %w", err)
	}
	if !claim.Completed {
		return nil
	}
	return l.releaseClaim(ctx, claim, false, "submission rejected")
}

// refundUnreserved 退还托管余额中未被待审核或待支付提交占用的部分
func (l *TaskLedger) refundUnreserved(ctx context.Context, task *model.TaskModel) (*Payout, error) {
	balance, err := l.escrow.GetBalance(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	outstanding, err := l.submissions.SumOutstanding(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding submissions: %w", err)
	}
	refund := balance - outstanding
	if refund <= 0 {
		return nil, nil
	}
	return l.escrow.RefundBounty(ctx, PrincipalTaskLedger, task.ID, task.Creator, refund)
}

func (l *TaskLedger) transition(ctx context.Context, task *model.TaskModel, to TaskStatus, reason, operator string) error {
	from := task.Status
	next, err := TaskStatus(from).Transition(to)
	if err != nil {
		return err
	}
	task.Status = string(next)
	if err := l.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return l.journal.transition(ctx, ResourceTask, task.ID, from, task.Status, reason, operator)
}

// ReleaseExpiredClaims 释放超过认领窗口的认领并扣分,返回释放数量
func (l *TaskLedger) ReleaseExpiredClaims(ctx context.Context, limit int) (int, error) {
	cutoff := l.clock.Now().Add(-l.params.ClaimWindow)
	expired, err := l.claims.FindExpired(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired claims: %w", err)
	}

	released := 0
	for _, c := range expired {
		claim := c
		done := false
		err := l.exec(ctx, []string{taskKey(claim.TaskID), workerKey(claim.Worker)}, func(ctx context.Context) error {
			current, err := l.claims.FindActive(ctx, claim.TaskID, claim.Worker)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return err
			}
			if current.ID != claim.ID || !current.Open() {
				return nil
			}
			if err := l.releaseClaim(ctx, current, true, "claim window elapsed"); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			l.log.WithError(err).WithField("claim_id", claim.ID).Error("Failed to release expired claim")
			continue
		}
		if done {
			released++
		}
	}
	return released, nil
}

// ExpireOverdueTasks 将已过截止时间的任务置为过期,返回处理数量
func (l *TaskLedger) ExpireOverdueTasks(ctx context.Context, limit int) (int, error) {
	overdue, err := l.tasks.FindOverdue(ctx, l.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue tasks: %w", err)
	}

	expired := 0
	for _, task := range overdue {
		if _, err := l.ExpireTask(ctx, PrincipalTaskLedger, task.ID); err != nil {
			l.log.WithError(err).WithField("task_id", task.ID).Error("Failed to expire task")
			continue
		}
		expired++
	}
	return expired, nil
}

// GetTask 查询任务
func (l *TaskLedger) GetTask(ctx context.Context, taskID string) (*model.TaskModel, error) {
	task, err := l.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, taskID)
	}
	return task, nil
}

// TaskCreator 任务发布者
func (l *TaskLedger) TaskCreator(ctx context.Context, taskID string) (string, error) {
	task, err := l.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	return task.Creator, nil
}

// ListTasks 分页查询任务
func (l *TaskLedger) ListTasks(ctx context.Context, filter *repository.TaskFilter) ([]*model.TaskModel, int64, error) {
	return l.tasks.FindByFilter(ctx, filter)
}

// GetClaims 任务的全部认领
func (l *TaskLedger) GetClaims(ctx context.Context, taskID string) ([]*model.ClaimModel, error) {
	if _, err := l.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return l.claims.FindByTaskID(ctx, taskID)
}

// GetOpenClaims 工人占用名额的认领
func (l *TaskLedger) GetOpenClaims(ctx context.Context, worker string) ([]*model.ClaimModel, error) {
	return l.claims.FindOpenByWorker(ctx, worker)
}
