package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
)

// 资源类型
const (
	ResourceTask       = "task"
	ResourceSubmission = "submission"
)

// 事件类型
const (
	EventTaskCreated         = "task.created"
	EventTaskClaimed         = "task.claimed"
	EventClaimReleased       = "claim.released"
	EventTaskCompleted       = "task.completed"
	EventTaskExpired         = "task.expired"
	EventTaskCancelled       = "task.cancelled"
	EventSubmissionCreated   = "submission.created"
	EventSubmissionStaked    = "submission.staked"
	EventSubmissionVoted     = "submission.voted"
	EventSubmissionFinalized = "submission.finalized"
	EventSubmissionDisputed  = "submission.disputed"
	EventRewardsDistributed  = "rewards.distributed"
	EventWorkerBlacklisted   = "worker.blacklisted"
	EventBadgeAwarded        = "badge.awarded"
)

// journal 在账本事务内写入状态历史和发件箱事件
type journal struct {
	history repository.StateHistoryRepository
	events  repository.EventRepository
	clock   Clock
}

func newJournal(history repository.StateHistoryRepository, events repository.EventRepository, clock Clock) *journal {
	return &journal{history: history, events: events, clock: clock}
}

// transition 记录一次状态迁移
func (j *journal) transition(ctx context.Context, resourceType, resourceID, from, to, reason, operator string) error {
	entry := &model.StateHistoryModel{
		ID:           uuid.New().String(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		FromState:    from,
		ToState:      to,
		Reason:       reason,
		Operator:     operator,
		CreatedAt:    j.clock.Now(),
	}
	if err := j.history.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to save state history: %w", err)
	}
	return nil
}

// emit 写入待投递事件
func (j *journal) emit(ctx context.Context, aggregateID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	now := j.clock.Now()
	evt := &model.EventModel{
		ID:          uuid.New().String(),
		AggregateID: aggregateID,
		Type:        eventType,
		Data:        data,
		Status:      model.EventStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := evt.Validate(); err != nil {
		return err
	}
	if err := j.events.Save(ctx, evt); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// History 查询资源的状态历史
func (j *journal) History(ctx context.Context, resourceType, resourceID string) ([]*model.StateHistoryModel, error) {
	return j.history.FindByResource(ctx, resourceType, resourceID)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
