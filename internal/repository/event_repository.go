package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.EventModel) error
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*model.EventModel, error)
	FindPending(ctx context.Context, limit int) ([]*model.EventModel, error)
	MarkSuccess(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, retryCount int, lastErr string, final bool, at time.Time) error
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.EventModel) error {
	return database.Conn(ctx, r.db).Save(event).Error
}

// FindByAggregateID 根据任务或提交 ID 查找事件
func (r *eventRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := database.Conn(ctx, r.db).Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待处理的事件
func (r *eventRepository) FindPending(ctx context.Context, limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := database.Conn(ctx, r.db).
		Where("status = ?", model.EventStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkSuccess 标记事件投递成功
func (r *eventRepository) MarkSuccess(ctx context.Context, id string, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&model.EventModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.EventStatusSuccess, "updated_at": at}).Error
}

// MarkFailed 记录投递失败,final 为 true 时不再重试
func (r *eventRepository) MarkFailed(ctx context.Context, id string, retryCount int, lastErr string, final bool, at time.Time) error {
	status := model.EventStatusPending
	if final {
		status = model.EventStatusFailed
	}
	return database.Conn(ctx, r.db).Model(&model.EventModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"last_error":  lastErr,
			"updated_at":  at,
		}).Error
}
