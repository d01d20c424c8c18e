package repository

import (
	"context"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 状态历史仓储接口
type StateHistoryRepository interface {
	Save(ctx context.Context, history *model.StateHistoryModel) error
	FindByResource(ctx context.Context, resourceType, resourceID string) ([]*model.StateHistoryModel, error)
}

// stateHistoryRepository 状态历史仓储实现
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(ctx context.Context, history *model.StateHistoryModel) error {
	return database.Conn(ctx, r.db).Save(history).Error
}

// FindByResource 根据资源查找状态历史
func (r *stateHistoryRepository) FindByResource(ctx context.Context, resourceType, resourceID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := database.Conn(ctx, r.db).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&histories).Error
	return histories, err
}
