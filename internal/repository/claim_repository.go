package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
)

// ClaimRepository 认领仓储接口
type ClaimRepository interface {
	Create(ctx context.Context, claim *model.ClaimModel) error
	Save(ctx context.Context, claim *model.ClaimModel) error
	FindActive(ctx context.Context, taskID, worker string) (*model.ClaimModel, error)
	FindOpenByWorker(ctx context.Context, worker string) ([]*model.ClaimModel, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*model.ClaimModel, error)
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.ClaimModel, error)
}

// claimRepository 认领仓储实现
type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository 创建认领仓储
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// Create 创建认领
func (r *claimRepository) Create(ctx context.Context, claim *model.ClaimModel) error {
	return database.Conn(ctx, r.db).Create(claim).Error
}

// Save 保存认领
func (r *claimRepository) Save(ctx context.Context, claim *model.ClaimModel) error {
	return database.Conn(ctx, r.db).Save(claim).Error
}

// FindActive 查找工人在任务上未释放的认领(包括已完成的)
func (r *claimRepository) FindActive(ctx context.Context, taskID, worker string) (*model.ClaimModel, error) {
	var claim model.ClaimModel
	err := database.Conn(ctx, r.db).
		Where("task_id = ? AND worker = ? AND released = ?", taskID, worker, false).
		Order("claimed_at DESC").
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// FindOpenByWorker 查找工人所有未完成且未释放的认领
func (r *claimRepository) FindOpenByWorker(ctx context.Context, worker string) ([]*model.ClaimModel, error) {
	var claims []*model.ClaimModel
	err := database.Conn(ctx, r.db).
		Where("worker = ? AND completed = ? AND released = ?", worker, false, false).
		Order("claimed_at ASC").
		Find(&claims).Error
	return claims, err
}

// FindByTaskID 查找任务的全部认领
func (r *claimRepository) FindByTaskID(ctx context.Context, taskID string) ([]*model.ClaimModel, error) {
	var claims []*model.ClaimModel
	err := database.Conn(ctx, r.db).Where("task_id = ?", taskID).Order("claimed_at ASC").Find(&claims).Error
	return claims, err
}

// FindExpired 查找认领时间早于 cutoff 的未完成认领
func (r *claimRepository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*model.ClaimModel, error) {
	var claims []*model.ClaimModel
	err := database.Conn(ctx, r.db).
		Where("completed = ? AND released = ? AND claimed_at < ?", false, false, cutoff).
		Order("claimed_at ASC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}
