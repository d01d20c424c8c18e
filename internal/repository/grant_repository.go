package repository

import (
	"context"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantRepository 授权仓储接口
type GrantRepository interface {
	Save(ctx context.Context, grant *model.GrantModel) error
	Delete(ctx context.Context, caller, operation string) error
	Exists(ctx context.Context, caller, operation string) (bool, error)
	FindAll(ctx context.Context) ([]*model.GrantModel, error)
}

// grantRepository 授权仓储实现
type grantRepository struct {
	db *gorm.DB
}

// NewGrantRepository 创建授权仓储
func NewGrantRepository(db *gorm.DB) GrantRepository {
	return &grantRepository{db: db}
}

// Save 保存授权,已存在时忽略
func (r *grantRepository) Save(ctx context.Context, grant *model.GrantModel) error {
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(grant).Error
}

// Delete 删除授权
func (r *grantRepository) Delete(ctx context.Context, caller, operation string) error {
	return database.Conn(ctx, r.db).
		Where("caller = ? AND operation = ?", caller, operation).
		Delete(&model.GrantModel{}).Error
}

// Exists 判断授权是否存在
func (r *grantRepository) Exists(ctx context.Context, caller, operation string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&model.GrantModel{}).
		Where("caller = ? AND operation = ?", caller, operation).
		Count(&count).Error
	return count > 0, err
}

// FindAll 查找全部授权
func (r *grantRepository) FindAll(ctx context.Context) ([]*model.GrantModel, error) {
	var grants []*model.GrantModel
	err := database.Conn(ctx, r.db).Order("caller ASC, operation ASC").Find(&grants).Error
	return grants, err
}
