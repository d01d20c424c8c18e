package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReputationRepository 信誉仓储接口
type ReputationRepository interface {
	FindByIdentity(ctx context.Context, identity string) (*model.ReputationModel, error)
	Ensure(ctx context.Context, identity string, defaultScore int, at time.Time) (*model.ReputationModel, error)
	Save(ctx context.Context, record *model.ReputationModel) error
	FindCategory(ctx context.Context, identity, category string) (*model.CategoryStatModel, error)
	EnsureCategory(ctx context.Context, identity, category string, at time.Time) (*model.CategoryStatModel, error)
	SaveCategory(ctx context.Context, stat *model.CategoryStatModel) error
	FindCategories(ctx context.Context, identity string) ([]*model.CategoryStatModel, error)
	FindTop(ctx context.Context, limit int) ([]*model.ReputationModel, error)
}

// reputationRepository 信誉仓储实现
type reputationRepository struct {
	db *gorm.DB
}

// NewReputationRepository 创建信誉仓储
func NewReputationRepository(db *gorm.DB) ReputationRepository {
	return &reputationRepository{db: db}
}

// FindByIdentity 查找信誉记录
func (r *reputationRepository) FindByIdentity(ctx context.Context, identity string) (*model.ReputationModel, error) {
	var record model.ReputationModel
	if err := database.Conn(ctx, r.db).Where("identity = ?", identity).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Ensure 首次访问时以默认分数初始化,返回加锁后的记录
func (r *reputationRepository) Ensure(ctx context.Context, identity string, defaultScore int, at time.Time) (*model.ReputationModel, error) {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ReputationModel{Identity: identity, Score: defaultScore, CreatedAt: at, UpdatedAt: at}).Error; err != nil {
		return nil, err
	}
	var record model.ReputationModel
	if err := database.ForUpdate(conn).Where("identity = ?", identity).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Save 保存信誉记录
func (r *reputationRepository) Save(ctx context.Context, record *model.ReputationModel) error {
	return database.Conn(ctx, r.db).Save(record).Error
}

// FindCategory 查找分类统计
func (r *reputationRepository) FindCategory(ctx context.Context, identity, category string) (*model.CategoryStatModel, error) {
	var stat model.CategoryStatModel
	err := database.Conn(ctx, r.db).
		Where("identity = ? AND category = ?", identity, category).
		First(&stat).Error
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// EnsureCategory 不存在时创建分类统计,返回加锁后的记录
func (r *reputationRepository) EnsureCategory(ctx context.Context, identity, category string, at time.Time) (*model.CategoryStatModel, error) {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CategoryStatModel{Identity: identity, Category: category, UpdatedAt: at}).Error; err != nil {
		return nil, err
	}
	var stat model.CategoryStatModel
	err := database.ForUpdate(conn).
		Where("identity = ? AND category = ?", identity, category).
		First(&stat).Error
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// SaveCategory 保存分类统计
func (r *reputationRepository) SaveCategory(ctx context.Context, stat *model.CategoryStatModel) error {
	return database.Conn(ctx, r.db).Save(stat).Error
}

// FindCategories 查找身份的全部分类统计
func (r *reputationRepository) FindCategories(ctx context.Context, identity string) ([]*model.CategoryStatModel, error) {
	var stats []*model.CategoryStatModel
	err := database.Conn(ctx, r.db).Where("identity = ?", identity).Order("category ASC").Find(&stats).Error
	return stats, err
}

// FindTop 查找信誉分最高的身份
func (r *reputationRepository) FindTop(ctx context.Context, limit int) ([]*model.ReputationModel, error) {
	var records []*model.ReputationModel
	err := database.Conn(ctx, r.db).Order("score DESC, identity ASC").Limit(limit).Find(&records).Error
	return records, err
}
