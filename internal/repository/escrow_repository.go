package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EscrowRepository 托管余额仓储接口
type EscrowRepository interface {
	FindByTaskID(ctx context.Context, taskID string) (*model.EscrowModel, error)
	FindByTaskIDForUpdate(ctx context.Context, taskID string) (*model.EscrowModel, error)
	Ensure(ctx context.Context, taskID string, at time.Time) (*model.EscrowModel, error)
	Save(ctx context.Context, escrow *model.EscrowModel) error
}

// escrowRepository 托管余额仓储实现
type escrowRepository struct {
	db *gorm.DB
}

// NewEscrowRepository 创建托管余额仓储
func NewEscrowRepository(db *gorm.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

// FindByTaskID 查找任务托管余额
func (r *escrowRepository) FindByTaskID(ctx context.Context, taskID string) (*model.EscrowModel, error) {
	var escrow model.EscrowModel
	if err := database.Conn(ctx, r.db).Where("task_id = ?", taskID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

// FindByTaskIDForUpdate 查找并锁定任务托管余额
func (r *escrowRepository) FindByTaskIDForUpdate(ctx context.Context, taskID string) (*model.EscrowModel, error) {
	var escrow model.EscrowModel
	if err := database.ForUpdate(database.Conn(ctx, r.db)).Where("task_id = ?", taskID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

// Ensure 不存在时创建零余额记录,返回加锁后的记录
func (r *escrowRepository) Ensure(ctx context.Context, taskID string, at time.Time) (*model.EscrowModel, error) {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.EscrowModel{TaskID: taskID, CreatedAt: at, UpdatedAt: at}).Error; err != nil {
		return nil, err
	}
	var escrow model.EscrowModel
	if err := database.ForUpdate(conn).Where("task_id = ?", taskID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

// Save 保存托管余额
func (r *escrowRepository) Save(ctx context.Context, escrow *model.EscrowModel) error {
	return database.Conn(ctx, r.db).Save(escrow).Error
}

// PoolRepository 资金池仓储接口
type PoolRepository interface {
	FindByName(ctx context.Context, name string) (*model.PoolModel, error)
	Ensure(ctx context.Context, name, owner string, at time.Time) (*model.PoolModel, error)
	Save(ctx context.Context, pool *model.PoolModel) error
	FindAll(ctx context.Context) ([]*model.PoolModel, error)
}

// poolRepository 资金池仓储实现
type poolRepository struct {
	db *gorm.DB
}

// NewPoolRepository 创建资金池仓储
func NewPoolRepository(db *gorm.DB) PoolRepository {
	return &poolRepository{db: db}
}

// FindByName 根据名称查找资金池
func (r *poolRepository) FindByName(ctx context.Context, name string) (*model.PoolModel, error) {
	var pool model.PoolModel
	if err := database.Conn(ctx, r.db).Where("name = ?", name).First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

// Ensure 不存在时创建资金池,返回加锁后的记录
func (r *poolRepository) Ensure(ctx context.Context, name, owner string, at time.Time) (*model.PoolModel, error) {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.PoolModel{Name: name, Owner: owner, UpdatedAt: at}).Error; err != nil {
		return nil, err
	}
	var pool model.PoolModel
	if err := database.ForUpdate(conn).Where("name = ?", name).First(&pool).Error; err != nil {
		return nil, err
	}
	return &pool, nil
}

// Save 保存资金池
func (r *poolRepository) Save(ctx context.Context, pool *model.PoolModel) error {
	return database.Conn(ctx, r.db).Save(pool).Error
}

// FindAll 查找所有资金池
func (r *poolRepository) FindAll(ctx context.Context) ([]*model.PoolModel, error) {
	var pools []*model.PoolModel
	err := database.Conn(ctx, r.db).Order("name ASC").Find(&pools).Error
	return pools, err
}
