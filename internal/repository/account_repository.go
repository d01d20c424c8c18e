package repository

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository 账户与划转流水仓储接口
type AccountRepository interface {
	Credit(ctx context.Context, identity string, amount money.Amount, at time.Time) error
	FindByIdentity(ctx context.Context, identity string) (*model.AccountModel, error)
	CreateTransfer(ctx context.Context, transfer *model.TransferModel) error
	FindTransfers(ctx context.Context, identity string, limit int) ([]*model.TransferModel, error)
}

// accountRepository 账户仓储实现
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Credit 增加账户余额,账户不存在时创建
func (r *accountRepository) Credit(ctx context.Context, identity string, amount money.Amount, at time.Time) error {
	conn := database.Conn(ctx, r.db)
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.AccountModel{Identity: identity, UpdatedAt: at}).Error; err != nil {
		return err
	}

	var account model.AccountModel
	if err := database.ForUpdate(conn).Where("identity = ?", identity).First(&account).Error; err != nil {
		return err
	}
	account.Balance += amount
	account.UpdatedAt = at
	return conn.Save(&account).Error
}

// FindByIdentity 查找账户
func (r *accountRepository) FindByIdentity(ctx context.Context, identity string) (*model.AccountModel, error) {
	var account model.AccountModel
	if err := database.Conn(ctx, r.db).Where("identity = ?", identity).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateTransfer 记录划转流水
func (r *accountRepository) CreateTransfer(ctx context.Context, transfer *model.TransferModel) error {
	return database.Conn(ctx, r.db).Create(transfer).Error
}

// FindTransfers 查找与身份相关的划转流水
func (r *accountRepository) FindTransfers(ctx context.Context, identity string, limit int) ([]*model.TransferModel, error) {
	var transfers []*model.TransferModel
	err := database.Conn(ctx, r.db).
		Where("source = ? OR destination = ?", identity, identity).
		Order("created_at DESC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}
