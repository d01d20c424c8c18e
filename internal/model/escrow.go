package model

import (
	"time"

	"github.com/mautops/bounty-gin/internal/money"
)

// EscrowModel 任务托管余额
type EscrowModel struct {
	TaskID      string       `gorm:"primaryKey;type:varchar(64)"`
	Balance     money.Amount `gorm:"not null;default:0"`
	Deposited   money.Amount `gorm:"not null;default:0"`
	Distributed money.Amount `gorm:"not null;default:0"`
	Refunded    money.Amount `gorm:"not null;default:0"`
	Fees        money.Amount `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

// TableName 指定表名
func (EscrowModel) TableName() string {
	return "escrows"
}

// PoolModel 组件持有的资金池(平台费、审核质押、罚没质押)
type PoolModel struct {
	Name      string       `gorm:"primaryKey;type:varchar(64)"`
	Owner     string       `gorm:"type:varchar(64)"` // 所属组件
	Balance   money.Amount `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName 指定表名
func (PoolModel) TableName() string {
	return "pools"
}

// AccountModel 身份的可提取余额
type AccountModel struct {
	Identity  string       `gorm:"primaryKey;type:varchar(128)"`
	Balance   money.Amount `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName 指定表名
func (AccountModel) TableName() string {
	return "accounts"
}

// TransferModel 资金划转流水
type TransferModel struct {
	ID          string       `gorm:"primaryKey;type:varchar(64)"`
	Source      string       `gorm:"type:varchar(128);not null;index"`
	Destination string       `gorm:"type:varchar(128);not null"`
	Amount      money.Amount `gorm:"not null"`
	Memo        string       `gorm:"type:varchar(255)"`
	CreatedAt   time.Time    `gorm:"not null"`
}

// TableName 指定表名
func (TransferModel) TableName() string {
	return "transfers"
}
