package model

import (
	"time"

	"github.com/mautops/bounty-gin/internal/money"
)

// WorkerActivityModel 工人的反作弊状态
type WorkerActivityModel struct {
	Worker       string       `gorm:"primaryKey;type:varchar(128)"`
	DayStamp     int64        `gorm:"not null;default:0"` // Unix 日序号
	DailyCount   int          `gorm:"not null;default:0"`
	Blacklisted  bool         `gorm:"not null;default:false;index"`
	StakeBalance money.Amount `gorm:"not null;default:0"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

// TableName 指定表名
func (WorkerActivityModel) TableName() string {
	return "worker_activity"
}

// ContentHashModel 全局内容哈希索引,每个哈希只属于一个工人
type ContentHashModel struct {
	Hash      string    `gorm:"primaryKey;type:varchar(128)"`
	Worker    string    `gorm:"type:varchar(128);not null"`
	TaskID    string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ContentHashModel) TableName() string {
	return "content_hashes"
}

// SubmissionLogModel 工人提交日志
type SubmissionLogModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Worker       string    `gorm:"type:varchar(128);not null"`
	TaskID       string    `gorm:"type:varchar(64);not null"`
	ContentHash  string    `gorm:"type:varchar(128);not null"`
	MetadataHash string    `gorm:"type:varchar(128);not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SubmissionLogModel) TableName() string {
	return "submission_logs"
}

// GrantModel 组件间调用授权
type GrantModel struct {
	Caller    string    `gorm:"primaryKey;type:varchar(128)"`
	Operation string    `gorm:"primaryKey;type:varchar(64)"`
	GrantedBy string    `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (GrantModel) TableName() string {
	return "grants"
}
