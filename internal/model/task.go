package model

import (
	"errors"
	"time"

	"github.com/mautops/bounty-gin/internal/money"
)

// TaskModel 任务数据模型
type TaskModel struct {
	ID               string       `gorm:"primaryKey;type:varchar(64)"`
	Creator          string       `gorm:"type:varchar(128);not null;index"`
	Description      string       `gorm:"type:text"`
	Category         string       `gorm:"type:varchar(32);not null;index"`
	BountyAmount     money.Amount `gorm:"not null"` // 单个工人的赏金
	FundedAmount     money.Amount `gorm:"not null"` // 创建时附带的总金额
	MaxWorkers       int          `gorm:"not null"`
	Latitude         float64
	Longitude        float64
	RadiusMeters     float64
	Deadline         time.Time `gorm:"not null;index"`
	Status           string    `gorm:"type:varchar(32);not null;index"`
	PhotoCount       int
	LocationRequired bool
	MinReputation    int
	RequiredBadge    string    `gorm:"type:varchar(32)"`
	SubmissionCount  int       `gorm:"not null;default:0"`
	VerifiedCount    int       `gorm:"not null;default:0"`
	ClaimedCount     int       `gorm:"not null;default:0"` // 未释放的认领数
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Creator == "" {
		return errors.New("task creator is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	if tm.MaxWorkers <= 0 {
		return errors.New("max workers must be positive")
	}
	return nil
}

// SlotsFull 判断工人名额是否已满
func (tm *TaskModel) SlotsFull() bool {
	return tm.ClaimedCount >= tm.MaxWorkers
}

// ClaimModel 认领记录,每个 (任务, 工人) 同时最多一条未释放记录
type ClaimModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	TaskID      string    `gorm:"type:varchar(64);not null;index"`
	Worker      string    `gorm:"type:varchar(128);not null;index"`
	ClaimedAt   time.Time `gorm:"not null;index"`
	Completed   bool      `gorm:"not null;default:false"`
	Released    bool      `gorm:"not null;default:false"`
	CompletedAt *time.Time
	ReleasedAt  *time.Time
}

// TableName 指定表名
func (ClaimModel) TableName() string {
	return "claims"
}

// Open 判断认领是否仍占用工人的并发名额
func (cm *ClaimModel) Open() bool {
	return !cm.Completed && !cm.Released
}
