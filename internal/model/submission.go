package model

import (
	"errors"
	"time"

	"github.com/mautops/bounty-gin/internal/money"
)

// SubmissionModel 提交数据模型
type SubmissionModel struct {
	ID                 string `gorm:"primaryKey;type:varchar(64)"`
	TaskID             string `gorm:"type:varchar(64);not null;index"`
	Worker             string `gorm:"type:varchar(128);not null;index"`
	Category           string `gorm:"type:varchar(32);not null"`
	ContentHash        string `gorm:"type:varchar(128);not null"`
	MetadataHash       string `gorm:"type:varchar(128)"`
	Latitude           float64
	Longitude          float64
	SubmittedAt        time.Time    `gorm:"not null;index"`
	Status             string       `gorm:"type:varchar(32);not null;index"`
	Approvals          int          `gorm:"not null;default:0"`
	Rejections         int          `gorm:"not null;default:0"`
	TotalVotes         int          `gorm:"not null;default:0"`
	StakedCount        int          `gorm:"not null;default:0"`
	BountyAmount       money.Amount `gorm:"not null"` // 创建时的赏金快照
	RewardsDistributed bool         `gorm:"not null;default:false"`
	ConsensusAt        *time.Time
	DistributedAt      *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SubmissionModel) TableName() string {
	return "submissions"
}

// Validate 验证提交模型
func (sm *SubmissionModel) Validate() error {
	if sm.ID == "" {
		return errors.New("submission ID is required")
	}
	if sm.TaskID == "" {
		return errors.New("task ID is required")
	}
	if sm.Worker == "" {
		return errors.New("worker is required")
	}
	if sm.ContentHash == "" {
		return errors.New("content hash is required")
	}
	return nil
}

// VoteModel 审核人的质押与投票
type VoteModel struct {
	ID           string       `gorm:"primaryKey;type:varchar(64)"`
	SubmissionID string       `gorm:"type:varchar(64);not null;uniqueIndex:idx_votes_submission_reviewer"`
	Reviewer     string       `gorm:"type:varchar(128);not null;uniqueIndex:idx_votes_submission_reviewer;index"`
	Stake        money.Amount `gorm:"not null"`
	HasVoted     bool         `gorm:"not null;default:false"`
	Approved     bool         `gorm:"not null;default:false"`
	Feedback     string       `gorm:"type:text"`
	StakedAt     time.Time    `gorm:"not null"`
	VotedAt      *time.Time
	Settled      bool `gorm:"not null;default:false"`
	Accurate     bool `gorm:"not null;default:false"`
}

// TableName 指定表名
func (VoteModel) TableName() string {
	return "votes"
}
