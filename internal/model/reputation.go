package model

import "time"

// ReputationModel 身份信誉记录
type ReputationModel struct {
	Identity               string    `gorm:"primaryKey;type:varchar(128)"`
	Score                  int       `gorm:"not null"`
	TasksCompleted         int       `gorm:"not null;default:0"`
	TasksRejected          int       `gorm:"not null;default:0"`
	VerificationsPerformed int       `gorm:"not null;default:0"`
	AccurateVerifications  int       `gorm:"not null;default:0"`
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ReputationModel) TableName() string {
	return "reputations"
}

// CategoryStatModel 分类统计与徽章
type CategoryStatModel struct {
	Identity  string `gorm:"primaryKey;type:varchar(128)"`
	Category  string `gorm:"primaryKey;type:varchar(32)"`
	Success   int    `gorm:"not null;default:0"`
	Total     int    `gorm:"not null;default:0"`
	Badge     bool   `gorm:"not null;default:false"`
	BadgeAt   *time.Time
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (CategoryStatModel) TableName() string {
	return "category_stats"
}
