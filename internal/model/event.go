package model

import (
	"errors"
	"time"
)

// 事件投递状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// EventModel 事件发件箱,与账本写入在同一事务中落库
type EventModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	AggregateID string    `gorm:"type:varchar(64);not null;index"` // 任务或提交 ID
	Type        string    `gorm:"type:varchar(64);not null;index"`
	Data        []byte    `gorm:"not null"` // JSON
	Status      string    `gorm:"type:varchar(32);not null;default:'pending'"`
	RetryCount  int       `gorm:"type:int;default:0"`
	LastError   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.AggregateID == "" {
		return errors.New("aggregate ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
