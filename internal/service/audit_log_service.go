package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// 审计资源类型
const (
	ResourceTask       = "task"
	ResourceSubmission = "submission"
	ResourceWorker     = "worker"
	ResourceGrant      = "grant"
	ResourceFees       = "fees"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	ListByUser(ctx context.Context, userID string) ([]*model.AuditLogModel, error)
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	log       *logrus.Entry
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository, logger *logrus.Logger) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
		log:       logger.WithField("component", "audit"),
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	info := RequestInfoFrom(ctx)
	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}
	if err := auditLog.Validate(); err != nil {
		return err
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// ListByUser 查询用户的审计日志
func (s *auditLogService) ListByUser(ctx context.Context, userID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByUserID(ctx, userID)
}

// ListByResource 查询资源的审计日志
func (s *auditLogService) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(ctx, resourceType, resourceID)
}

// record 写审计日志,失败只记录警告,不影响已提交的账本操作
func record(ctx context.Context, audit AuditLogService, userID, action, resourceType, resourceID string, details interface{}) {
	if audit == nil || userID == "" {
		return
	}
	if err := audit.RecordAction(ctx, userID, action, resourceType, resourceID, details); err != nil {
		if s, ok := audit.(*auditLogService); ok {
			s.log.WithError(err).WithFields(logrus.Fields{
				"action":      action,
				"resource_id": resourceID,
			}).Warn("Failed to record audit log")
		}
	}
}
