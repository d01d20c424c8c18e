package service

import (
	"context"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
)

// TaskService 任务服务接口
type TaskService interface {
	Create(ctx context.Context, caller string, req *CreateTaskRequest) (*TaskView, error)
	Get(ctx context.Context, id string) (*TaskView, error)
	List(ctx context.Context, req *ListTasksRequest) ([]*TaskView, int64, error)
	Claim(ctx context.Context, caller, id string) (*ClaimView, error)
	Submit(ctx context.Context, caller, id string, req *SubmitCompletionRequest) (*SubmissionView, error)
	Expire(ctx context.Context, caller, id string) (bool, error)
	Cancel(ctx context.Context, caller, id string) (*ledger.Payout, error)
	Claims(ctx context.Context, id string) ([]*ClaimView, error)
	Escrow(ctx context.Context, id string) (*EscrowView, error)
	History(ctx context.Context, id string) ([]*StateHistory, error)
}

// CreateTaskRequest 创建任务请求
// @Description 创建悬赏任务的请求参数,funds 按 max_workers 平分为每个名额的赏金
type CreateTaskRequest struct {
	Description  string              `json:"description" example:"Photograph the storefront opening hours" binding:"required"`
	Category     string              `json:"category" example:"business_hours" binding:"required"`
	MaxWorkers   int                 `json:"max_workers" example:"3" binding:"required,min=1"`
	Latitude     float64             `json:"latitude" example:"52.52"`
	Longitude    float64             `json:"longitude" example:"13.405"`
	RadiusMeters float64             `json:"radius_meters" example:"200"`
	Deadline     time.Time           `json:"deadline" binding:"required"`
	Funds        money.Amount        `json:"funds" swaggertype:"string" example:"3.0"`
	Requirements ledger.Requirements `json:"requirements"`
}

// ListTasksRequest 任务列表查询参数
type ListTasksRequest struct {
	Status   string `form:"status"`
	Category string `form:"category"`
	Creator  string `form:"creator"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// SubmitCompletionRequest 提交完成证据请求
// @Description 工作者提交完成证据,captured_at 可选
type SubmitCompletionRequest struct {
	ContentHash  string     `json:"content_hash" example:"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG" binding:"required"`
	MetadataHash string     `json:"metadata_hash" example:"exif9f2c" binding:"required"`
	Latitude     float64    `json:"latitude" example:"52.5201"`
	Longitude    float64    `json:"longitude" example:"13.4049"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
}

type taskService struct {
	system *ledger.System
	audit  AuditLogService
}

// NewTaskService 创建任务服务
func NewTaskService(system *ledger.System, audit AuditLogService) TaskService {
	return &taskService{system: system, audit: audit}
}

// Create 创建任务
func (s *taskService) Create(ctx context.Context, caller string, req *CreateTaskRequest) (*TaskView, error) {
	task, err := s.system.Tasks.CreateTask(ctx, caller, ledger.CreateTaskParams{
		Description:  req.Description,
		Category:     req.Category,
		MaxWorkers:   req.MaxWorkers,
		Location:     utils.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		RadiusMeters: req.RadiusMeters,
		Deadline:     req.Deadline,
		Requirements: req.Requirements,
	}, req.Funds)
	metrics.RecordOperation("create_task", outcome(err))
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskCreated(task.Category)
	record(ctx, s.audit, caller, "create", ResourceTask, task.ID, map[string]interface{}{
		"category":    task.Category,
		"funds":       task.FundedAmount,
		"max_workers": task.MaxWorkers,
	})

	return toTaskView(task), nil
}

// Get 获取任务详情
func (s *taskService) Get(ctx context.Context, id string) (*TaskView, error) {
	task, err := s.system.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTaskView(task), nil
}

// List 分页查询任务
func (s *taskService) List(ctx context.Context, req *ListTasksRequest) ([]*TaskView, int64, error) {
	filter := &repository.TaskFilter{Page: req.Page, PageSize: req.PageSize}
	if req.Status != "" {
		filter.Status = &req.Status
	}
	if req.Category != "" {
		filter.Category = &req.Category
	}
	if req.Creator != "" {
		filter.Creator = &req.Creator
	}

	tasks, total, err := s.system.Tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	return views, total, nil
}

// Claim 认领任务
func (s *taskService) Claim(ctx context.Context, caller, id string) (*ClaimView, error) {
	claim, err := s.system.Tasks.ClaimTask(ctx, caller, id)
	metrics.RecordOperation("claim", outcome(err))
	if err != nil {
		return nil, err
	}

	record(ctx, s.audit, caller, "claim", ResourceTask, id, map[string]interface{}{"claim_id": claim.ID})
	return toClaimView(claim, s.system.Params.ClaimWindow), nil
}

// Submit 提交完成证据
func (s *taskService) Submit(ctx context.Context, caller, id string, req *SubmitCompletionRequest) (*SubmissionView, error) {
	sub, err := s.system.Tasks.SubmitCompletion(ctx, caller, id, ledger.Evidence{
		ContentHash:  req.ContentHash,
		MetadataHash: req.MetadataHash,
		Location:     utils.Point{Latitude: req.Latitude, Longitude: req.Longitude},
		CapturedAt:   req.CapturedAt,
	})
	metrics.RecordOperation("submit", outcome(err))
	if err != nil {
		return nil, err
	}

	record(ctx, s.audit, caller, "submit", ResourceTask, id, map[string]interface{}{
		"submission_id": sub.ID,
		"content_hash":  sub.ContentHash,
	})
	return toSubmissionView(sub), nil
}

// Expire 截止后使任务过期
func (s *taskService) Expire(ctx context.Context, caller, id string) (bool, error) {
	expired, err := s.system.Tasks.ExpireTask(ctx, caller, id)
	metrics.RecordOperation("expire", outcome(err))
	if err != nil {
		return false, err
	}
	if expired {
		record(ctx, s.audit, caller, "expire", ResourceTask, id, nil)
	}
	return expired, nil
}

// Cancel 取消无人认领的任务
func (s *taskService) Cancel(ctx context.Context, caller, id string) (*ledger.Payout, error) {
	payout, err := s.system.Tasks.CancelTask(ctx, caller, id)
	metrics.RecordOperation("cancel", outcome(err))
	if err != nil {
		return nil, err
	}

	if payout != nil {
		metrics.RecordPayout("refund", payout.Gross)
	}
	record(ctx, s.audit, caller, "cancel", ResourceTask, id, payout)
	return payout, nil
}

// Claims 查询任务的认领记录
func (s *taskService) Claims(ctx context.Context, id string) ([]*ClaimView, error) {
	if _, err := s.system.Tasks.GetTask(ctx, id); err != nil {
		return nil, err
	}
	claims, err := s.system.Tasks.GetClaims(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]*ClaimView, 0, len(claims))
	for _, c := range claims {
		views = append(views, toClaimView(c, s.system.Params.ClaimWindow))
	}
	return views, nil
}

// Escrow 查询任务托管
func (s *taskService) Escrow(ctx context.Context, id string) (*EscrowView, error) {
	escrow, err := s.system.Escrow.GetEscrow(ctx, id)
	if err != nil {
		return nil, err
	}
	return toEscrowView(escrow), nil
}

// History 查询任务状态历史
func (s *taskService) History(ctx context.Context, id string) ([]*StateHistory, error) {
	if _, err := s.system.Tasks.GetTask(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.system.History(ctx, ledger.ResourceTask, id)
	if err != nil {
		return nil, err
	}
	return toStateHistory(records), nil
}

// outcome 把错误折算为指标标签
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e, ok := ledger.AsError(err); ok {
		return e.Code
	}
	return "error"
}
