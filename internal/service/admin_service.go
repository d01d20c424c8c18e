package service

import (
	"context"

	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/money"
)

// AdminService 所有者运维服务
type AdminService interface {
	Blacklist(ctx context.Context, caller, worker, reason string) error
	Unblacklist(ctx context.Context, caller, worker string) error
	Blacklisted(ctx context.Context) ([]string, error)
	Activity(ctx context.Context, worker string) (*ledger.WorkerActivity, error)
	DepositStake(ctx context.Context, caller, worker string, amount money.Amount) (money.Amount, error)
	WithdrawFees(ctx context.Context, caller string) (money.Amount, error)
	ResolveDispute(ctx context.Context, caller, submissionID string, approved bool) (*ledger.VoteOutcome, error)
	Grant(ctx context.Context, caller string, req *GrantRequest) error
	Revoke(ctx context.Context, caller string, req *GrantRequest) error
	Grants(ctx context.Context) ([]authz.Grant, error)
}

// BlacklistRequest 拉黑请求
type BlacklistRequest struct {
	Reason string `json:"reason" example:"duplicate photos" binding:"required"`
}

// DepositStakeRequest 登记工作者保证金请求
type DepositStakeRequest struct {
	Amount money.Amount `json:"amount" swaggertype:"string" example:"0.5"`
}

// ResolveDisputeRequest 仲裁争议请求
type ResolveDisputeRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// GrantRequest 组件授权请求
type GrantRequest struct {
	Principal string `json:"principal" example:"component:verification" binding:"required"`
	Operation string `json:"operation" example:"escrow.distribute_reward" binding:"required"`
}

type adminService struct {
	system *ledger.System
	audit  AuditLogService
}

// NewAdminService 创建运维服务
func NewAdminService(system *ledger.System, audit AuditLogService) AdminService {
	return &adminService{system: system, audit: audit}
}

// Blacklist 拉黑工作者
func (s *adminService) Blacklist(ctx context.Context, caller, worker, reason string) error {
	if err := s.system.AntiFraud.BlacklistWorker(ctx, caller, worker, reason); err != nil {
		return err
	}
	record(ctx, s.audit, caller, "blacklist", ResourceWorker, worker, map[string]string{"reason": reason})
	return nil
}

// Unblacklist 解除拉黑
func (s *adminService) Unblacklist(ctx context.Context, caller, worker string) error {
	if err := s.system.AntiFraud.UnblacklistWorker(ctx, caller, worker); err != nil {
		return err
	}
	record(ctx, s.audit, caller, "unblacklist", ResourceWorker, worker, nil)
	return nil
}

// Blacklisted 黑名单列表
func (s *adminService) Blacklisted(ctx context.Context) ([]string, error) {
	return s.system.AntiFraud.ListBlacklisted(ctx)
}

// Activity 工作者风控状态
func (s *adminService) Activity(ctx context.Context, worker string) (*ledger.WorkerActivity, error) {
	return s.system.AntiFraud.GetActivity(ctx, worker)
}

// DepositStake 登记工作者保证金
func (s *adminService) DepositStake(ctx context.Context, caller, worker string, amount money.Amount) (money.Amount, error) {
	total, err := s.system.AntiFraud.DepositStake(ctx, caller, worker, amount)
	if err != nil {
		return 0, err
	}
	record(ctx, s.audit, caller, "deposit_stake", ResourceWorker, worker, map[string]interface{}{
		"amount": amount,
		"total":  total,
	})
	return total, nil
}

// WithdrawFees 提取平台费
func (s *adminService) WithdrawFees(ctx context.Context, caller string) (money.Amount, error) {
	amount, err := s.system.Escrow.WithdrawPlatformFees(ctx, caller)
	if err != nil {
		return 0, err
	}
	metrics.RecordPayout("withdrawal", amount)
	record(ctx, s.audit, caller, "withdraw", ResourceFees, caller, map[string]interface{}{"amount": amount})
	return amount, nil
}

// ResolveDispute 仲裁争议提交
func (s *adminService) ResolveDispute(ctx context.Context, caller, submissionID string, approved bool) (*ledger.VoteOutcome, error) {
	result, err := s.system.Verification.ResolveDispute(ctx, caller, submissionID, approved)
	if err != nil {
		return nil, err
	}
	metrics.RecordConsensus(string(result.Status))
	record(ctx, s.audit, caller, "resolve", ResourceSubmission, submissionID, map[string]interface{}{"approved": approved})
	return result, nil
}

// Grant 授予组件权限
func (s *adminService) Grant(ctx context.Context, caller string, req *GrantRequest) error {
	if err := s.system.Grant(ctx, caller, req.Principal, req.Operation); err != nil {
		return err
	}
	record(ctx, s.audit, caller, "grant", ResourceGrant, req.Principal, req)
	return nil
}

// Revoke 撤销组件权限
func (s *adminService) Revoke(ctx context.Context, caller string, req *GrantRequest) error {
	if err := s.system.Revoke(ctx, caller, req.Principal, req.Operation); err != nil {
		return err
	}
	record(ctx, s.audit, caller, "revoke", ResourceGrant, req.Principal, req)
	return nil
}

// Grants 当前授权列表
func (s *adminService) Grants(ctx context.Context) ([]authz.Grant, error) {
	return s.system.Grants(ctx)
}
