package service

import (
	"context"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/metrics"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
)

// VerificationService 审核服务接口
type VerificationService interface {
	Get(ctx context.Context, id string) (*SubmissionView, error)
	List(ctx context.Context, req *ListSubmissionsRequest) ([]*SubmissionView, error)
	Stake(ctx context.Context, caller, id string, req *StakeRequest) (*VoteView, error)
	Vote(ctx context.Context, caller, id string, req *VoteRequest) (*ledger.VoteOutcome, error)
	Distribute(ctx context.Context, caller, id string) (*ledger.Settlement, error)
	Votes(ctx context.Context, id string) ([]*VoteView, error)
	History(ctx context.Context, id string) ([]*StateHistory, error)
}

// ListSubmissionsRequest 提交列表查询参数
type ListSubmissionsRequest struct {
	TaskID string `form:"task_id"`
	Worker string `form:"worker"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

// StakeRequest 审核质押请求
type StakeRequest struct {
	Amount money.Amount `json:"amount" swaggertype:"string" example:"0.01"`
}

// VoteRequest 审核投票请求
type VoteRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Feedback string `json:"feedback" example:"Opening hours match the sign"`
}

type verificationService struct {
	system *ledger.System
	audit  AuditLogService
}

// NewVerificationService 创建审核服务
func NewVerificationService(system *ledger.System, audit AuditLogService) VerificationService {
	return &verificationService{system: system, audit: audit}
}

// Get 获取提交详情
func (s *verificationService) Get(ctx context.Context, id string) (*SubmissionView, error) {
	sub, err := s.system.Verification.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSubmissionView(sub), nil
}

// List 查询提交
func (s *verificationService) List(ctx context.Context, req *ListSubmissionsRequest) ([]*SubmissionView, error) {
	filter := &repository.SubmissionFilter{Limit: req.Limit}
	if req.TaskID != "" {
		filter.TaskID = &req.TaskID
	}
	if req.Worker != "" {
		filter.Worker = &req.Worker
	}
	if req.Status != "" {
		filter.Status = &req.Status
	}

	subs, err := s.system.Verification.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*SubmissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, toSubmissionView(sub))
	}
	return views, nil
}

// Stake 审核人质押
func (s *verificationService) Stake(ctx context.Context, caller, id string, req *StakeRequest) (*VoteView, error) {
	vote, err := s.system.Verification.StakeForVerification(ctx, caller, id, req.Amount)
	metrics.RecordOperation("stake", outcome(err))
	if err != nil {
		return nil, err
	}

	record(ctx, s.audit, caller, "stake", ResourceSubmission, id, map[string]interface{}{"stake": vote.Stake})
	return toVoteView(vote), nil
}

// Vote 审核投票
func (s *verificationService) Vote(ctx context.Context, caller, id string, req *VoteRequest) (*ledger.VoteOutcome, error) {
	approved := req.Approved != nil && *req.Approved
	result, err := s.system.Verification.SubmitVerification(ctx, caller, id, approved, req.Feedback)
	metrics.RecordOperation("vote", outcome(err))
	if err != nil {
		return nil, err
	}

	metrics.RecordVote(approved)
	if result.Finalized || result.Status == ledger.SubmissionDisputed {
		metrics.RecordConsensus(string(result.Status))
	}
	record(ctx, s.audit, caller, "vote", ResourceSubmission, id, map[string]interface{}{
		"approved": approved,
		"status":   result.Status,
	})
	return result, nil
}

// Distribute 结算已达成共识的提交
func (s *verificationService) Distribute(ctx context.Context, caller, id string) (*ledger.Settlement, error) {
	settlement, err := s.system.Verification.DistributeVerificationRewards(ctx, caller, id)
	metrics.RecordOperation("distribute", outcome(err))
	if err != nil {
		return nil, err
	}

	if settlement.WorkerPayout != nil {
		metrics.RecordPayout("reward", settlement.WorkerPayout.Net)
		metrics.RecordPayout("fee", settlement.WorkerPayout.Fee)
	}
	for _, r := range settlement.Reviewers {
		metrics.RecordPayout("reviewer", r.Returned)
	}
	record(ctx, s.audit, caller, "distribute", ResourceSubmission, id, settlement)
	return settlement, nil
}

// Votes 查询提交的质押与投票
func (s *verificationService) Votes(ctx context.Context, id string) ([]*VoteView, error) {
	if _, err := s.system.Verification.GetSubmission(ctx, id); err != nil {
		return nil, err
	}
	votes, err := s.system.Verification.GetVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]*VoteView, 0, len(votes))
	for _, v := range votes {
		views = append(views, toVoteView(v))
	}
	return views, nil
}

// History 查询提交状态历史
func (s *verificationService) History(ctx context.Context, id string) ([]*StateHistory, error) {
	if _, err := s.system.Verification.GetSubmission(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.system.History(ctx, ledger.ResourceSubmission, id)
	if err != nil {
		return nil, err
	}
	return toStateHistory(records), nil
}
