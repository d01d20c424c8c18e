package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// taskRecorder 任务账本对审核结果的回调
type taskRecorder interface {
	TaskCreator(ctx context.Context, taskID string) (string, error)
	RecordVerified(ctx context.Context, caller, taskID string) error
	RecordRejected(ctx context.Context, caller, taskID, worker string, bounty money.Amount) error
}

// Verification 审核组件:质押、投票、共识、结算
type Verification struct {
	component
	submissions repository.SubmissionRepository
	votes       repository.VoteRepository
	pools       *pools
	transferer  FundsTransferer
	escrow      *Escrow
	antifraud   *AntiFraud
	reputation  *Reputation
	tasks       taskRecorder
}

// NewSubmission 开启提交的输入,赏金为创建时的快照
type NewSubmission struct {
	TaskID       string
	Worker       string
	Category     string
	ContentHash  string
	MetadataHash string
	Location     utils.Point
	Bounty       money.Amount
}

// VoteOutcome 投票后的计票结果
type VoteOutcome struct {
	SubmissionID string           `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Approvals    int              `json:"approvals"`
	Rejections   int              `json:"rejections"`
	TotalVotes   int              `json:"total_votes"`
	Finalized    bool             `json:"finalized"`
}

// Settlement 结算结果
type Settlement struct {
	SubmissionID string                `json:"submission_id"`
	Status       SubmissionStatus      `json:"status"`
	WorkerPayout *Payout               `json:"worker_payout,omitempty"`
	Reviewers    []*ReviewerSettlement `json:"reviewers"`
}

// ReviewerSettlement 单个审核人的结算
type ReviewerSettlement struct {
	Reviewer string       `json:"reviewer"`
	Stake    money.Amount `json:"stake"`
	Returned money.Amount `json:"returned"`
	Accurate bool         `json:"accurate"`
}

// CreateSubmission 开启待审核提交
func (v *Verification) CreateSubmission(ctx context.Context, caller string, in NewSubmission) (*model.SubmissionModel, error) {
	if err := v.authorize(ctx, caller, OpCreateSubmission); err != nil {
		return nil, err
	}

	now := v.clock.Now()
	sub := &model.SubmissionModel{
		ID:           uuid.New().String(),
		TaskID:       in.TaskID,
		Worker:       in.Worker,
		Category:     in.Category,
		ContentHash:  in.ContentHash,
		MetadataHash: in.MetadataHash,
		Latitude:     in.Location.Latitude,
		Longitude:    in.Location.Longitude,
		SubmittedAt:  now,
		Status:       string(SubmissionPending),
		BountyAmount: in.Bounty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := sub.Validate(); err != nil {
		return nil, ErrInvalidParams.With("reason", err.Error())
	}

	err := v.exec(ctx, []string{submissionKey(sub.ID)}, func(ctx context.Context) error {
		if err := v.submissions.Create(ctx, sub); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if err := v.journal.transition(ctx, ResourceSubmission, sub.ID, "", sub.Status, "submission opened", caller); err != nil {
			return err
		}
		return v.journal.emit(ctx, sub.ID, EventSubmissionCreated, map[string]interface{}{
			"submission_id": sub.ID,
			"task_id":       sub.TaskID,
			"worker":        sub.Worker,
			"bounty":        sub.BountyAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// StakeForVerification 审核人质押后获得投票资格
func (v *Verification) StakeForVerification(ctx context.Context, reviewer, submissionID string, stake money.Amount) (*model.VoteModel, error) {
	var vote *model.VoteModel
	err := v.exec(ctx, []string{submissionKey(submissionID)}, func(ctx context.Context) error {
		sub, err := v.submissions.FindByIDForUpdate(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound, submissionID)
		}

		status := SubmissionStatus(sub.Status)
		if status != SubmissionPending && status != SubmissionDisputed {
			return ErrSubmissionClosed.With("status", sub.Status)
		}

		existing, err := v.votes.Find(ctx, submissionID, reviewer)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to get vote: %w", err)
		}
		if existing != nil {
			if existing.HasVoted {
				return ErrAlreadyVoted.With("reviewer", reviewer)
			}
			return ErrAlreadyStaked.With("reviewer", reviewer)
		}

		if sub.StakedCount >= v.params.MaxReviewers {
			return ErrMaxReviewers.With("max_reviewers", v.params.MaxReviewers)
		}
		if reviewer == sub.Worker {
			return ErrSelfReview.With("reviewer", reviewer)
		}
		creator, err := v.tasks.TaskCreator(ctx, sub.TaskID)
		if err != nil {
			return err
		}
		if reviewer == creator {
			return ErrCreatorReview.With("reviewer", reviewer).With("task_id", sub.TaskID)
		}
		if stake < v.params.MinimumStake {
			return ErrStakeTooLow.
				With("required", v.params.MinimumStake.String()).
				With("available", stake.String())
		}

		now := v.clock.Now()
		vote = &model.VoteModel{
			ID:           uuid.New().String(),
			SubmissionID: submissionID,
			Reviewer:     reviewer,
			Stake:        stake,
			StakedAt:     now,
		}
		if err := v.votes.Create(ctx, vote); err != nil {
			return fmt.Errorf("failed to record stake: %w", err)
		}
		sub.StakedCount++
		sub.UpdatedAt = now
		if err := v.submissions.Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}
		if err := v.pools.credit(ctx, PoolReviewerStakes, PrincipalVerification, stake); err != nil {
			return err
		}
		return v.journal.emit(ctx, submissionID, EventSubmissionStaked, map[string]interface{}{
			"submission_id": submissionID,
			"reviewer":      reviewer,
			"stake":         stake.String(),
			"staked_count":  sub.StakedCount,
		})
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// SubmitVerification 记录投票并计算共识
func (v *Verification) SubmitVerification(ctx context.Context, reviewer, submissionID string, approved bool, feedback string) (*VoteOutcome, error) {
	keys, err := v.lockKeys(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	var outcome *VoteOutcome
	err = v.exec(ctx, keys, func(ctx context.Context) error {
		sub, err := v.submissions.FindByIDForUpdate(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound, submissionID)
		}

		vote, err := v.votes.Find(ctx, submissionID, reviewer)
		if err != nil {
			if isNotFound(err) {
				return ErrNotStaked.With("reviewer", reviewer)
			}
			return fmt.Errorf("failed to get vote: %w", err)
		}
		if vote.HasVoted {
			return ErrAlreadyVoted.With("reviewer", reviewer)
		}
		if SubmissionStatus(sub.Status) != SubmissionPending {
			return ErrSubmissionClosed.With("status", sub.Status)
		}

		now := v.clock.Now()
		vote.HasVoted = true
		vote.Approved = approved
		vote.Feedback = utils.SanitizeString(feedback)
		vote.VotedAt = timePtr(now)
		if err := v.votes.Save(ctx, vote); err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}

		if approved {
			sub.Approvals++
		} else {
			sub.Rejections++
		}
		sub.TotalVotes++
		sub.UpdatedAt = now
		if err := v.journal.emit(ctx, submissionID, EventSubmissionVoted, map[string]interface{}{
			"submission_id": submissionID,
			"reviewer":      reviewer,
			"approved":      approved,
		}); err != nil {
			return err
		}

		switch {
		case sub.Approvals >= v.params.ConsensusThreshold:
			err = v.finalize(ctx, sub, SubmissionVerified, "approval threshold reached", reviewer)
		case sub.Rejections >= v.params.ConsensusThreshold:
			err = v.finalize(ctx, sub, SubmissionRejected, "rejection threshold reached", reviewer)
		case sub.TotalVotes >= v.params.MaxReviewers:
			err = v.dispute(ctx, sub, reviewer)
		default:
			err = v.submissions.Save(ctx, sub)
		}
		if err != nil {
			return err
		}

		status := SubmissionStatus(sub.Status)
		outcome = &VoteOutcome{
			SubmissionID: sub.ID,
			Status:       status,
			Approvals:    sub.Approvals,
			Rejections:   sub.Rejections,
			TotalVotes:   sub.TotalVotes,
			Finalized:    status.Finalized(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// finalize 记录共识并通知信誉、任务账本和反作弊组件
func (v *Verification) finalize(ctx context.Context, sub *model.SubmissionModel, to SubmissionStatus, reason, operator string) error {
	from := SubmissionStatus(sub.Status)
	next, err := from.Transition(to)
	if err != nil {
		return err
	}

	now := v.clock.Now()
	sub.Status = string(next)
	sub.ConsensusAt = timePtr(now)
	sub.UpdatedAt = now
	if err := v.submissions.Save(ctx, sub); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	if err := v.journal.transition(ctx, ResourceSubmission, sub.ID, string(from), sub.Status, reason, operator); err != nil {
		return err
	}

	successful := next == SubmissionVerified
	if err := v.reputation.UpdateWorkerReputationWithCategory(ctx, PrincipalVerification, sub.Worker, sub.Category, successful); err != nil {
		return err
	}
	if successful {
		if err := v.tasks.RecordVerified(ctx, PrincipalVerification, sub.TaskID); err != nil {
			return err
		}
	} else {
		stake, err := v.antifraud.StakeOf(ctx, sub.Worker)
		if err != nil {
			return err
		}
		if stake > 0 {
			if _, err := v.antifraud.ForfeitStake(ctx, PrincipalVerification, sub.Worker, "submission rejected: "+sub.ID); err != nil {
				return err
			}
		}
		if err := v.tasks.RecordRejected(ctx, PrincipalVerification, sub.TaskID, sub.Worker, sub.BountyAmount); err != nil {
			return err
		}
	}

	v.log.WithFields(logrus.Fields{
		"submission_id": sub.ID,
		"task_id":       sub.TaskID,
		"status":        sub.Status,
		"approvals":     sub.Approvals,
		"rejections":    sub.Rejections,
	}).Info("Submission reached consensus")

	return v.journal.emit(ctx, sub.ID, EventSubmissionFinalized, map[string]interface{}{
		"submission_id": sub.ID,
		"task_id":       sub.TaskID,
		"worker":        sub.Worker,
		"status":        sub.Status,
		"consensus_at":  now,
	})
}

func (v *Verification) dispute(ctx context.Context, sub *model.SubmissionModel, operator string) error {
	from := SubmissionStatus(sub.Status)
	next, err := from.Transition(SubmissionDisputed)
	if err != nil {
		return err
	}
	sub.Status = string(next)
	if err := v.submissions.Save(ctx, sub); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	if err := v.journal.transition(ctx, ResourceSubmission, sub.ID, string(from), sub.Status, "no majority after max reviewers", operator); err != nil {
		return err
	}
	v.log.WithField("submission_id", sub.ID).Warn("Submission disputed")
	return v.journal.emit(ctx, sub.ID, EventSubmissionDisputed, map[string]interface{}{
		"submission_id": sub.ID,
		"approvals":     sub.Approvals,
		"rejections":    sub.Rejections,
	})
}

// ResolveDispute 所有者仲裁争议提交
func (v *Verification) ResolveDispute(ctx context.Context, caller, submissionID string, approved bool) (*VoteOutcome, error) {
	if err := v.requireOwner(caller); err != nil {
		return nil, err
	}
	keys, err := v.lockKeys(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	var outcome *VoteOutcome
	err = v.exec(ctx, keys, func(ctx context.Context) error {
		sub, err := v.submissions.FindByIDForUpdate(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound, submissionID)
		}
		if SubmissionStatus(sub.Status) != SubmissionDisputed {
			return ErrNotDisputed.With("status", sub.Status)
		}

		to := SubmissionRejected
		if approved {
			to = SubmissionVerified
		}
		if err := v.finalize(ctx, sub, to, "dispute resolved by owner", caller); err != nil {
			return err
		}
		outcome = &VoteOutcome{
			SubmissionID: sub.ID,
			Status:       to,
			Approvals:    sub.Approvals,
			Rejections:   sub.Rejections,
			TotalVotes:   sub.TotalVotes,
			Finalized:    true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// DistributeVerificationRewards 冷却期后结算:支付工人赏金,退还准确审核人的质押并发放奖励,
// 没收不准确审核人的质押。分发标记只写一次,重复调用返回 ErrAlreadyDistributed
func (v *Verification) DistributeVerificationRewards(ctx context.Context, caller, submissionID string) (*Settlement, error) {
	keys, err := v.lockKeys(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	var settlement *Settlement
	err = v.exec(ctx, keys, func(ctx context.Context) error {
		sub, err := v.submissions.FindByIDForUpdate(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound, submissionID)
		}

		status := SubmissionStatus(sub.Status)
		if !status.Finalized() || sub.ConsensusAt == nil {
			return ErrNotFinalized.With("status", sub.Status)
		}
		if sub.RewardsDistributed {
			return ErrAlreadyDistributed.With("submission_id", submissionID)
		}
		now := v.clock.Now()
		readyAt := sub.ConsensusAt.Add(v.params.CoolingOff)
		if now.Before(readyAt) {
			return ErrCoolingOff.With("remaining_seconds", int64(math.Ceil(readyAt.Sub(now).Seconds())))
		}

		sub.RewardsDistributed = true
		sub.DistributedAt = timePtr(now)
		sub.UpdatedAt = now
		if err := v.submissions.Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}

		settlement = &Settlement{SubmissionID: sub.ID, Status: status}
		verified := status == SubmissionVerified
		if verified {
			payout, err := v.escrow.DistributeReward(ctx, PrincipalVerification, sub.TaskID, sub.Worker, sub.BountyAmount)
			if err != nil {
				return err
			}
			settlement.WorkerPayout = payout
		}

		votes, err := v.votes.FindBySubmissionID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("failed to get votes: %w", err)
		}
		for _, vote := range votes {
			rs, err := v.settleReviewer(ctx, sub, vote, verified)
			if err != nil {
				return err
			}
			settlement.Reviewers = append(settlement.Reviewers, rs)
		}

		return v.journal.emit(ctx, sub.ID, EventRewardsDistributed, map[string]interface{}{
			"submission_id": sub.ID,
			"task_id":       sub.TaskID,
			"status":        sub.Status,
			"operator":      caller,
			"reviewers":     len(settlement.Reviewers),
		})
	})
	if err != nil {
		return nil, err
	}

	v.log.WithFields(logrus.Fields{
		"submission_id": submissionID,
		"status":        settlement.Status,
		"reviewers":     len(settlement.Reviewers),
	}).Info("Verification rewards distributed")
	return settlement, nil
}

// settleReviewer 准确的审核人取回质押并获得奖励,其他人的质押转入罚没池
func (v *Verification) settleReviewer(ctx context.Context, sub *model.SubmissionModel, vote *model.VoteModel, verified bool) (*ReviewerSettlement, error) {
	accurate := vote.HasVoted && vote.Approved == verified
	rs := &ReviewerSettlement{Reviewer: vote.Reviewer, Stake: vote.Stake, Accurate: accurate}

	if err := v.pools.debit(ctx, PoolReviewerStakes, PrincipalVerification, vote.Stake); err != nil {
		return nil, err
	}
	if accurate {
		if err := v.transferer.Transfer(ctx, Transfer{
			From:   PoolReviewerStakes,
			To:     vote.Reviewer,
			Amount: vote.Stake,
			Memo:   "stake_return:" + sub.ID,
		}); err != nil {
			return nil, fmt.Errorf("failed to return stake: %w", err)
		}
		bonus := vote.Stake.Fee(v.params.ReviewerBonusBps)
		if bonus > 0 {
			if err := v.transferer.Transfer(ctx, Transfer{
				From:   SourceTreasury,
				To:     vote.Reviewer,
				Amount: bonus,
				Memo:   "review_bonus:" + sub.ID,
			}); err != nil {
				return nil, fmt.Errorf("failed to pay review bonus: %w", err)
			}
		}
		rs.Returned = vote.Stake + bonus
	} else if err := v.pools.credit(ctx, PoolForfeitedReviewer, PrincipalVerification, vote.Stake); err != nil {
		return nil, err
	}

	if err := v.reputation.UpdateVerifierReputation(ctx, PrincipalVerification, vote.Reviewer, accurate); err != nil {
		return nil, err
	}

	vote.Settled = true
	vote.Accurate = accurate
	if err := v.votes.Save(ctx, vote); err != nil {
		return nil, fmt.Errorf("failed to save vote: %w", err)
	}
	return rs, nil
}

// lockKeys 提交及其任务的锁键,结算会修改任务托管余额
func (v *Verification) lockKeys(ctx context.Context, submissionID string) ([]string, error) {
	sub, err := v.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound, submissionID)
	}
	return []string{submissionKey(submissionID), taskKey(sub.TaskID)}, nil
}

// GetSubmission 查询提交
func (v *Verification) GetSubmission(ctx context.Context, submissionID string) (*model.SubmissionModel, error) {
	sub, err := v.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, notFound(err, ErrSubmissionNotFound, submissionID)
	}
	return sub, nil
}

// ListSubmissions 按条件查询提交
func (v *Verification) ListSubmissions(ctx context.Context, filter *repository.SubmissionFilter) ([]*model.SubmissionModel, error) {
	return v.submissions.FindByFilter(ctx, filter)
}

// GetVotes 查询提交的全部质押和投票
func (v *Verification) GetVotes(ctx context.Context, submissionID string) ([]*model.VoteModel, error) {
	if _, err := v.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	return v.votes.FindBySubmissionID(ctx, submissionID)
}
