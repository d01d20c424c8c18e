package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenario_ApproveAndDistribute 完整流程:三票通过,冷却期后支付 0.975,审核人各得 0.11
func TestScenario_ApproveAndDistribute(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	balance, err := h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)

	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")

	rs := reviewers(3)
	assert.False(t, h.vote(subID, rs[0], true).Finalized)
	assert.False(t, h.vote(subID, rs[1], true).Finalized)
	outcome := h.vote(subID, rs[2], true)
	assert.True(t, outcome.Finalized)
	assert.Equal(t, ledger.SubmissionVerified, outcome.Status)
	assert.Equal(t, 3, outcome.Approvals)

	sub, err := h.sys.Verification.GetSubmission(h.ctx, subID)
	require.NoError(t, err)
	require.NotNil(t, sub.ConsensusAt)
	assert.True(t, sub.ConsensusAt.Equal(epoch))

	// 通过后信誉立即更新
	assert.Equal(t, 55, h.score("worker"))

	_, err = h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	assert.ErrorIs(t, err, ledger.ErrCoolingOff)
	e, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, int64(300), e.Details["remaining_seconds"])

	h.clock.Advance(5 * time.Minute)
	settlement, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)
	require.NotNil(t, settlement.WorkerPayout)
	assert.Equal(t, amt("0.025"), settlement.WorkerPayout.Fee)
	assert.Len(t, settlement.Reviewers, 3)

	assert.Equal(t, amt("0.975"), h.account("worker"))
	for _, r := range rs {
		assert.Equal(t, amt("0.11"), h.account(r), r)
		assert.Equal(t, 55, h.score(r))
	}

	fees, err := h.sys.Escrow.PlatformFees(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, amt("0.025"), fees)

	balance, err = h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	got, err := h.sys.Tasks.GetTask(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.TaskCompleted), got.Status)
	assert.Equal(t, 1, got.VerifiedCount)
}

// TestDistribute_Idempotent 测试重复分发不产生第二次资金变动
func TestDistribute_Idempotent(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")
	for _, r := range reviewers(3) {
		h.vote(subID, r, true)
	}
	h.clock.Advance(10 * time.Minute)

	_, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)

	_, err = h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyDistributed)

	assert.Equal(t, amt("0.975"), h.account("worker"))
	assert.Equal(t, amt("0.11"), h.account("reviewer-1"))
	assert.Equal(t, 55, h.score("reviewer-1"))
}

// TestDistribute_NotFinalized 测试未达成共识时不能分发
func TestDistribute_NotFinalized(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")
	h.vote(subID, "reviewer-1", true)

	_, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	assert.ErrorIs(t, err, ledger.ErrNotFinalized)

	_, err = h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", "missing")
	assert.ErrorIs(t, err, ledger.ErrSubmissionNotFound)
	assert.Equal(t, ledger.KindNotFound, ledger.KindOf(err))
}

// TestDistribute_TransferFailureRollsBack 测试转账失败时整个分发回滚
func TestDistribute_TransferFailureRollsBack(t *testing.T) {
	failing := true
	h := newHarness(t, func(o *ledger.Options) {
		inner := ledger.NewAccountTransferer(repository.NewAccountRepository(o.DB), o.Clock)
		o.Transferer = ledger.TransfererFunc(func(ctx context.Context, tr ledger.Transfer) error {
			if failing && tr.To == "worker" {
				return errors.New("payment rail unavailable")
			}
			return inner.Transfer(ctx, tr)
		})
	})
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")
	for _, r := range reviewers(3) {
		h.vote(subID, r, true)
	}
	h.clock.Advance(5 * time.Minute)

	_, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.Error(t, err)

	sub, err := h.sys.Verification.GetSubmission(h.ctx, subID)
	require.NoError(t, err)
	assert.False(t, sub.RewardsDistributed)

	balance, err := h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)

	fees, err := h.sys.Escrow.PlatformFees(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, fees)
	assert.Zero(t, h.account("reviewer-1"))

	// 重试成功
	failing = false
	_, err = h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)
	assert.Equal(t, amt("0.975"), h.account("worker"))
}

// TestSubmitVerification_Rejected 测试三票拒绝:工人扣分、保证金没收、审核人结算
func TestSubmitVerification_Rejected(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	stake, err := h.sys.AntiFraud.DepositStake(h.ctx, "worker", "worker", amt("0.5"))
	require.NoError(t, err)
	assert.Equal(t, amt("0.5"), stake)

	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")
	h.vote(subID, "reviewer-1", true)
	h.vote(subID, "reviewer-2", false)
	h.vote(subID, "reviewer-3", false)
	outcome := h.vote(subID, "reviewer-4", false)
	assert.Equal(t, ledger.SubmissionRejected, outcome.Status)
	assert.Equal(t, 1, outcome.Approvals)
	assert.Equal(t, 3, outcome.Rejections)

	assert.Equal(t, 45, h.score("worker"))
	stake, err = h.sys.AntiFraud.StakeOf(h.ctx, "worker")
	require.NoError(t, err)
	assert.Zero(t, stake)

	// 共识后不再接受投票
	_, err = h.sys.Verification.StakeForVerification(h.ctx, "reviewer-5", subID, amt("0.1"))
	assert.ErrorIs(t, err, ledger.ErrSubmissionClosed)

	h.clock.Advance(5 * time.Minute)
	settlement, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)
	assert.Nil(t, settlement.WorkerPayout)

	assert.Zero(t, h.account("worker"))
	assert.Zero(t, h.account("reviewer-1"))
	assert.Equal(t, 45, h.score("reviewer-1"))
	for _, r := range []string{"reviewer-2", "reviewer-3", "reviewer-4"} {
		assert.Equal(t, amt("0.11"), h.account(r))
		assert.Equal(t, 55, h.score(r))
	}
}

// TestSubmitVerification_Disputed 测试七票无多数时进入争议,由所有者仲裁
func TestSubmitVerification_Disputed(t *testing.T) {
	h := newHarness(t, withParams(func(p *ledger.Params) { p.ConsensusThreshold = 5 }))
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")

	rs := reviewers(7)
	var outcome *ledger.VoteOutcome
	for i, r := range rs {
		outcome = h.vote(subID, r, i%2 == 0)
		if i < 6 {
			assert.Equal(t, ledger.SubmissionPending, outcome.Status)
		}
	}
	assert.Equal(t, ledger.SubmissionDisputed, outcome.Status)
	assert.Equal(t, 4, outcome.Approvals)
	assert.Equal(t, 3, outcome.Rejections)
	assert.False(t, outcome.Finalized)

	_, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	assert.ErrorIs(t, err, ledger.ErrNotFinalized)

	_, err = h.sys.Verification.ResolveDispute(h.ctx, "mallory", subID, true)
	assert.ErrorIs(t, err, ledger.ErrNotOwner)

	resolved, err := h.sys.Verification.ResolveDispute(h.ctx, h.owner, subID, true)
	require.NoError(t, err)
	assert.Equal(t, ledger.SubmissionVerified, resolved.Status)

	_, err = h.sys.Verification.ResolveDispute(h.ctx, h.owner, subID, true)
	assert.ErrorIs(t, err, ledger.ErrNotDisputed)

	h.clock.Advance(5 * time.Minute)
	settlement, err := h.sys.Verification.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)
	accurate := 0
	for _, r := range settlement.Reviewers {
		if r.Accurate {
			accurate++
		}
	}
	assert.Equal(t, 4, accurate)
}

// TestVoteBounds 测试投票约束:最多七人、不可自审、不可重复、必须先质押
func TestVoteBounds(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")
	v := h.sys.Verification

	_, err := v.StakeForVerification(h.ctx, "worker", subID, amt("0.1"))
	assert.ErrorIs(t, err, ledger.ErrSelfReview)
	assert.Equal(t, ledger.KindAuthorization, ledger.KindOf(err))

	_, err = v.StakeForVerification(h.ctx, "reviewer-1", subID, amt("0.005"))
	assert.ErrorIs(t, err, ledger.ErrStakeTooLow)
	assert.Equal(t, ledger.KindInsufficientFunds, ledger.KindOf(err))

	_, err = v.SubmitVerification(h.ctx, "reviewer-1", subID, true, "")
	assert.ErrorIs(t, err, ledger.ErrNotStaked)

	for _, r := range reviewers(7) {
		_, err := v.StakeForVerification(h.ctx, r, subID, amt("0.1"))
		require.NoError(t, err)
	}
	_, err = v.StakeForVerification(h.ctx, "reviewer-1", subID, amt("0.1"))
	assert.ErrorIs(t, err, ledger.ErrAlreadyStaked)
	_, err = v.StakeForVerification(h.ctx, "reviewer-8", subID, amt("0.1"))
	assert.ErrorIs(t, err, ledger.ErrMaxReviewers)

	_, err = v.SubmitVerification(h.ctx, "reviewer-1", subID, true, "looks right")
	require.NoError(t, err)
	_, err = v.SubmitVerification(h.ctx, "reviewer-1", subID, false, "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyVoted)

	for _, r := range []string{"reviewer-2", "reviewer-3"} {
		_, err := v.SubmitVerification(h.ctx, r, subID, true, "")
		require.NoError(t, err)
	}
	// 共识后剩余质押人不能再投票
	_, err = v.SubmitVerification(h.ctx, "reviewer-4", subID, false, "")
	assert.ErrorIs(t, err, ledger.ErrSubmissionClosed)

	sub, err := v.GetSubmission(h.ctx, subID)
	require.NoError(t, err)
	assert.LessOrEqual(t, sub.Approvals+sub.Rejections, 7)
	assert.Equal(t, string(ledger.SubmissionVerified), sub.Status)

	// 未投票的质押人视为不准确
	h.clock.Advance(5 * time.Minute)
	_, err = v.DistributeVerificationRewards(h.ctx, "anyone", subID)
	require.NoError(t, err)
	assert.Zero(t, h.account("reviewer-4"))
	assert.Equal(t, 45, h.score("reviewer-4"))

	votes, err := v.GetVotes(h.ctx, subID)
	require.NoError(t, err)
	assert.Len(t, votes, 7)
	for _, vote := range votes {
		assert.True(t, vote.Settled)
	}
}

// TestStakeForVerification_CreatorExcluded 测试任务发布者不能审核自己任务的提交
func TestStakeForVerification_CreatorExcluded(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	subID := h.claimAndSubmit(task.ID, "worker", "photo0001")

	_, err := h.sys.Verification.StakeForVerification(h.ctx, "requester", subID, amt("0.1"))
	assert.ErrorIs(t, err, ledger.ErrCreatorReview)
	assert.Equal(t, ledger.KindAuthorization, ledger.KindOf(err))

	sub, err := h.sys.Verification.GetSubmission(h.ctx, subID)
	require.NoError(t, err)
	assert.Zero(t, sub.StakedCount)
	votes, err := h.sys.Verification.GetVotes(h.ctx, subID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	// 其他任务的发布者不受限制
	h.vote(subID, "reviewer-1", true)
}
