package ledger_test

import (
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEscrow_RejectsUnauthorizedCallers 测试资金操作只接受已授权组件
func TestEscrow_RejectsUnauthorizedCallers(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	esc := h.sys.Escrow

	_, err := esc.DistributeReward(h.ctx, "mallory", task.ID, "mallory", amt("1.0"))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.Equal(t, ledger.KindAuthorization, ledger.KindOf(err))

	_, err = esc.RefundBounty(h.ctx, "component:unknown", task.ID, "mallory", amt("1.0"))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	// 审核组件无退款授权
	_, err = esc.RefundBounty(h.ctx, ledger.PrincipalVerification, task.ID, "mallory", amt("1.0"))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	err = esc.Deposit(h.ctx, "requester", task.ID, amt("5.0"))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	balance, err := esc.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)
	assert.Zero(t, h.account("mallory"))
}

// TestEscrow_RevokedGrant 测试撤销授权后组件调用被拒绝且整体回滚
func TestEscrow_RevokedGrant(t *testing.T) {
	h := newHarness(t)

	err := h.sys.Revoke(h.ctx, "mallory", ledger.PrincipalTaskLedger, ledger.OpDeposit)
	assert.ErrorIs(t, err, ledger.ErrNotOwner)

	require.NoError(t, h.sys.Revoke(h.ctx, h.owner, ledger.PrincipalTaskLedger, ledger.OpDeposit))

	_, err = h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Description:  "Count the parking spots",
		Category:     string(ledger.CategorySurvey),
		MaxWorkers:   1,
		Location:     center,
		RadiusMeters: 100,
		Deadline:     h.clock.Now().Add(time.Hour),
	}, amt("1.0"))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	tasks, _, err := h.sys.Tasks.ListTasks(h.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, h.sys.Grant(h.ctx, h.owner, ledger.PrincipalTaskLedger, ledger.OpDeposit))
	h.createTask("1.0", 1)

	err = h.sys.Grant(h.ctx, h.owner, ledger.PrincipalTaskLedger, "escrow.steal")
	assert.ErrorIs(t, err, ledger.ErrInvalidParams)

	grants, err := h.sys.Grants(h.ctx)
	require.NoError(t, err)
	assert.Len(t, grants, 12)
}

func TestEscrow_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	_, err := h.sys.Escrow.RefundBounty(h.ctx, ledger.PrincipalTaskLedger, task.ID, "requester", amt("1.5"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientEscrow)
	assert.Equal(t, ledger.KindInsufficientFunds, ledger.KindOf(err))

	payout, err := h.sys.Escrow.RefundBounty(h.ctx, ledger.PrincipalTaskLedger, task.ID, "requester", amt("1.0"))
	require.NoError(t, err)
	assert.Equal(t, amt("0.05"), payout.Fee)
	assert.Equal(t, amt("0.95"), payout.Net)
	assert.Equal(t, amt("0.95"), h.account("requester"))

	_, err = h.sys.Escrow.GetBalance(h.ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrEscrowNotFound)
}

// TestEscrow_WithdrawPlatformFees 测试所有者提取平台费
func TestEscrow_WithdrawPlatformFees(t *testing.T) {
	h := newHarness(t)
	esc := h.sys.Escrow

	_, err := esc.WithdrawPlatformFees(h.ctx, "mallory")
	assert.ErrorIs(t, err, ledger.ErrNotOwner)

	_, err = esc.WithdrawPlatformFees(h.ctx, h.owner)
	assert.ErrorIs(t, err, ledger.ErrNoFees)

	task := h.createTask("2.0", 1)
	_, err = esc.DistributeReward(h.ctx, ledger.PrincipalVerification, task.ID, "worker", amt("2.0"))
	require.NoError(t, err)

	withdrawn, err := esc.WithdrawPlatformFees(h.ctx, h.owner)
	require.NoError(t, err)
	assert.Equal(t, amt("0.05"), withdrawn)
	assert.Equal(t, amt("0.05"), h.account(h.owner))

	fees, err := esc.PlatformFees(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, fees)
}
