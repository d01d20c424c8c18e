package ledger

import (
	"context"
	"fmt"

	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// Escrow 托管组件:每个任务一份余额,出账扣费后转给收款人
type Escrow struct {
	component
	escrows    repository.EscrowRepository
	pools      *pools
	transferer FundsTransferer
}

// Payout 一次出账的拆分
type Payout struct {
	Gross money.Amount `json:"gross"`
	Fee   money.Amount `json:"fee"`
	Net   money.Amount `json:"net"`
}

// Deposit 存入任务托管余额
func (e *Escrow) Deposit(ctx context.Context, caller, taskID string, amount money.Amount) error {
	if err := e.authorize(ctx, caller, OpDeposit); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount.With("amount", amount.String())
	}

	return e.exec(ctx, []string{taskKey(taskID)}, func(ctx context.Context) error {
		escrow, err := e.escrows.Ensure(ctx, taskID, e.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to load escrow: %w", err)
		}
		escrow.Balance += amount
		escrow.Deposited += amount
		escrow.UpdatedAt = e.clock.Now()
		if err := e.escrows.Save(ctx, escrow); err != nil {
			return fmt.Errorf("failed to save escrow: %w", err)
		}
		e.log.WithFields(logrus.Fields{"task_id": taskID, "amount": amount.String()}).Debug("Escrow deposited")
		return nil
	})
}

// DistributeReward 向工人支付赏金,扣除平台费
func (e *Escrow) DistributeReward(ctx context.Context, caller, taskID, worker string, amount money.Amount) (*Payout, error) {
	if err := e.authorize(ctx, caller, OpDistributeReward); err != nil {
		return nil, err
	}
	return e.payout(ctx, taskID, worker, amount, e.params.PlatformFeeBps, "reward", func(escrow *model.EscrowModel, net money.Amount) {
		escrow.Distributed += net
	})
}

// RefundBounty 向发布者退款,扣除退款手续费
func (e *Escrow) RefundBounty(ctx context.Context, caller, taskID, requester string, amount money.Amount) (*Payout, error) {
	if err := e.authorize(ctx, caller, OpRefundBounty); err != nil {
		return nil, err
	}
	return e.payout(ctx, taskID, requester, amount, e.params.RefundFeeBps, "refund", func(escrow *model.EscrowModel, net money.Amount) {
		escrow.Refunded += net
	})
}

// payout 扣减余额、累计平台费并转账,转账失败时整个事务回滚
func (e *Escrow) payout(
	ctx context.Context,
	taskID, recipient string,
	amount money.Amount,
	feeBps int64,
	memo string,
	book func(escrow *model.EscrowModel, net money.Amount),
) (*Payout, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount.With("amount", amount.String())
	}

	var result *Payout
	err := e.exec(ctx, []string{taskKey(taskID)}, func(ctx context.Context) error {
		escrow, err := e.escrows.FindByTaskIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrEscrowNotFound, taskID)
		}
		if escrow.Balance < amount {
			return ErrInsufficientEscrow.
				With("task_id", taskID).
				With("required", amount.String()).
				With("available", escrow.Balance.String())
		}

		fee, net := amount.Split(feeBps)
		escrow.Balance -= amount
		escrow.Fees += fee
		book(escrow, net)
		escrow.UpdatedAt = e.clock.Now()
		if err := e.escrows.Save(ctx, escrow); err != nil {
			return fmt.Errorf("failed to save escrow: %w", err)
		}
		if err := e.pools.credit(ctx, PoolPlatformFees, PrincipalEscrow, fee); err != nil {
			return err
		}
		if net > 0 {
			if err := e.transferer.Transfer(ctx, Transfer{
				From:   escrowAccount(taskID),
				To:     recipient,
				Amount: net,
				Memo:   memo + ":" + taskID,
			}); err != nil {
				return fmt.Errorf("failed to transfer %s: %w", memo, err)
			}
		}

		result = &Payout{Gross: amount, Fee: fee, Net: net}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"task_id":   taskID,
		"recipient": recipient,
		"kind":      memo,
		"gross":     result.Gross.String(),
		"fee":       result.Fee.String(),
	}).Info("Escrow payout")
	return result, nil
}

// WithdrawPlatformFees 所有者提取累计平台费
func (e *Escrow) WithdrawPlatformFees(ctx context.Context, caller string) (money.Amount, error) {
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}

	var withdrawn money.Amount
	err := e.exec(ctx, []string{"pool:" + PoolPlatformFees}, func(ctx context.Context) error {
		amount, err := e.pools.drain(ctx, PoolPlatformFees, PrincipalEscrow)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrNoFees
		}
		if err := e.transferer.Transfer(ctx, Transfer{
			From:   PoolPlatformFees,
			To:     e.params.Owner,
			Amount: amount,
			Memo:   "fee_withdrawal",
		}); err != nil {
			return fmt.Errorf("failed to transfer platform fees: %w", err)
		}
		withdrawn = amount
		return nil
	})
	return withdrawn, err
}

// GetBalance 任务托管余额
func (e *Escrow) GetBalance(ctx context.Context, taskID string) (money.Amount, error) {
	escrow, err := e.GetEscrow(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return escrow.Balance, nil
}

// GetEscrow 任务托管记录
func (e *Escrow) GetEscrow(ctx context.Context, taskID string) (*model.EscrowModel, error) {
	escrow, err := e.escrows.FindByTaskID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrEscrowNotFound, taskID)
	}
	return escrow, nil
}

// PlatformFees 当前累计平台费
func (e *Escrow) PlatformFees(ctx context.Context) (money.Amount, error) {
	return e.pools.balance(ctx, PoolPlatformFees)
}
