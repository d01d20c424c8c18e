package ledger

import (
	"context"
	"fmt"

	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
)

// 资金池名称
const (
	PoolPlatformFees      = "escrow.platform_fees"
	PoolForfeitedStakes   = "antifraud.forfeited_stakes"
	PoolReviewerStakes    = "verification.reviewer_stakes"
	PoolForfeitedReviewer = "verification.forfeited_stakes"

	// 审核奖励由平台资金支付
	SourceTreasury = "platform:treasury"
)

func escrowAccount(taskID string) string {
	return "escrow:" + taskID
}

// pools 资金池记账
type pools struct {
	repo  repository.PoolRepository
	clock Clock
}

func (p *pools) credit(ctx context.Context, name, owner string, amount money.Amount) error {
	if amount == 0 {
		return nil
	}
	pool, err := p.repo.Ensure(ctx, name, owner, p.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to load pool %s: %w", name, err)
	}
	pool.Balance += amount
	pool.UpdatedAt = p.clock.Now()
	if err := p.repo.Save(ctx, pool); err != nil {
		return fmt.Errorf("failed to save pool %s: %w", name, err)
	}
	return nil
}

func (p *pools) debit(ctx context.Context, name, owner string, amount money.Amount) error {
	if amount == 0 {
		return nil
	}
	pool, err := p.repo.Ensure(ctx, name, owner, p.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to load pool %s: %w", name, err)
	}
	if pool.Balance < amount {
		return ErrInsufficientEscrow.
			With("pool", name).
			With("required", amount.String()).
			With("available", pool.Balance.String())
	}
	pool.Balance -= amount
	pool.UpdatedAt = p.clock.Now()
	if err := p.repo.Save(ctx, pool); err != nil {
		return fmt.Errorf("failed to save pool %s: %w", name, err)
	}
	return nil
}

// drain 清空资金池,返回清空前的余额
func (p *pools) drain(ctx context.Context, name, owner string) (money.Amount, error) {
	pool, err := p.repo.Ensure(ctx, name, owner, p.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to load pool %s: %w", name, err)
	}
	amount := pool.Balance
	pool.Balance = 0
	pool.UpdatedAt = p.clock.Now()
	if err := p.repo.Save(ctx, pool); err != nil {
		return 0, fmt.Errorf("failed to save pool %s: %w", name, err)
	}
	return amount, nil
}

func (p *pools) balance(ctx context.Context, name string) (money.Amount, error) {
	pool, err := p.repo.FindByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return pool.Balance, nil
}
