package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
)

// Transfer 一次出账,From 为资金来源(托管账户或资金池),To 为收款身份
type Transfer struct {
	From   string
	To     string
	Amount money.Amount
	Memo   string
}

// FundsTransferer 出账接口。在账本事务内调用,返回错误时整个操作回滚
type FundsTransferer interface {
	Transfer(ctx context.Context, t Transfer) error
}

// accountTransferer 记入内部账户并留存流水
type accountTransferer struct {
	accounts repository.AccountRepository
	clock    Clock
}

// NewAccountTransferer 创建基于内部账户的出账实现
func NewAccountTransferer(accounts repository.AccountRepository, clock Clock) FundsTransferer {
	return &accountTransferer{accounts: accounts, clock: clock}
}

func (t *accountTransferer) Transfer(ctx context.Context, tr Transfer) error {
	if tr.Amount <= 0 {
		return ErrInvalidAmount.With("amount", tr.Amount.String())
	}
	now := t.clock.Now()
	if err := t.accounts.Credit(ctx, tr.To, tr.Amount, now); err != nil {
		return fmt.Errorf("failed to credit %s: %w", tr.To, err)
	}
	record := &model.TransferModel{
		ID:          uuid.New().String(),
		Source:      tr.From,
		Destination: tr.To,
		Amount:      tr.Amount,
		Memo:        tr.Memo,
		CreatedAt:   now,
	}
	if err := t.accounts.CreateTransfer(ctx, record); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// TransfererFunc 函数形式的出账实现
type TransfererFunc func(ctx context.Context, t Transfer) error

func (f TransfererFunc) Transfer(ctx context.Context, t Transfer) error {
	return f(ctx, t)
}
