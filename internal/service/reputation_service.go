package service

import (
	"context"
	"errors"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/repository"
	"gorm.io/gorm"
)

// ReputationProfile 信誉概览
type ReputationProfile struct {
	*ledger.ReputationData
	SuccessRate          int                     `json:"success_rate"`
	VerificationAccuracy int                     `json:"verification_accuracy"`
	Categories           []*ledger.CategoryStats `json:"categories"`
}

// CategoryReputation 类别信誉
type CategoryReputation struct {
	*ledger.CategoryStats
	Multiplier int `json:"multiplier"`
}

// ReputationService 信誉与账户查询服务
type ReputationService interface {
	Profile(ctx context.Context, identity string) (*ReputationProfile, error)
	Category(ctx context.Context, identity, category string) (*CategoryReputation, error)
	Leaderboard(ctx context.Context, limit int) ([]*ledger.ReputationData, error)
	Account(ctx context.Context, identity string, limit int) (*AccountView, error)
}

type reputationService struct {
	system   *ledger.System
	accounts repository.AccountRepository
}

// NewReputationService 创建信誉服务
func NewReputationService(system *ledger.System, accounts repository.AccountRepository) ReputationService {
	return &reputationService{system: system, accounts: accounts}
}

// Profile 查询信誉概览
func (s *reputationService) Profile(ctx context.Context, identity string) (*ReputationProfile, error) {
	rep := s.system.Reputation
	data, err := rep.GetReputationData(ctx, identity)
	if err != nil {
		return nil, err
	}
	rate, err := rep.GetSuccessRate(ctx, identity)
	if err != nil {
		return nil, err
	}
	accuracy, err := rep.GetVerificationAccuracy(ctx, identity)
	if err != nil {
		return nil, err
	}
	categories, err := rep.ListCategoryStats(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &ReputationProfile{
		ReputationData:       data,
		SuccessRate:          rate,
		VerificationAccuracy: accuracy,
		Categories:           categories,
	}, nil
}

// Category 查询类别统计与奖励倍数
func (s *reputationService) Category(ctx context.Context, identity, category string) (*CategoryReputation, error) {
	if _, err := ledger.ParseCategory(category); err != nil {
		return nil, err
	}
	stats, err := s.system.Reputation.GetCategoryStats(ctx, identity, category)
	if err != nil {
		return nil, err
	}
	multiplier, err := s.system.Reputation.GetReputationMultiplier(ctx, identity, category)
	if err != nil {
		return nil, err
	}
	return &CategoryReputation{CategoryStats: stats, Multiplier: multiplier}, nil
}

// Leaderboard 信誉排行
func (s *reputationService) Leaderboard(ctx context.Context, limit int) ([]*ledger.ReputationData, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.system.Reputation.Leaderboard(ctx, limit)
}

// Account 查询账户余额、工作者保证金和划转流水
func (s *reputationService) Account(ctx context.Context, identity string, limit int) (*AccountView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	view := &AccountView{Identity: identity, Transfers: []*TransferView{}}
	account, err := s.accounts.FindByIdentity(ctx, identity)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if account != nil {
		view.Balance = account.Balance
	}

	stake, err := s.system.AntiFraud.StakeOf(ctx, identity)
	if err != nil {
		return nil, err
	}
	view.Stake = stake

	transfers, err := s.accounts.FindTransfers(ctx, identity, limit)
	if err != nil {
		return nil, err
	}
	for _, t := range transfers {
		view.Transfers = append(view.Transfers, &TransferView{
			ID:          t.ID,
			Source:      t.Source,
			Destination: t.Destination,
			Amount:      t.Amount,
			Memo:        t.Memo,
			CreatedAt:   t.CreatedAt,
		})
	}
	return view, nil
}
