package ledger

import (
	"fmt"
	"time"

	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/money"
)

// Params 协议参数
type Params struct {
	Owner                string
	MinimumBounty        money.Amount
	MinimumStake         money.Amount
	MaxConcurrentClaims  int
	ClaimWindow          time.Duration
	DailySubmissionLimit int
	PlatformFeeBps       int64
	RefundFeeBps         int64
	ReviewerBonusBps     int64
	ConsensusThreshold   int
	MaxReviewers         int
	CoolingOff           time.Duration
	MaxEvidenceAge       time.Duration

	DefaultScore     int
	MaxScore         int
	ScoreStep        int
	BadgeMinTasks    int
	BadgeRatePercent int
	PriorityScore    int
	BaseMultiplier   int
	BadgeMultiplier  int
}

// DefaultParams 默认协议参数
func DefaultParams() Params {
	return Params{
		Owner:                "platform-owner",
		MinimumBounty:        money.MustParse("0.5"),
		MinimumStake:         money.MustParse("0.01"),
		MaxConcurrentClaims:  3,
		ClaimWindow:          24 * time.Hour,
		DailySubmissionLimit: 20,
		PlatformFeeBps:       250,
		RefundFeeBps:         500,
		ReviewerBonusBps:     1000,
		ConsensusThreshold:   3,
		MaxReviewers:         7,
		CoolingOff:           5 * time.Minute,
		MaxEvidenceAge:       time.Hour,

		DefaultScore:     50,
		MaxScore:         100,
		ScoreStep:        5,
		BadgeMinTasks:    10,
		BadgeRatePercent: 90,
		PriorityScore:    80,
		BaseMultiplier:   100,
		BadgeMultiplier:  110,
	}
}

// ParamsFromConfig 从配置构建协议参数,未设置的字段保留默认值
func ParamsFromConfig(cfg config.LedgerConfig) (Params, error) {
	p := DefaultParams()

	if cfg.Owner != "" {
		p.Owner = cfg.Owner
	}
	if cfg.MinimumBounty != "" {
		amount, err := money.Parse(cfg.MinimumBounty)
		if err != nil {
			return p, fmt.Errorf("invalid ledger.minimum_bounty: %w", err)
		}
		p.MinimumBounty = amount
	}
	if cfg.MinimumStake != "" {
		amount, err := money.Parse(cfg.MinimumStake)
		if err != nil {
			return p, fmt.Errorf("invalid ledger.minimum_stake: %w", err)
		}
		p.MinimumStake = amount
	}
	if cfg.MaxConcurrentClaims > 0 {
		p.MaxConcurrentClaims = cfg.MaxConcurrentClaims
	}
	if cfg.ClaimWindowHours > 0 {
		p.ClaimWindow = time.Duration(cfg.ClaimWindowHours) * time.Hour
	}
	if cfg.DailySubmissionLimit > 0 {
		p.DailySubmissionLimit = cfg.DailySubmissionLimit
	}
	if cfg.PlatformFeeBps > 0 {
		p.PlatformFeeBps = cfg.PlatformFeeBps
	}
	if cfg.RefundFeeBps > 0 {
		p.RefundFeeBps = cfg.RefundFeeBps
	}
	if cfg.ReviewerBonusBps > 0 {
		p.ReviewerBonusBps = cfg.ReviewerBonusBps
	}
	if cfg.ConsensusThreshold > 0 {
		p.ConsensusThreshold = cfg.ConsensusThreshold
	}
	if cfg.MaxReviewers > 0 {
		p.MaxReviewers = cfg.MaxReviewers
	}
	if cfg.CoolingOffSeconds > 0 {
		p.CoolingOff = time.Duration(cfg.CoolingOffSeconds) * time.Second
	}
	if cfg.MaxEvidenceAgeMinute > 0 {
		p.MaxEvidenceAge = time.Duration(cfg.MaxEvidenceAgeMinute) * time.Minute
	}

	return p, p.Validate()
}

// Validate 校验参数之间的约束
func (p Params) Validate() error {
	if p.Owner == "" {
		return fmt.Errorf("ledger owner is required")
	}
	if p.ConsensusThreshold > p.MaxReviewers {
		return fmt.Errorf("consensus threshold %d exceeds max reviewers %d", p.ConsensusThreshold, p.MaxReviewers)
	}
	for name, bps := range map[string]int64{
		"platform_fee_bps":   p.PlatformFeeBps,
		"refund_fee_bps":     p.RefundFeeBps,
		"reviewer_bonus_bps": p.ReviewerBonusBps,
	} {
		if bps < 0 || bps > money.BasisPoints {
			return fmt.Errorf("%s must be within [0, %d]", name, money.BasisPoints)
		}
	}
	return nil
}
