package service

import (
	"time"

	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
)

// TaskView 任务视图
type TaskView struct {
	ID               string       `json:"id"`
	Creator          string       `json:"creator"`
	Description      string       `json:"description"`
	Category         string       `json:"category"`
	Bounty           money.Amount `json:"bounty"`
	Funded           money.Amount `json:"funded"`
	MaxWorkers       int          `json:"max_workers"`
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	RadiusMeters     float64      `json:"radius_meters"`
	Deadline         time.Time    `json:"deadline"`
	Status           string       `json:"status"`
	PhotoCount       int          `json:"photo_count"`
	LocationRequired bool         `json:"location_required"`
	MinReputation    int          `json:"min_reputation"`
	RequiredBadge    string       `json:"required_badge,omitempty"`
	ClaimedCount     int          `json:"claimed_count"`
	SubmissionCount  int          `json:"submission_count"`
	VerifiedCount    int          `json:"verified_count"`
	CreatedAt        time.Time    `json:"created_at"`
}

func toTaskView(t *model.TaskModel) *TaskView {
	return &TaskView{
		ID:               t.ID,
		Creator:          t.Creator,
		Description:      t.Description,
		Category:         t.Category,
		Bounty:           t.BountyAmount,
		Funded:           t.FundedAmount,
		MaxWorkers:       t.MaxWorkers,
		Latitude:         t.Latitude,
		Longitude:        t.Longitude,
		RadiusMeters:     t.RadiusMeters,
		Deadline:         t.Deadline,
		Status:           t.Status,
		PhotoCount:       t.PhotoCount,
		LocationRequired: t.LocationRequired,
		MinReputation:    t.MinReputation,
		RequiredBadge:    t.RequiredBadge,
		ClaimedCount:     t.ClaimedCount,
		SubmissionCount:  t.SubmissionCount,
		VerifiedCount:    t.VerifiedCount,
		CreatedAt:        t.CreatedAt,
	}
}

// ClaimView 认领视图
type ClaimView struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Worker    string    `json:"worker"`
	ClaimedAt time.Time `json:"claimed_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Completed bool      `json:"completed"`
	Released  bool      `json:"released"`
}

func toClaimView(c *model.ClaimModel, window time.Duration) *ClaimView {
	return &ClaimView{
		ID:        c.ID,
		TaskID:    c.TaskID,
		Worker:    c.Worker,
		ClaimedAt: c.ClaimedAt,
		ExpiresAt: c.ClaimedAt.Add(window),
		Completed: c.Completed,
		Released:  c.Released,
	}
}

// SubmissionView 提交视图
type SubmissionView struct {
	ID                 string       `json:"id"`
	TaskID             string       `json:"task_id"`
	Worker             string       `json:"worker"`
	Category           string       `json:"category"`
	ContentHash        string       `json:"content_hash"`
	Latitude           float64      `json:"latitude"`
	Longitude          float64      `json:"longitude"`
	Status             string       `json:"status"`
	Approvals          int          `json:"approvals"`
	Rejections         int          `json:"rejections"`
	TotalVotes         int          `json:"total_votes"`
	StakedCount        int          `json:"staked_count"`
	Bounty             money.Amount `json:"bounty"`
	RewardsDistributed bool         `json:"rewards_distributed"`
	SubmittedAt        time.Time    `json:"submitted_at"`
	ConsensusAt        *time.Time   `json:"consensus_at,omitempty"`
	DistributedAt      *time.Time   `json:"distributed_at,omitempty"`
}

func toSubmissionView(s *model.SubmissionModel) *SubmissionView {
	return &SubmissionView{
		ID:                 s.ID,
		TaskID:             s.TaskID,
		Worker:             s.Worker,
		Category:           s.Category,
		ContentHash:        s.ContentHash,
		Latitude:           s.Latitude,
		Longitude:          s.Longitude,
		Status:             s.Status,
		Approvals:          s.Approvals,
		Rejections:         s.Rejections,
		TotalVotes:         s.TotalVotes,
		StakedCount:        s.StakedCount,
		Bounty:             s.BountyAmount,
		RewardsDistributed: s.RewardsDistributed,
		SubmittedAt:        s.SubmittedAt,
		ConsensusAt:        s.ConsensusAt,
		DistributedAt:      s.DistributedAt,
	}
}

// VoteView 质押与投票视图
type VoteView struct {
	Reviewer string       `json:"reviewer"`
	Stake    money.Amount `json:"stake"`
	HasVoted bool         `json:"has_voted"`
	Approved *bool        `json:"approved,omitempty"`
	Feedback string       `json:"feedback,omitempty"`
	StakedAt time.Time    `json:"staked_at"`
	VotedAt  *time.Time   `json:"voted_at,omitempty"`
	Settled  bool         `json:"settled"`
	Accurate bool         `json:"accurate"`
}

func toVoteView(v *model.VoteModel) *VoteView {
	view := &VoteView{
		Reviewer: v.Reviewer,
		Stake:    v.Stake,
		HasVoted: v.HasVoted,
		Feedback: v.Feedback,
		StakedAt: v.StakedAt,
		VotedAt:  v.VotedAt,
		Settled:  v.Settled,
		Accurate: v.Accurate,
	}
	if v.HasVoted {
		approved := v.Approved
		view.Approved = &approved
	}
	return view
}

// EscrowView 托管视图
type EscrowView struct {
	TaskID      string       `json:"task_id"`
	Balance     money.Amount `json:"balance"`
	Deposited   money.Amount `json:"deposited"`
	Distributed money.Amount `json:"distributed"`
	Refunded    money.Amount `json:"refunded"`
	Fees        money.Amount `json:"fees"`
}

func toEscrowView(e *model.EscrowModel) *EscrowView {
	return &EscrowView{
		TaskID:      e.TaskID,
		Balance:     e.Balance,
		Deposited:   e.Deposited,
		Distributed: e.Distributed,
		Refunded:    e.Refunded,
		Fees:        e.Fees,
	}
}

// StateHistory 状态历史
type StateHistory struct {
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Reason    string    `json:"reason"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
}

func toStateHistory(records []*model.StateHistoryModel) []*StateHistory {
	out := make([]*StateHistory, 0, len(records))
	for _, r := range records {
		out = append(out, &StateHistory{
			FromState: r.FromState,
			ToState:   r.ToState,
			Reason:    r.Reason,
			Operator:  r.Operator,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

// TransferView 划转流水视图
type TransferView struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Amount      money.Amount `json:"amount"`
	Memo        string       `json:"memo"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AccountView 账户视图
type AccountView struct {
	Identity  string          `json:"identity"`
	Balance   money.Amount    `json:"balance"`
	Stake     money.Amount    `json:"stake"`
	Transfers []*TransferView `json:"transfers"`
}
