package ledger_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/model"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	epoch  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	center = utils.Point{Latitude: 40.7128, Longitude: -74.0060}
)

type harness struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	clock *ledger.FakeClock
	sys   *ledger.System
	owner string
}

func newHarness(t *testing.T, opts ...func(*ledger.Options)) *harness {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := ledger.NewFakeClock(epoch)
	o := ledger.Options{
		DB:     db,
		Params: ledger.DefaultParams(),
		Clock:  clock,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	sys, err := ledger.NewSystem(o)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = sys.ApplyPolicy(ctx, o.Params.Owner, ledger.DefaultPolicy())
	require.NoError(t, err)

	return &harness{t: t, ctx: ctx, db: db, clock: clock, sys: sys, owner: o.Params.Owner}
}

func withParams(fn func(p *ledger.Params)) func(*ledger.Options) {
	return func(o *ledger.Options) { fn(&o.Params) }
}

func amt(s string) money.Amount {
	return money.MustParse(s)
}

func (h *harness) createTask(funds string, maxWorkers int) *model.TaskModel {
	h.t.Helper()
	task, err := h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Description:  "Check the storefront opening hours",
		Category:     string(ledger.CategoryBusinessHours),
		MaxWorkers:   maxWorkers,
		Location:     center,
		RadiusMeters: 500,
		Deadline:     h.clock.Now().Add(48 * time.Hour),
		Requirements: ledger.Requirements{PhotoCount: 1, LocationRequired: true},
	}, amt(funds))
	require.NoError(h.t, err)
	return task
}

func evidence(hash string) ledger.Evidence {
	return ledger.Evidence{
		ContentHash:  hash,
		MetadataHash: "meta" + hash,
		Location:     utils.Point{Latitude: 40.7130, Longitude: -74.0062},
	}
}

// claimAndSubmit 认领并提交,返回提交 ID
func (h *harness) claimAndSubmit(taskID, worker, hash string) string {
	h.t.Helper()
	_, err := h.sys.Tasks.ClaimTask(h.ctx, worker, taskID)
	require.NoError(h.t, err)
	sub, err := h.sys.Tasks.SubmitCompletion(h.ctx, worker, taskID, evidence(hash))
	require.NoError(h.t, err)
	return sub.ID
}

// vote 审核人质押 0.1 后投票
func (h *harness) vote(submissionID, reviewer string, approved bool) *ledger.VoteOutcome {
	h.t.Helper()
	_, err := h.sys.Verification.StakeForVerification(h.ctx, reviewer, submissionID, amt("0.1"))
	require.NoError(h.t, err)
	outcome, err := h.sys.Verification.SubmitVerification(h.ctx, reviewer, submissionID, approved, "")
	require.NoError(h.t, err)
	return outcome
}

func (h *harness) account(identity string) money.Amount {
	h.t.Helper()
	acc, err := repository.NewAccountRepository(h.db).FindByIdentity(h.ctx, identity)
	if err != nil {
		return 0
	}
	return acc.Balance
}

func (h *harness) score(identity string) int {
	h.t.Helper()
	s, err := h.sys.Reputation.GetReputationScore(h.ctx, identity)
	require.NoError(h.t, err)
	return s
}

func reviewers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("reviewer-%d", i+1)
	}
	return out
}
