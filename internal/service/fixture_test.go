package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	t            *testing.T
	ctx          context.Context
	db           *gorm.DB
	clock        *ledger.FakeClock
	system       *ledger.System
	owner        string
	logger       *logrus.Logger
	audit        service.AuditLogService
	tasks        service.TaskService
	verification service.VerificationService
	reputation   service.ReputationService
	admin        service.AdminService
	stats        service.StatisticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := ledger.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	params := ledger.DefaultParams()
	sys, err := ledger.NewSystem(ledger.Options{DB: db, Params: params, Clock: clock, Logger: logger})
	require.NoError(t, err)

	ctx := service.WithRequestInfo(context.Background(), service.RequestInfo{
		RequestID: "req-1",
		IP:        "127.0.0.1",
		UserAgent: "go-test",
	})
	_, err = sys.ApplyPolicy(ctx, params.Owner, ledger.DefaultPolicy())
	require.NoError(t, err)

	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)
	return &fixture{
		t:            t,
		ctx:          ctx,
		db:           db,
		clock:        clock,
		system:       sys,
		owner:        params.Owner,
		logger:       logger,
		audit:        audit,
		tasks:        service.NewTaskService(sys, audit),
		verification: service.NewVerificationService(sys, audit),
		reputation:   service.NewReputationService(sys, repository.NewAccountRepository(db)),
		admin:        service.NewAdminService(sys, audit),
		stats:        service.NewStatisticsService(db),
	}
}

func (f *fixture) createTask(funds string, maxWorkers int) *service.TaskView {
	f.t.Helper()
	task, err := f.tasks.Create(f.ctx, "requester", &service.CreateTaskRequest{
		Description:  "Photograph the opening hours sign",
		Category:     string(ledger.CategoryBusinessHours),
		MaxWorkers:   maxWorkers,
		Latitude:     48.8566,
		Longitude:    2.3522,
		RadiusMeters: 300,
		Deadline:     f.clock.Now().Add(48 * time.Hour),
		Funds:        money.MustParse(funds),
	})
	require.NoError(f.t, err)
	return task
}

func (f *fixture) submit(taskID, worker, hash string) *service.SubmissionView {
	f.t.Helper()
	_, err := f.tasks.Claim(f.ctx, worker, taskID)
	require.NoError(f.t, err)
	sub, err := f.tasks.Submit(f.ctx, worker, taskID, &service.SubmitCompletionRequest{
		ContentHash:  hash,
		MetadataHash: "meta" + hash,
		Latitude:     48.8567,
		Longitude:    2.3523,
	})
	require.NoError(f.t, err)
	return sub
}

func (f *fixture) review(subID, reviewer string, approved bool) *ledger.VoteOutcome {
	f.t.Helper()
	_, err := f.verification.Stake(f.ctx, reviewer, subID, &service.StakeRequest{Amount: money.MustParse("0.1")})
	require.NoError(f.t, err)
	result, err := f.verification.Vote(f.ctx, reviewer, subID, &service.VoteRequest{Approved: &approved})
	require.NoError(f.t, err)
	return result
}
