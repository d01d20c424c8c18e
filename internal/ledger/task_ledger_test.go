package ledger_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateTask_BelowMinimum 测试低于最低赏金时不创建托管
func TestCreateTask_BelowMinimum(t *testing.T) {
	h := newHarness(t)

	task, err := h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Category:     string(ledger.CategorySurvey),
		MaxWorkers:   1,
		Location:     center,
		RadiusMeters: 100,
		Deadline:     epoch.Add(time.Hour),
	}, amt("0.4"))
	assert.Nil(t, task)
	assert.ErrorIs(t, err, ledger.ErrBountyTooLow)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	tasks, total, err := h.sys.Tasks.ListTasks(h.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, total)
}

// TestCreateTask_PerWorkerMinimum 测试每个名额都需要满足最低赏金
func TestCreateTask_PerWorkerMinimum(t *testing.T) {
	h := newHarness(t)

	_, err := h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Category:   string(ledger.CategorySurvey),
		MaxWorkers: 3,
		Location:   center,
		Deadline:   epoch.Add(time.Hour),
	}, amt("1.0"))
	assert.ErrorIs(t, err, ledger.ErrBountyTooLow)
}

// TestCreateTask_Validation 测试参数校验
func TestCreateTask_Validation(t *testing.T) {
	h := newHarness(t)
	valid := ledger.CreateTaskParams{
		Category:     string(ledger.CategoryPriceMonitoring),
		MaxWorkers:   1,
		Location:     center,
		RadiusMeters: 100,
		Deadline:     epoch.Add(time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(p *ledger.CreateTaskParams)
		want   error
	}{
		{"deadline now", func(p *ledger.CreateTaskParams) { p.Deadline = epoch }, ledger.ErrInvalidDeadline},
		{"deadline past", func(p *ledger.CreateTaskParams) { p.Deadline = epoch.Add(-time.Minute) }, ledger.ErrInvalidDeadline},
		{"bad category", func(p *ledger.CreateTaskParams) { p.Category = "gardening" }, ledger.ErrInvalidParams},
		{"no workers", func(p *ledger.CreateTaskParams) { p.MaxWorkers = 0 }, ledger.ErrInvalidParams},
		{"bad latitude", func(p *ledger.CreateTaskParams) { p.Location = utils.Point{Latitude: 91} }, ledger.ErrInvalidLocation},
		{"negative radius", func(p *ledger.CreateTaskParams) { p.RadiusMeters = -1 }, ledger.ErrInvalidLocation},
		{"bad badge", func(p *ledger.CreateTaskParams) { p.Requirements.RequiredBadge = "x" }, ledger.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := h.sys.Tasks.CreateTask(h.ctx, "requester", p, amt("1.0"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestCreateTask_FundsEscrowed 测试创建任务时资金进入托管
func TestCreateTask_FundsEscrowed(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	assert.Equal(t, string(ledger.TaskActive), task.Status)
	assert.Equal(t, amt("1.0"), task.BountyAmount)

	balance, err := h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)

	history, err := h.sys.History(h.ctx, ledger.ResourceTask, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(ledger.TaskActive), history[0].ToState)
}

// TestClaimTask_FirstClaimStartsTask 测试首个认领切换状态
func TestClaimTask_FirstClaimStartsTask(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("2.0", 2)

	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)

	got, err := h.sys.Tasks.GetTask(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.TaskInProgress), got.Status)
	assert.Equal(t, 1, got.ClaimedCount)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyClaimed)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "bob", task.ID)
	require.NoError(t, err)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "carol", task.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskFull)
}

// TestClaimTask_ConcurrentLimit 测试工人最多同时持有三个认领
func TestClaimTask_ConcurrentLimit(t *testing.T) {
	h := newHarness(t)
	tasks := make([]string, 4)
	for i := range tasks {
		tasks[i] = h.createTask("1.0", 1).ID
	}

	for _, id := range tasks[:3] {
		_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", id)
		require.NoError(t, err)
	}
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", tasks[3])
	assert.ErrorIs(t, err, ledger.ErrClaimLimitReached)
	assert.Equal(t, ledger.KindStateConflict, ledger.KindOf(err))

	// 提交后认领不再占用并发名额
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", tasks[0], evidence("hash0001"))
	require.NoError(t, err)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", tasks[3])
	require.NoError(t, err)

	open, err := h.sys.Tasks.GetOpenClaims(h.ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

// TestClaimTask_Concurrent 测试并发认领单名额任务只有一个成功
func TestClaimTask_Concurrent(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
	)
	for _, w := range reviewers(8) {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			_, err := h.sys.Tasks.ClaimTask(h.ctx, worker, task.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, ledger.ErrTaskFull) {
				full++
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, full)
}

// TestClaimTask_Requirements 测试信誉和徽章要求
func TestClaimTask_Requirements(t *testing.T) {
	h := newHarness(t)

	task, err := h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Category:     string(ledger.CategoryLocationCheck),
		MaxWorkers:   1,
		Location:     center,
		RadiusMeters: 100,
		Deadline:     epoch.Add(time.Hour),
		Requirements: ledger.Requirements{MinReputation: 60},
	}, amt("1.0"))
	require.NoError(t, err)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ledger.ErrReputationTooLow)

	for i := 0; i < 2; i++ {
		require.NoError(t, h.sys.Reputation.UpdateWorkerReputation(h.ctx, ledger.PrincipalVerification, "alice", true))
	}
	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)

	badgeTask, err := h.sys.Tasks.CreateTask(h.ctx, "requester", ledger.CreateTaskParams{
		Category:     string(ledger.CategoryLocationCheck),
		MaxWorkers:   1,
		Location:     center,
		Deadline:     epoch.Add(time.Hour),
		Requirements: ledger.Requirements{RequiredBadge: string(ledger.CategoryLocationCheck)},
	}, amt("1.0"))
	require.NoError(t, err)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "bob", badgeTask.ID)
	assert.ErrorIs(t, err, ledger.ErrBadgeRequired)
}

// TestClaimTask_ExpiredClaimReleased 测试超时认领被释放并扣分
func TestClaimTask_ExpiredClaimReleased(t *testing.T) {
	h := newHarness(t)
	first := h.createTask("1.0", 1)
	second := h.createTask("1.0", 1)

	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", first.ID)
	require.NoError(t, err)

	h.clock.Advance(25 * time.Hour)

	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", first.ID, evidence("late0001"))
	assert.ErrorIs(t, err, ledger.ErrClaimExpired)
	assert.Equal(t, ledger.KindTemporal, ledger.KindOf(err))

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", second.ID)
	require.NoError(t, err)

	got, err := h.sys.Tasks.GetTask(h.ctx, first.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ClaimedCount)
	assert.Equal(t, 45, h.score("alice"))

	// 名额已释放,其他工人可以认领
	_, err = h.sys.Tasks.ClaimTask(h.ctx, "bob", first.ID)
	require.NoError(t, err)
}

// TestReleaseExpiredClaims 测试批量释放超时认领
func TestReleaseExpiredClaims(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("2.0", 2)
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)

	released, err := h.sys.Tasks.ReleaseExpiredClaims(h.ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, released)

	h.clock.Advance(24*time.Hour + time.Second)
	released, err = h.sys.Tasks.ReleaseExpiredClaims(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, 45, h.score("alice"))

	open, err := h.sys.Tasks.GetOpenClaims(h.ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, open)
}

// TestSubmitCompletion_Geofence 测试地理围栏检查失败时不改变任何状态
func TestSubmitCompletion_Geofence(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)

	far := evidence("hash0001")
	far.Location = utils.Point{Latitude: 40.7306, Longitude: -73.9352}
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, far)
	assert.ErrorIs(t, err, ledger.ErrOutsideGeofence)

	activity, err := h.sys.AntiFraud.GetActivity(h.ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, activity.SubmittedToday)

	found, _, err := h.sys.AntiFraud.CheckImageSimilarity(h.ctx, "hash0001", 100)
	require.NoError(t, err)
	assert.False(t, found)

	// 在围栏内重新提交成功
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, evidence("hash0001"))
	require.NoError(t, err)
}

// TestSubmitCompletion_DuplicateContent 测试反作弊拒绝时认领、任务计数和提交都保持不变
func TestSubmitCompletion_DuplicateContent(t *testing.T) {
	h := newHarness(t)
	first := h.createTask("1.0", 1)
	second := h.createTask("1.0", 1)
	h.claimAndSubmit(first.ID, "alice", "hash0001")

	_, err := h.sys.Tasks.ClaimTask(h.ctx, "bob", second.ID)
	require.NoError(t, err)
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "bob", second.ID, evidence("hash0001"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateContent)

	claims, err := h.sys.Tasks.GetClaims(h.ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].Open())

	got, err := h.sys.Tasks.GetTask(h.ctx, second.ID)
	require.NoError(t, err)
	assert.Zero(t, got.SubmissionCount)
	assert.Equal(t, 1, got.ClaimedCount)

	taskID := second.ID
	subs, err := h.sys.Verification.ListSubmissions(h.ctx, &repository.SubmissionFilter{TaskID: &taskID})
	require.NoError(t, err)
	assert.Empty(t, subs)

	activity, err := h.sys.AntiFraud.GetActivity(h.ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, activity.SubmittedToday)

	// 换用新的内容哈希重新提交成功
	sub, err := h.sys.Tasks.SubmitCompletion(h.ctx, "bob", second.ID, evidence("hash0002"))
	require.NoError(t, err)
	assert.Equal(t, second.ID, sub.TaskID)

	got, err = h.sys.Tasks.GetTask(h.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SubmissionCount)
}

// TestSubmitCompletion_RequiresClaim 测试没有认领时拒绝提交
func TestSubmitCompletion_RequiresClaim(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	_, err := h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, evidence("hash0001"))
	assert.ErrorIs(t, err, ledger.ErrNoActiveClaim)

	h.claimAndSubmit(task.ID, "alice", "hash0001")
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, evidence("hash0002"))
	assert.ErrorIs(t, err, ledger.ErrNoActiveClaim)
}

// TestSubmitCompletion_CapturedAt 测试证据时间戳校验
func TestSubmitCompletion_CapturedAt(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)

	ev := evidence("hash0001")
	future := h.clock.Now().Add(time.Minute)
	ev.CapturedAt = &future
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, ev)
	assert.ErrorIs(t, err, ledger.ErrTimestampInFuture)

	old := h.clock.Now().Add(-2 * time.Hour)
	ev.CapturedAt = &old
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, ev)
	assert.ErrorIs(t, err, ledger.ErrTimestampTooOld)

	recent := h.clock.Now().Add(-10 * time.Minute)
	ev.CapturedAt = &recent
	sub, err := h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, ev)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), sub.BountyAmount)
	assert.Equal(t, string(ledger.SubmissionPending), sub.Status)
}

// TestExpireTask_RefundsUnreserved 测试过期退款只退还未被提交占用的余额
func TestExpireTask_RefundsUnreserved(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("2.0", 2)
	h.claimAndSubmit(task.ID, "alice", "hash0001")
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "bob", task.ID)
	require.NoError(t, err)

	_, err = h.sys.Tasks.ExpireTask(h.ctx, "anyone", task.ID)
	assert.ErrorIs(t, err, ledger.ErrDeadlineNotReached)
	e, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, int64(48*3600), e.Details["remaining_seconds"])

	h.clock.Advance(49 * time.Hour)
	expired, err := h.sys.Tasks.ExpireTask(h.ctx, "anyone", task.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	// 2.0 中 1.0 被待审核提交占用,退还 1.0 扣 5%
	assert.Equal(t, amt("0.95"), h.account("requester"))
	balance, err := h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)

	got, err := h.sys.Tasks.GetTask(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.TaskExpired), got.Status)
	// 已提交的认领保留名额,未完成的认领被释放
	assert.Equal(t, 1, got.ClaimedCount)

	_, err = h.sys.Tasks.ExpireTask(h.ctx, "anyone", task.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskNotExpirable)
}

// TestExpireOverdueTasks 测试批量过期
func TestExpireOverdueTasks(t *testing.T) {
	h := newHarness(t)
	h.createTask("1.0", 1)
	h.createTask("1.0", 1)

	n, err := h.sys.Tasks.ExpireOverdueTasks(h.ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(72 * time.Hour)
	n, err = h.sys.Tasks.ExpireOverdueTasks(h.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, amt("1.9"), h.account("requester"))
}

// TestCancelTask 测试取消任务
func TestCancelTask(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	_, err := h.sys.Tasks.CancelTask(h.ctx, "mallory", task.ID)
	assert.ErrorIs(t, err, ledger.ErrNotCreator)

	payout, err := h.sys.Tasks.CancelTask(h.ctx, "requester", task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("0.05"), payout.Fee)
	assert.Equal(t, amt("0.95"), h.account("requester"))

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskNotClaimable)

	claimed := h.createTask("1.0", 1)
	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", claimed.ID)
	require.NoError(t, err)
	_, err = h.sys.Tasks.CancelTask(h.ctx, "requester", claimed.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskNotCancellable)
}

// TestRecordRejected_ReopensSlot 测试任务未结束时拒绝提交会归还名额
func TestRecordRejected_ReopensSlot(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	subID := h.claimAndSubmit(task.ID, "alice", "hash0001")
	_, err := h.sys.Tasks.ClaimTask(h.ctx, "bob", task.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskFull)

	for _, r := range reviewers(3) {
		h.vote(subID, r, false)
	}
	sub, err := h.sys.Verification.GetSubmission(h.ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.SubmissionRejected), sub.Status)

	got, err := h.sys.Tasks.GetTask(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ClaimedCount)
	assert.Equal(t, string(ledger.TaskInProgress), got.Status)
	assert.Equal(t, 1, got.SubmissionCount)

	claims, err := h.sys.Tasks.GetClaims(h.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].Completed)
	assert.True(t, claims[0].Released)

	// 拒绝不额外扣除认领超时的信誉分
	assert.Equal(t, 45, h.score("alice"))

	// 赏金仍在托管中,由下一位工人领取
	balance, err := h.sys.Escrow.GetBalance(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, amt("1.0"), balance)

	_, err = h.sys.Tasks.ClaimTask(h.ctx, "bob", task.ID)
	require.NoError(t, err)
	_, err = h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	assert.ErrorIs(t, err, ledger.ErrTaskFull)

	got, err = h.sys.Tasks.GetTask(h.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ClaimedCount)
}

// TestRecordRejected_SameWorkerReclaims 测试被拒绝的工人可以重新认领空出的名额
func TestRecordRejected_SameWorkerReclaims(t *testing.T) {
	h := newHarness(t)
	task := h.createTask("1.0", 1)

	subID := h.claimAndSubmit(task.ID, "alice", "hash0001")
	for _, r := range reviewers(3) {
		h.vote(subID, r, false)
	}

	_, err := h.sys.Tasks.ClaimTask(h.ctx, "alice", task.ID)
	require.NoError(t, err)
	// 已提交过的内容不能重复使用
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, evidence("hash0001"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateContent)
	_, err = h.sys.Tasks.SubmitCompletion(h.ctx, "alice", task.ID, evidence("hash0002"))
	require.NoError(t, err)
}
