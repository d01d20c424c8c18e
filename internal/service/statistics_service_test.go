package service_test

import (
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsService(t *testing.T) {
	f := newFixture(t)
	task := f.createTask("1.0", 1)
	f.createTask("1.0", 1)

	sub := f.submit(task.ID, "alice", "photo001")
	f.clock.Advance(time.Minute)
	for _, r := range []string{"carol", "dave", "erin"} {
		f.review(sub.ID, r, true)
	}

	byState, err := f.stats.TasksByState(f.ctx)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, s := range byState {
		counts[s.State] = s.Count
	}
	assert.Equal(t, int64(1), counts[string(ledger.TaskActive)])
	assert.Equal(t, int64(1), counts[string(ledger.TaskCompleted)])

	subs, err := f.stats.SubmissionsByState(f.ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, string(ledger.SubmissionVerified), subs[0].State)

	byCategory, err := f.stats.TasksByCategory(f.ctx)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, int64(2), byCategory[0].Count)
	assert.Equal(t, money.MustParse("2.0"), byCategory[0].Funded)

	byDay, err := f.stats.TasksByDay(f.ctx, 7)
	require.NoError(t, err)
	var total int64
	for _, d := range byDay {
		total += d.Count
	}
	assert.Equal(t, int64(2), total)

	verification, err := f.stats.Verification(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), verification.TotalSubmissions)
	assert.Equal(t, int64(1), verification.VerifiedCount)
	assert.Equal(t, 1.0, verification.ApprovalRate)
	assert.InDelta(t, 60, verification.AverageConsensusSec, 1)

	pools, err := f.stats.Pools(f.ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, pools)
}
