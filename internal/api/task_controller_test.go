package api_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/money"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskAPI_Lifecycle 测试发布、认领、提交、审核到结算的完整流程
func TestTaskAPI_Lifecycle(t *testing.T) {
	s := newServer(t)
	task := s.createTask("1.0", 1)
	assert.Equal(t, money.MustParse("1.0"), task.Bounty)
	assert.Equal(t, string(ledger.TaskActive), task.Status)

	sub := s.submit(task.ID, "alice", "photo001")
	assert.Equal(t, string(ledger.SubmissionPending), sub.Status)

	s.review(sub.ID, "carol", true)
	s.review(sub.ID, "dave", true)
	outcome := s.review(sub.ID, "erin", true)
	assert.True(t, outcome.Finalized)
	assert.Equal(t, ledger.SubmissionVerified, outcome.Status)

	// 冷静期内结算返回冲突
	w := s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/distribute", "carol", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TOO_EARLY", decode(t, w, nil).Reason)

	s.clock.Advance(5 * time.Minute)
	w = s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/distribute", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var settlement ledger.Settlement
	decode(t, w, &settlement)
	require.NotNil(t, settlement.WorkerPayout)
	assert.Equal(t, money.MustParse("0.975"), settlement.WorkerPayout.Net)

	w = s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/distribute", "carol", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_DISTRIBUTED", decode(t, w, nil).Reason)

	w = s.do(http.MethodGet, "/api/v1/accounts/alice", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var account service.AccountView
	decode(t, w, &account)
	assert.Equal(t, money.MustParse("0.975"), account.Balance)
	assert.NotEmpty(t, account.Transfers)

	w = s.do(http.MethodGet, "/api/v1/tasks/"+task.ID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got service.TaskView
	decode(t, w, &got)
	assert.Equal(t, string(ledger.TaskCompleted), got.Status)
	assert.Equal(t, 1, got.VerifiedCount)

	w = s.do(http.MethodGet, "/api/v1/reputation/alice", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		Score          int `json:"score"`
		TasksCompleted int `json:"tasks_completed"`
	}
	decode(t, w, &profile)
	assert.Equal(t, 55, profile.Score)
	assert.Equal(t, 1, profile.TasksCompleted)
}

// TestTaskAPI_CreatorCannotReview 测试任务发布者和提交人质押审核返回 403
func TestTaskAPI_CreatorCannotReview(t *testing.T) {
	s := newServer(t)
	task := s.createTask("1.0", 1)
	sub := s.submit(task.ID, "alice", "photo001")

	w := s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/stake", "requester", map[string]string{"amount": "0.1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CREATOR_REVIEW", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/stake", "alice", map[string]string{"amount": "0.1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SELF_REVIEW", decode(t, w, nil).Reason)
}

func TestTaskAPI_CreateValidation(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/v1/tasks", "requester", map[string]interface{}{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/tasks", "requester", map[string]interface{}{
		"description":   "Count the bikes",
		"category":      string(ledger.CategorySurvey),
		"max_workers":   2,
		"latitude":      48.8566,
		"longitude":     2.3522,
		"radius_meters": 100,
		"deadline":      s.clock.Now().Add(time.Hour).Format(time.RFC3339),
		"funds":         "0.6",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "BOUNTY_TOO_LOW", env.Reason)
}

func TestTaskAPI_Unauthenticated(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/tasks", "", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestTaskAPI_ClaimConflicts 测试认领冲突映射为 409 并返回错误码
func TestTaskAPI_ClaimConflicts(t *testing.T) {
	s := newServer(t)
	task := s.createTask("1.0", 1)

	w := s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/claim", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var claim service.ClaimView
	decode(t, w, &claim)
	assert.Equal(t, "alice", claim.Worker)
	assert.True(t, claim.ClaimedAt.Add(24*time.Hour).Equal(claim.ExpiresAt))

	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/claim", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_CLAIMED", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/claim", "bob", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TASK_FULL", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/cancel", "requester", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/tasks/"+task.ID+"/claims", "requester", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var claims []*service.ClaimView
	decode(t, w, &claims)
	assert.Len(t, claims, 1)
}

func TestTaskAPI_NotFoundAndInvalidID(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/api/v1/tasks/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TASK_NOT_FOUND", decode(t, w, nil).Reason)

	w = s.do(http.MethodGet, "/api/v1/tasks/bad%20id", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID_FORMAT", decode(t, w, nil).Reason)
}

// TestTaskAPI_CancelAndEscrow 测试取消任务退款并查询托管与历史
func TestTaskAPI_CancelAndEscrow(t *testing.T) {
	s := newServer(t)
	task := s.createTask("2.0", 2)

	w := s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/cancel", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_CREATOR", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/cancel", "requester", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var payout ledger.Payout
	decode(t, w, &payout)
	assert.Equal(t, money.MustParse("2.0"), payout.Gross)
	assert.Equal(t, money.MustParse("0.1"), payout.Fee)

	w = s.do(http.MethodGet, "/api/v1/tasks/"+task.ID+"/escrow", "requester", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var escrow service.EscrowView
	decode(t, w, &escrow)
	assert.Zero(t, escrow.Balance)
	assert.Equal(t, money.MustParse("1.9"), escrow.Refunded)

	w = s.do(http.MethodGet, "/api/v1/tasks/"+task.ID+"/history", "requester", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []*service.StateHistory
	decode(t, w, &history)
	require.NotEmpty(t, history)
	assert.Equal(t, string(ledger.TaskCancelled), history[len(history)-1].ToState)
}

func TestTaskAPI_ExpireBeforeDeadline(t *testing.T) {
	s := newServer(t)
	task := s.createTask("1.0", 1)

	w := s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/expire", "anyone", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DEADLINE_NOT_REACHED", decode(t, w, nil).Reason)

	s.clock.Advance(49 * time.Hour)
	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/expire", "anyone", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Expired bool `json:"expired"`
	}
	decode(t, w, &result)
	assert.True(t, result.Expired)
}

func TestTaskAPI_ListPaginated(t *testing.T) {
	s := newServer(t)
	for i := 0; i < 3; i++ {
		s.createTask("1.0", 1)
	}

	w := s.do(http.MethodGet, "/api/v1/tasks?page=1&page_size=2&status=active", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data       []*service.TaskView `json:"data"`
		Pagination struct {
			Total     int64 `json:"total"`
			TotalPage int   `json:"total_page"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPage)
}
