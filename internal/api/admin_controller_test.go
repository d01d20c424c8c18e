package api_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdminAPI_RequiresKeyAndOwner 测试管理接口同时校验管理员密钥和所有者身份
func TestAdminAPI_RequiresKeyAndOwner(t *testing.T) {
	s := newServer(t)
	body := map[string]string{"reason": "duplicate photos"}

	w := s.do(http.MethodPost, "/api/v1/admin/blacklist/alice", s.owner, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/blacklist/alice", s.owner, body, "X-Admin-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/blacklist/alice", "mallory", body, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_OWNER", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/admin/blacklist/alice", s.owner, body, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/admin/blacklist", s.owner, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var list []string
	decode(t, w, &list)
	assert.Equal(t, []string{"alice"}, list)

	// 被拉黑的工作者无法提交
	task := s.createTask("1.0", 1)
	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/claim", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/submissions", "alice", map[string]interface{}{
		"content_hash":  "photo001",
		"metadata_hash": "metaphoto001",
		"latitude":      48.8567,
		"longitude":     2.3523,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BLACKLISTED", decode(t, w, nil).Reason)

	w = s.do(http.MethodDelete, "/api/v1/admin/blacklist/alice", s.owner, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/admin/blacklist/alice", s.owner, nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_BLACKLISTED", decode(t, w, nil).Reason)
}

func TestAdminAPI_FeesAndStakes(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/v1/admin/fees/withdraw", s.owner, nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_FEES", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/admin/stakes/alice", s.owner, map[string]string{"amount": "0.5"}, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/admin/workers/alice/activity", s.owner, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var activity ledger.WorkerActivity
	decode(t, w, &activity)
	assert.Equal(t, "alice", activity.Worker)
	assert.Equal(t, "0.5", activity.Stake.String())

	w = s.do(http.MethodPost, "/api/v1/admin/stakes/alice", s.owner, map[string]string{"amount": "abc"}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestAdminAPI_Grants 测试授权的撤销与恢复
func TestAdminAPI_Grants(t *testing.T) {
	s := newServer(t)
	grant := map[string]string{"principal": ledger.PrincipalTaskLedger, "operation": ledger.OpDeposit}

	w := s.do(http.MethodDelete, "/api/v1/admin/grants", s.owner, grant, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := map[string]interface{}{
		"description":   "Photograph the opening hours sign",
		"category":      string(ledger.CategoryBusinessHours),
		"max_workers":   1,
		"latitude":      48.8566,
		"longitude":     2.3522,
		"radius_meters": 300,
		"deadline":      s.clock.Now().Add(time.Hour).Format(time.RFC3339),
		"funds":         "1.0",
	}
	w = s.do(http.MethodPost, "/api/v1/tasks", "requester", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/admin/grants", s.owner, grant, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/tasks", "requester", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/grants", s.owner, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var grants []map[string]interface{}
	decode(t, w, &grants)
	assert.Len(t, grants, 12)

	w = s.do(http.MethodGet, "/api/v1/admin/audit-logs?resource_type="+service.ResourceGrant+"&resource_id="+ledger.PrincipalTaskLedger, s.owner, nil, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []map[string]interface{}
	decode(t, w, &logs)
	assert.Len(t, logs, 2)

	w = s.do(http.MethodGet, "/api/v1/admin/audit-logs", s.owner, nil, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestAdminAPI_ResolveDispute 测试七票无多数时由所有者仲裁
func TestAdminAPI_ResolveDispute(t *testing.T) {
	s := newServer(t, func(p *ledger.Params) { p.ConsensusThreshold = 5 })
	task := s.createTask("1.0", 1)
	sub := s.submit(task.ID, "alice", "photo001")

	w := s.do(http.MethodPost, "/api/v1/admin/submissions/"+sub.ID+"/resolve", s.owner, map[string]bool{"approved": true}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_DISPUTED", decode(t, w, nil).Reason)

	var outcome *ledger.VoteOutcome
	for i := 0; i < 7; i++ {
		outcome = s.review(sub.ID, fmt.Sprintf("reviewer-%d", i), i%2 == 0)
	}
	require.Equal(t, ledger.SubmissionDisputed, outcome.Status)

	w = s.do(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/distribute", "anyone", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_FINALIZED", decode(t, w, nil).Reason)

	w = s.do(http.MethodPost, "/api/v1/admin/submissions/"+sub.ID+"/resolve", s.owner, map[string]interface{}{}, "X-Admin-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/submissions/"+sub.ID+"/resolve", s.owner, map[string]bool{"approved": true}, "X-Admin-Key", adminKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resolved ledger.VoteOutcome
	decode(t, w, &resolved)
	assert.Equal(t, ledger.SubmissionVerified, resolved.Status)
}
