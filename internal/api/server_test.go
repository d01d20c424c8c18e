package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/api"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/config"
	"github.com/mautops/bounty-gin/internal/database"
	"github.com/mautops/bounty-gin/internal/ledger"
	"github.com/mautops/bounty-gin/internal/repository"
	"github.com/mautops/bounty-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const adminKey = "let-me-in"

type server struct {
	t      *testing.T
	router *gin.Engine
	clock  *ledger.FakeClock
	tokens *auth.HMACTokenValidator
	owner  string
}

// envelope 统一响应外壳,data 延迟解析
type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details"`
}

func newServer(t *testing.T, opts ...func(*ledger.Params)) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := ledger.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	params := ledger.DefaultParams()
	for _, opt := range opts {
		opt(&params)
	}
	sys, err := ledger.NewSystem(ledger.Options{DB: db, Params: params, Clock: clock, Logger: logger})
	require.NoError(t, err)
	_, err = sys.ApplyPolicy(context.Background(), params.Owner, ledger.DefaultPolicy())
	require.NoError(t, err)

	tokens, err := auth.NewHMACTokenValidator("test-secret", "bounty-gin")
	require.NoError(t, err)
	hash, err := auth.HashAdminKey(adminKey)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Auth.AdminKeyHash = hash
	cfg.RateLimit.RPS = 0

	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)
	router := api.SetupRoutes(api.RouterDeps{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Validator:    tokens,
		Tasks:        service.NewTaskService(sys, audit),
		Verification: service.NewVerificationService(sys, audit),
		Reputation:   service.NewReputationService(sys, repository.NewAccountRepository(db)),
		Admin:        service.NewAdminService(sys, audit),
		Audit:        audit,
		Statistics:   service.NewStatisticsService(db),
	})

	return &server{t: t, router: router, clock: clock, tokens: tokens, owner: params.Owner}
}

// do 以 identity 身份发送请求,identity 为空时不带令牌
func (s *server) do(method, path, identity string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		token, err := s.tokens.Issue(identity, nil, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decode 解析响应外壳,out 非空时解析 data
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

func (s *server) createTask(funds string, maxWorkers int) *service.TaskView {
	s.t.Helper()
	body := map[string]interface{}{
		"description":   "Photograph the opening hours sign",
		"category":      string(ledger.CategoryBusinessHours),
		"max_workers":   maxWorkers,
		"latitude":      48.8566,
		"longitude":     2.3522,
		"radius_meters": 300,
		"deadline":      s.clock.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"funds":         funds,
	}
	w := s.do(http.MethodPost, "/api/v1/tasks", "requester", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var task service.TaskView
	decode(s.t, w, &task)
	return &task
}

func (s *server) submit(taskID, worker, hash string) *service.SubmissionView {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/claim", worker, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/submissions", worker, map[string]interface{}{
		"content_hash":  hash,
		"metadata_hash": "meta" + hash,
		"latitude":      48.8567,
		"longitude":     2.3523,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var sub service.SubmissionView
	decode(s.t, w, &sub)
	return &sub
}

func (s *server) review(subID, reviewer string, approved bool) *ledger.VoteOutcome {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/submissions/"+subID+"/stake", reviewer, map[string]string{"amount": "0.1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/submissions/"+subID+"/votes", reviewer, map[string]interface{}{"approved": approved})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var outcome ledger.VoteOutcome
	decode(s.t, w, &outcome)
	return &outcome
}
