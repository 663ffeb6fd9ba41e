package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/market/adapters"
	"agora/internal/market/app"
	"agora/internal/market/domain"
)

type testEnv struct {
	server *Server
	store  *adapters.MemoryStore
	tasks  *app.TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := adapters.NewMemoryStore()
	taskSvc := app.NewTaskService(store.Tasks(), store.Agents(), nil)
	agentSvc := app.NewAgentService(store.Agents(), nil, nil)
	penalty, _ := uint256.FromDecimal("100000000000000000")
	repSvc := app.NewReputationService(store.Agents(), taskSvc, store.Feedback(), nil, penalty, nil)
	disputeSvc := app.NewDisputeService(store.Disputes(), taskSvc, 2, nil, nil)

	server := NewServer(ServerConfig{Addr: ":0"}, Services{
		Agents:     agentSvc,
		Tasks:      taskSvc,
		Reputation: repSvc,
		Disputes:   disputeSvc,
	}, nil)
	return &testEnv{server: server, store: store, tasks: taskSvc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var parsed APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestAgentRegistrationFlow(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/agents", map[string]any{
		"name":            "summarizer",
		"walletAddress":   "0xabc",
		"endpoint":        "http://agent.example/hook",
		"pricePerRequest": "1000",
		"minimumStake":    "500000000000000000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, resp.Success)

	data, _ := json.Marshal(resp.Data)
	var agent domain.Agent
	require.NoError(t, json.Unmarshal(data, &agent))
	assert.False(t, agent.Active)
	assert.Equal(t, domain.DefaultReputationScore, agent.ReputationScore)

	// Duplicate wallet conflicts.
	rec, _ = env.do(t, http.MethodPost, "/api/agents", map[string]any{
		"name":          "copycat",
		"walletAddress": "0xABC",
		"endpoint":      "http://other.example",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Staking past the minimum activates.
	rec, resp = env.do(t, http.MethodPost, "/api/agents/"+agent.ID+"/stake", map[string]any{
		"amount": "1000000000000000000",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(data, &agent))
	assert.True(t, agent.Active)
}

func TestTaskEndpointsEnforceStateMachine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agent := &domain.Agent{
		ID: "agent-1", WalletAddress: "0xagent", Endpoint: "http://agent.example",
		StakedAmount: uint256.NewInt(10), SlashedAmount: uint256.NewInt(0),
		MinimumStake: uint256.NewInt(5), Active: true,
	}
	require.NoError(t, env.store.Agents().Create(ctx, agent))

	rec, resp := env.do(t, http.MethodPost, "/api/tasks", map[string]any{
		"requesterId": "0xpayer",
		"description": "translate this",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data, _ := json.Marshal(resp.Data)
	var task domain.Task
	require.NoError(t, json.Unmarshal(data, &task))

	// Payment before assignment is recorded but cannot advance the task.
	rec, _ = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/payment", map[string]any{
		"txHash": "0xearly", "status": "VERIFIED",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/assign", map[string]any{"agentId": agent.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/payment", map[string]any{
		"txHash": "0xproof", "status": "verified",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, domain.TaskStatusPaid, task.Status)

	// Reviewing before completion conflicts.
	rec, _ = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/review", map[string]any{
		"score": 5, "comment": "nice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	claimed, err := env.store.Tasks().ClaimForDispatch(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	_, err = env.tasks.Complete(ctx, task.ID, "done")
	require.NoError(t, err)

	rec, _ = env.do(t, http.MethodPost, "/api/tasks/"+task.ID+"/review", map[string]any{
		"score": 5, "comment": "nice",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestListTasksRequiresRequester(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisputeVotingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agent := &domain.Agent{
		ID: "agent-1", WalletAddress: "0xagent", Endpoint: "http://agent.example",
		StakedAmount: uint256.NewInt(10), SlashedAmount: uint256.NewInt(0),
		MinimumStake: uint256.NewInt(5), Active: true,
	}
	require.NoError(t, env.store.Agents().Create(ctx, agent))

	task, err := env.tasks.Create(ctx, "0xpayer", "work", "")
	require.NoError(t, err)
	_, err = env.tasks.Assign(ctx, task.ID, agent.ID)
	require.NoError(t, err)
	_, err = env.tasks.RecordPayment(ctx, task.ID, "0xproof", domain.PaymentStatusVerified)
	require.NoError(t, err)
	_, err = env.store.Tasks().ClaimForDispatch(ctx, task.ID)
	require.NoError(t, err)
	_, err = env.tasks.Complete(ctx, task.ID, "done")
	require.NoError(t, err)

	rec, resp := env.do(t, http.MethodPost, "/api/disputes", map[string]any{
		"taskId": task.ID, "raisedBy": "0xpayer", "reason": "wrong answer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data, _ := json.Marshal(resp.Data)
	var d domain.Dispute
	require.NoError(t, json.Unmarshal(data, &d))

	rec, _ = env.do(t, http.MethodPost, "/api/disputes/"+d.ID+"/votes", map[string]any{
		"validator": "0xval1", "approveRefund": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Same validator cannot vote twice.
	rec, _ = env.do(t, http.MethodPost, "/api/disputes/"+d.ID+"/votes", map[string]any{
		"validator": "0xval1", "approveRefund": false,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/disputes/"+d.ID+"/votes", map[string]any{
		"validator": "0xval2", "approveRefund": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, domain.DisputeStatusResolvedRefund, d.Status)

	// Resolution is terminal.
	rec, _ = env.do(t, http.MethodPost, "/api/disputes/"+d.ID+"/votes", map[string]any{
		"validator": "0xval3", "approveRefund": false,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFeedbackEndpointRejectsBadScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	agent := &domain.Agent{
		ID: "agent-1", WalletAddress: "0xagent", Endpoint: "http://agent.example",
		StakedAmount: uint256.NewInt(10), SlashedAmount: uint256.NewInt(0),
		MinimumStake: uint256.NewInt(5), Active: true,
	}
	require.NoError(t, env.store.Agents().Create(ctx, agent))

	rec, _ := env.do(t, http.MethodPost, "/api/feedback", map[string]any{
		"agentId": agent.ID, "reviewer": "0xpayer", "score": 9, "paymentProof": "0xproof",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
