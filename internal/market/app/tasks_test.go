package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"

	"agora/internal/market/adapters"
	"agora/internal/market/domain"
)

type fakeVerifier struct {
	settled bool
	err     error
	calls   int
}

func (f *fakeVerifier) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	return domain.VerifyResult{Settled: f.settled}, f.err
}

func (f *fakeVerifier) CheckSettled(ctx context.Context, proof string) (bool, error) {
	f.calls++
	return f.settled, f.err
}

func newTestStore(t *testing.T) (*adapters.MemoryStore, *domain.Agent) {
	t.Helper()
	store := adapters.NewMemoryStore()
	agent := &domain.Agent{
		ID:              "agent-1",
		WalletAddress:   "0xagent",
		Name:            "translator",
		Endpoint:        "http://agent.example/hook",
		PricePerRequest: uint256.NewInt(1000),
		StakedAmount:    uint256.NewInt(10),
		SlashedAmount:   uint256.NewInt(0),
		MinimumStake:    uint256.NewInt(5),
		Active:          true,
		ReputationScore: domain.DefaultReputationScore,
	}
	if err := store.Agents().Create(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return store, agent
}

func newTaskService(store *adapters.MemoryStore, opts ...TaskServiceOption) *TaskService {
	return NewTaskService(store.Tasks(), store.Agents(), nil, opts...)
}

func TestTaskLifecycleHappyPath(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task, err := svc.Create(ctx, "0xpayer", "translate a document", "translation")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.TaskStatusPending {
		t.Fatalf("new task status = %s, want PENDING", task.Status)
	}

	task, err = svc.Assign(ctx, task.ID, agent.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.Status != domain.TaskStatusAssigned || task.SelectedAgentID != agent.ID {
		t.Fatalf("assigned task = %s/%s", task.Status, task.SelectedAgentID)
	}

	task, err = svc.RecordPayment(ctx, task.ID, "0xproof", domain.PaymentStatusVerified)
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if task.Status != domain.TaskStatusPaid {
		t.Fatalf("paid task status = %s, want PAID", task.Status)
	}

	claimed, err := store.Tasks().ClaimForDispatch(ctx, task.ID)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}

	task, err = svc.Complete(ctx, task.ID, "done")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted || task.CompletedAt == nil {
		t.Fatalf("completed task = %s, completedAt=%v", task.Status, task.CompletedAt)
	}

	task, err = svc.SubmitReview(ctx, task.ID, 5, "great work")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if task.Status != domain.TaskStatusReviewed || task.ReviewScore == nil || *task.ReviewScore != 5 {
		t.Fatalf("reviewed task = %s, score=%v", task.Status, task.ReviewScore)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	store, _ := newTestStore(t)
	svc := newTaskService(store)

	if _, err := svc.Create(context.Background(), "", "desc", ""); !domain.IsInvalidInput(err) {
		t.Fatalf("missing requester: got %v", err)
	}
	if _, err := svc.Create(context.Background(), "0xpayer", "  ", ""); !domain.IsInvalidInput(err) {
		t.Fatalf("blank description: got %v", err)
	}
}

func TestAssignUnknownAgent(t *testing.T) {
	store, _ := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task, _ := svc.Create(ctx, "0xpayer", "work", "")
	if _, err := svc.Assign(ctx, task.ID, "no-such-agent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaymentGatingCannotBeReordered(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task, _ := svc.Create(ctx, "0xpayer", "work", "")
	task, _ = svc.Assign(ctx, task.ID, agent.ID)

	// A failed payment is recorded for audit but moves nothing.
	task, err := svc.RecordPayment(ctx, task.ID, "0xbad", domain.PaymentStatusFailed)
	if err != nil {
		t.Fatalf("record failed payment: %v", err)
	}
	if task.Status != domain.TaskStatusAssigned || task.PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("task after failed payment = %s/%s", task.Status, task.PaymentStatus)
	}

	// Neither re-assignment nor completion can route around the gate.
	if _, err := svc.Assign(ctx, task.ID, agent.ID); !domain.IsInvalidState(err) {
		t.Fatalf("re-assign after payment attempt: got %v", err)
	}
	if _, err := svc.Complete(ctx, task.ID, "sneaky"); !domain.IsInvalidState(err) {
		t.Fatalf("complete without payment: got %v", err)
	}
}

func TestRecordPaymentStrictVerification(t *testing.T) {
	store, agent := newTestStore(t)
	verifier := &fakeVerifier{settled: false}
	svc := newTaskService(store, WithPaymentVerifier(verifier, true))
	ctx := context.Background()

	task, _ := svc.Create(ctx, "0xpayer", "work", "")
	task, _ = svc.Assign(ctx, task.ID, agent.ID)

	if _, err := svc.RecordPayment(ctx, task.ID, "0xunsettled", domain.PaymentStatusVerified); !errors.Is(err, domain.ErrPaymentInvalid) {
		t.Fatalf("expected ErrPaymentInvalid, got %v", err)
	}
	if verifier.calls != 1 {
		t.Fatalf("verifier calls = %d, want 1", verifier.calls)
	}

	got, _ := svc.Get(ctx, task.ID)
	if got.Status != domain.TaskStatusAssigned {
		t.Fatalf("task advanced despite unsettled payment: %s", got.Status)
	}

	verifier.settled = true
	if _, err := svc.RecordPayment(ctx, task.ID, "0xsettled", domain.PaymentStatusVerified); err != nil {
		t.Fatalf("settled payment rejected: %v", err)
	}
}

func TestCompleteFailedTaskRejected(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task := mustDispatch(t, svc, store, agent)
	if _, err := svc.FailDispatch(ctx, task.ID, "agent timed out"); err != nil {
		t.Fatalf("fail dispatch: %v", err)
	}

	if _, err := svc.Complete(ctx, task.ID, "late result"); !domain.IsInvalidState(err) {
		t.Fatalf("completing a failed task: got %v", err)
	}
	got, _ := svc.Get(ctx, task.ID)
	if got.Status != domain.TaskStatusFailed || got.Result != "agent timed out" {
		t.Fatalf("failed task = %s, result %q", got.Status, got.Result)
	}
}

func TestCompleteIsIdempotentForRedelivery(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task := mustDispatch(t, svc, store, agent)
	if _, err := svc.Complete(ctx, task.ID, "first"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := svc.Complete(ctx, task.ID, "second delivery")
	if err != nil {
		t.Fatalf("redelivered completion: %v", err)
	}
	if got.Result != "second delivery" {
		t.Fatalf("result = %q, want last write", got.Result)
	}
}

func TestReviewScoreValidation(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task := mustDispatch(t, svc, store, agent)
	svc.Complete(ctx, task.ID, "done")

	for _, score := range []int{0, 6, -3} {
		if _, err := svc.SubmitReview(ctx, task.ID, score, ""); !domain.IsInvalidInput(err) {
			t.Errorf("score %d: got %v, want InvalidInput", score, err)
		}
	}
	got, _ := svc.Get(ctx, task.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Fatalf("invalid review mutated task to %s", got.Status)
	}
}

func TestRaiseDisputeRules(t *testing.T) {
	store, agent := newTestStore(t)
	svc := newTaskService(store)
	ctx := context.Background()

	task, _ := svc.Create(ctx, "0xpayer", "work", "")
	if _, err := svc.RaiseDispute(ctx, task.ID); !domain.IsInvalidState(err) {
		t.Fatalf("dispute on pending task: got %v", err)
	}

	task, _ = svc.Assign(ctx, task.ID, agent.ID)
	svc.RecordPayment(ctx, task.ID, "0xproof", domain.PaymentStatusVerified)
	store.Tasks().ClaimForDispatch(ctx, task.ID)
	svc.Complete(ctx, task.ID, "done")

	got, err := svc.RaiseDispute(ctx, task.ID)
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}
	if got.DisputeStatus != domain.DisputeRaised {
		t.Fatalf("dispute marker = %s, want RAISED", got.DisputeStatus)
	}

	if _, err := svc.RaiseDispute(ctx, task.ID); !errors.Is(err, domain.ErrDisputeExists) {
		t.Fatalf("second dispute: got %v", err)
	}
}

// mustDispatch walks a fresh task to PROCESSING.
func mustDispatch(t *testing.T, svc *TaskService, store *adapters.MemoryStore, agent *domain.Agent) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task, err := svc.Create(ctx, "0xpayer", "work", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Assign(ctx, task.ID, agent.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, task.ID, fmt.Sprintf("0xproof-%s", task.ID), domain.PaymentStatusVerified); err != nil {
		t.Fatalf("pay: %v", err)
	}
	claimed, err := store.Tasks().ClaimForDispatch(ctx, task.ID)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}
	return task
}
