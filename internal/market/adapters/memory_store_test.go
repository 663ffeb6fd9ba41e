package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"agora/internal/market/domain"
)

func wei(tenths uint64) *uint256.Int {
	unit := uint256.NewInt(100_000_000_000_000_000)
	return new(uint256.Int).Mul(unit, uint256.NewInt(tenths))
}

func seedAgent(t *testing.T, store *MemoryStore) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{
		ID:              "agent-1",
		WalletAddress:   "0xAbC123",
		Name:            "summarizer",
		Endpoint:        "http://agent.example/webhook",
		PricePerRequest: wei(1),
		StakedAmount:    wei(10),
		SlashedAmount:   uint256.NewInt(0),
		MinimumStake:    wei(5),
		Active:          true,
		ReputationScore: domain.DefaultReputationScore,
		CreatedAt:       time.Now(),
	}
	if err := store.Agents().Create(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

func seedDispatchableTask(t *testing.T, store *MemoryStore, id string) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:              id,
		RequesterID:     "0xpayer",
		Description:     "summarize this",
		Status:          domain.TaskStatusPaid,
		SelectedAgentID: "agent-1",
		PaymentTxHash:   "0xhash-" + id,
		PaymentStatus:   domain.PaymentStatusVerified,
		DisputeStatus:   domain.DisputeNone,
		CreatedAt:       time.Now(),
	}
	if err := store.Tasks().Create(context.Background(), task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestAgentWalletUniqueness(t *testing.T) {
	store := NewMemoryStore()
	seedAgent(t, store)

	dup := &domain.Agent{ID: "agent-2", WalletAddress: "0xABC123", Name: "copycat"}
	err := store.Agents().Create(context.Background(), dup)
	if !errors.Is(err, domain.ErrAgentExists) {
		t.Fatalf("expected ErrAgentExists for same wallet in different case, got %v", err)
	}
}

func TestConcurrentSlashesLoseNothing(t *testing.T) {
	store := NewMemoryStore()
	agent := seedAgent(t, store)
	repo := store.Agents()

	// Two 0.1 unit slashes land concurrently; both decrements must survive.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ApplySlash(context.Background(), agent.ID, wei(1)); err != nil {
				t.Errorf("apply slash: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.Get(context.Background(), agent.ID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if !got.SlashedAmount.Eq(wei(2)) {
		t.Fatalf("slashed amount = %s, want %s", got.SlashedAmount.Dec(), wei(2).Dec())
	}
	if !got.Active {
		t.Fatal("0.8 remaining against 0.5 minimum should still be active")
	}
}

func TestSlashBelowMinimumDeactivates(t *testing.T) {
	store := NewMemoryStore()
	agent := seedAgent(t, store)
	repo := store.Agents()

	got, err := repo.ApplySlash(context.Background(), agent.ID, wei(6))
	if err != nil {
		t.Fatalf("apply slash: %v", err)
	}
	if got.Active {
		t.Fatal("0.4 remaining against 0.5 minimum should deactivate")
	}
}

func TestAdjustReputationClamps(t *testing.T) {
	store := NewMemoryStore()
	agent := seedAgent(t, store)
	repo := store.Agents()

	for i := 0; i < 20; i++ {
		if _, err := repo.AdjustReputation(context.Background(), agent.ID, -10); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	got, _ := repo.Get(context.Background(), agent.ID)
	if got.ReputationScore != 0 {
		t.Fatalf("score = %d, want clamp at 0", got.ReputationScore)
	}

	for i := 0; i < 50; i++ {
		if _, err := repo.AdjustReputation(context.Background(), agent.ID, 5); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	got, _ = repo.Get(context.Background(), agent.ID)
	if got.ReputationScore != 100 {
		t.Fatalf("score = %d, want clamp at 100", got.ReputationScore)
	}
}

func TestListDispatchableFilters(t *testing.T) {
	store := NewMemoryStore()
	seedAgent(t, store)
	ctx := context.Background()

	seedDispatchableTask(t, store, "eligible")

	unpaid := &domain.Task{
		ID:              "unpaid",
		RequesterID:     "0xpayer",
		Description:     "no verified payment",
		Status:          domain.TaskStatusAssigned,
		SelectedAgentID: "agent-1",
		PaymentStatus:   domain.PaymentStatusPending,
		DisputeStatus:   domain.DisputeNone,
		CreatedAt:       time.Now(),
	}
	unassigned := &domain.Task{
		ID:            "unassigned",
		RequesterID:   "0xpayer",
		Description:   "nobody picked",
		Status:        domain.TaskStatusPending,
		PaymentStatus: domain.PaymentStatusVerified,
		DisputeStatus: domain.DisputeNone,
		CreatedAt:     time.Now(),
	}
	processing := &domain.Task{
		ID:              "processing",
		RequesterID:     "0xpayer",
		Description:     "already running",
		Status:          domain.TaskStatusProcessing,
		SelectedAgentID: "agent-1",
		PaymentStatus:   domain.PaymentStatusVerified,
		DisputeStatus:   domain.DisputeNone,
		CreatedAt:       time.Now(),
	}
	for _, task := range []*domain.Task{unpaid, unassigned, processing} {
		if err := store.Tasks().Create(ctx, task); err != nil {
			t.Fatalf("create %s: %v", task.ID, err)
		}
	}

	batch, err := store.Tasks().ListDispatchable(ctx, 10)
	if err != nil {
		t.Fatalf("list dispatchable: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != "eligible" {
		t.Fatalf("expected only the eligible task, got %d tasks", len(batch))
	}
}

func TestClaimForDispatchFirstWriterWins(t *testing.T) {
	store := NewMemoryStore()
	seedAgent(t, store)
	task := seedDispatchableTask(t, store, "contested")
	repo := store.Tasks()

	const claimers = 8
	wins := make(chan bool, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.ClaimForDispatch(context.Background(), task.ID)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", winners)
	}

	got, _ := repo.Get(context.Background(), task.ID)
	if got.Status != domain.TaskStatusProcessing {
		t.Fatalf("claimed task status = %s, want PROCESSING", got.Status)
	}
}

func TestGetByPaymentTxHash(t *testing.T) {
	store := NewMemoryStore()
	seedAgent(t, store)
	task := seedDispatchableTask(t, store, "lookup")

	got, err := store.Tasks().GetByPaymentTxHash(context.Background(), task.PaymentTxHash)
	if err != nil {
		t.Fatalf("get by tx hash: %v", err)
	}
	if got.ID != task.ID {
		t.Fatalf("got task %s, want %s", got.ID, task.ID)
	}

	if _, err := store.Tasks().GetByPaymentTxHash(context.Background(), "0xmissing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown hash, got %v", err)
	}
}

func seedDispute(t *testing.T, store *MemoryStore) *domain.Dispute {
	t.Helper()
	d := &domain.Dispute{
		ID:        "dispute-1",
		TaskID:    "task-1",
		RaisedBy:  "0xpayer",
		Reason:    "result was empty",
		Status:    domain.DisputeStatusPending,
		CreatedAt: time.Now(),
	}
	if err := store.Disputes().Create(context.Background(), d); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	return d
}

func TestAddVoteRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	d := seedDispute(t, store)
	repo := store.Disputes()
	ctx := context.Background()

	vote := &domain.DisputeVote{DisputeID: d.ID, Validator: "0xval1", ApproveRefund: true, VotedAt: time.Now()}
	if err := repo.AddVote(ctx, vote); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	err := repo.AddVote(ctx, &domain.DisputeVote{DisputeID: d.ID, Validator: "0xval1", ApproveRefund: false, VotedAt: time.Now()})
	if !errors.Is(err, domain.ErrDuplicateVote) {
		t.Fatalf("expected ErrDuplicateVote, got %v", err)
	}

	counts, err := repo.CountVotes(ctx, d.ID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if counts.Refund != 1 || counts.Release != 0 {
		t.Fatalf("counts = %+v, want exactly one refund vote", counts)
	}
}

func TestConcurrentIdenticalVotesOnePersisted(t *testing.T) {
	store := NewMemoryStore()
	d := seedDispute(t, store)
	repo := store.Disputes()

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.AddVote(context.Background(), &domain.DisputeVote{
				DisputeID:     d.ID,
				Validator:     "0xval1",
				ApproveRefund: true,
				VotedAt:       time.Now(),
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrDuplicateVote) {
			t.Fatalf("unexpected vote error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one vote to land, got %d", succeeded)
	}
}

func TestFirstVoteMovesDisputeToVoting(t *testing.T) {
	store := NewMemoryStore()
	d := seedDispute(t, store)
	repo := store.Disputes()
	ctx := context.Background()

	if err := repo.AddVote(ctx, &domain.DisputeVote{DisputeID: d.ID, Validator: "0xval1", ApproveRefund: true, VotedAt: time.Now()}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	got, _ := repo.Get(ctx, d.ID)
	if got.Status != domain.DisputeStatusVoting {
		t.Fatalf("status = %s, want VOTING", got.Status)
	}
}

func TestResolveIsExactlyOnce(t *testing.T) {
	store := NewMemoryStore()
	d := seedDispute(t, store)
	repo := store.Disputes()

	var wg sync.WaitGroup
	wins := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.Resolve(context.Background(), d.ID, domain.DisputeStatusResolvedRefund)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning resolve, got %d", winners)
	}
}

func TestVoteAfterResolutionRejected(t *testing.T) {
	store := NewMemoryStore()
	d := seedDispute(t, store)
	repo := store.Disputes()
	ctx := context.Background()

	if _, err := repo.Resolve(ctx, d.ID, domain.DisputeStatusResolvedRelease); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	err := repo.AddVote(ctx, &domain.DisputeVote{DisputeID: d.ID, Validator: "0xval9", ApproveRefund: true, VotedAt: time.Now()})
	if !errors.Is(err, domain.ErrDisputeResolved) {
		t.Fatalf("expected ErrDisputeResolved, got %v", err)
	}
}
