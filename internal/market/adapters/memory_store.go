package adapters

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"agora/internal/market/domain"
)

// MemoryStore holds every marketplace record in memory. It backs tests and
// single-node development; the Postgres adapters are the production path.
// All uniqueness constraints the ports promise are enforced here under one
// mutex, so concurrent callers observe the same semantics as the database.
type MemoryStore struct {
	mu sync.RWMutex

	agents         map[string]*domain.Agent
	agentsByWallet map[string]string // wallet -> agent id

	tasks       map[string]*domain.Task
	tasksByHash map[string]string // payment tx hash -> task id

	feedback []*domain.Feedback

	disputes       map[string]*domain.Dispute
	disputesByTask map[string]string                         // task id -> dispute id
	votes          map[string]map[string]*domain.DisputeVote // dispute id -> validator -> vote
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:         make(map[string]*domain.Agent),
		agentsByWallet: make(map[string]string),
		tasks:          make(map[string]*domain.Task),
		tasksByHash:    make(map[string]string),
		disputes:       make(map[string]*domain.Dispute),
		disputesByTask: make(map[string]string),
		votes:          make(map[string]map[string]*domain.DisputeVote),
	}
}

// Agents returns the AgentRepository view of the store.
func (s *MemoryStore) Agents() domain.AgentRepository { return &memoryAgentRepo{s: s} }

// Tasks returns the TaskRepository view of the store.
func (s *MemoryStore) Tasks() domain.TaskRepository { return &memoryTaskRepo{s: s} }

// Feedback returns the FeedbackRepository view of the store.
func (s *MemoryStore) Feedback() domain.FeedbackRepository { return &memoryFeedbackRepo{s: s} }

// Disputes returns the DisputeRepository view of the store.
func (s *MemoryStore) Disputes() domain.DisputeRepository { return &memoryDisputeRepo{s: s} }

// --- AgentRepository ---

type memoryAgentRepo struct {
	s *MemoryStore
}

func (r *memoryAgentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wallet := strings.ToLower(agent.WalletAddress)
	if _, exists := r.s.agentsByWallet[wallet]; exists {
		return domain.ErrAgentExists
	}
	r.s.agents[agent.ID] = cloneAgent(agent)
	r.s.agentsByWallet[wallet] = agent.ID
	return nil
}

func (r *memoryAgentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agent, ok := r.s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAgent(agent), nil
}

func (r *memoryAgentRepo) GetByWallet(ctx context.Context, wallet string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.agentsByWallet[strings.ToLower(wallet)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAgent(r.s.agents[id]), nil
}

func (r *memoryAgentRepo) List(ctx context.Context) ([]*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agents := make([]*domain.Agent, 0, len(r.s.agents))
	for _, agent := range r.s.agents {
		agents = append(agents, cloneAgent(agent))
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

func (r *memoryAgentRepo) Update(ctx context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.agents[agent.ID]; !ok {
		return domain.ErrNotFound
	}
	updated := cloneAgent(agent)
	updated.UpdatedAt = time.Now()
	r.s.agents[agent.ID] = updated
	return nil
}

func (r *memoryAgentRepo) ApplySlash(ctx context.Context, id string, penalty *uint256.Int) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	agent, ok := r.s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	agent.SlashedAmount = new(uint256.Int).Add(agent.SlashedAmount, penalty)
	agent.RecomputeActive()
	agent.UpdatedAt = time.Now()
	return cloneAgent(agent), nil
}

func (r *memoryAgentRepo) AddStake(ctx context.Context, id string, amount *uint256.Int) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	agent, ok := r.s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	agent.StakedAmount = new(uint256.Int).Add(agent.StakedAmount, amount)
	agent.RecomputeActive()
	agent.UpdatedAt = time.Now()
	return cloneAgent(agent), nil
}

func (r *memoryAgentRepo) SetStake(ctx context.Context, id string, staked *uint256.Int) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	agent, ok := r.s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	agent.StakedAmount = staked.Clone()
	agent.RecomputeActive()
	agent.UpdatedAt = time.Now()
	return cloneAgent(agent), nil
}

func (r *memoryAgentRepo) AdjustReputation(ctx context.Context, id string, delta int) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	agent, ok := r.s.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	agent.ReputationScore = domain.ClampReputation(agent.ReputationScore + delta)
	agent.UpdatedAt = time.Now()
	return cloneAgent(agent), nil
}

// --- TaskRepository ---

type memoryTaskRepo struct {
	s *MemoryStore
}

func (r *memoryTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.tasks[task.ID] = cloneTask(task)
	if task.PaymentTxHash != "" {
		r.s.tasksByHash[task.PaymentTxHash] = task.ID
	}
	return nil
}

func (r *memoryTaskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	task, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(task), nil
}

func (r *memoryTaskRepo) GetByPaymentTxHash(ctx context.Context, txHash string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.tasksByHash[txHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(r.s.tasks[id]), nil
}

func (r *memoryTaskRepo) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var tasks []*domain.Task
	for _, task := range r.s.tasks {
		if task.RequesterID == requesterID {
			tasks = append(tasks, cloneTask(task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *memoryTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[task.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.tasks[task.ID] = cloneTask(task)
	if task.PaymentTxHash != "" {
		r.s.tasksByHash[task.PaymentTxHash] = task.ID
	}
	return nil
}

func (r *memoryTaskRepo) ListDispatchable(ctx context.Context, limit int) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var tasks []*domain.Task
	for _, task := range r.s.tasks {
		if dispatchEligible(task) {
			tasks = append(tasks, cloneTask(task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *memoryTaskRepo) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	task, ok := r.s.tasks[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !dispatchEligible(task) {
		return false, nil
	}
	task.Status = domain.TaskStatusProcessing
	return true, nil
}

func dispatchEligible(task *domain.Task) bool {
	switch task.Status {
	case domain.TaskStatusPending, domain.TaskStatusAssigned, domain.TaskStatusPaid:
	default:
		return false
	}
	return task.PaymentStatus == domain.PaymentStatusVerified && task.SelectedAgentID != ""
}

// --- FeedbackRepository ---

type memoryFeedbackRepo struct {
	s *MemoryStore
}

func (r *memoryFeedbackRepo) Append(ctx context.Context, fb *domain.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	copied := *fb
	r.s.feedback = append(r.s.feedback, &copied)
	return nil
}

func (r *memoryFeedbackRepo) ListByAgent(ctx context.Context, agentID string) ([]*domain.Feedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var records []*domain.Feedback
	for _, fb := range r.s.feedback {
		if fb.AgentID == agentID {
			copied := *fb
			records = append(records, &copied)
		}
	}
	return records, nil
}

// --- DisputeRepository ---

type memoryDisputeRepo struct {
	s *MemoryStore
}

func (r *memoryDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.disputesByTask[d.TaskID]; exists {
		return domain.ErrDisputeExists
	}
	copied := *d
	r.s.disputes[d.ID] = &copied
	r.s.disputesByTask[d.TaskID] = d.ID
	r.s.votes[d.ID] = make(map[string]*domain.DisputeVote)
	return nil
}

func (r *memoryDisputeRepo) Get(ctx context.Context, id string) (*domain.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.disputes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memoryDisputeRepo) GetByTask(ctx context.Context, taskID string) (*domain.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.disputesByTask[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *r.s.disputes[id]
	return &copied, nil
}

func (r *memoryDisputeRepo) ListOpen(ctx context.Context) ([]*domain.Dispute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var open []*domain.Dispute
	for _, d := range r.s.disputes {
		if !d.Status.Resolved() {
			copied := *d
			open = append(open, &copied)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open, nil
}

func (r *memoryDisputeRepo) AddVote(ctx context.Context, vote *domain.DisputeVote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.disputes[vote.DisputeID]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status.Resolved() {
		return domain.ErrDisputeResolved
	}
	votes := r.s.votes[vote.DisputeID]
	if _, exists := votes[vote.Validator]; exists {
		return domain.ErrDuplicateVote
	}
	copied := *vote
	votes[vote.Validator] = &copied
	if d.Status == domain.DisputeStatusPending {
		d.Status = domain.DisputeStatusVoting
	}
	return nil
}

func (r *memoryDisputeRepo) CountVotes(ctx context.Context, disputeID string) (domain.VoteCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	votes, ok := r.s.votes[disputeID]
	if !ok {
		return domain.VoteCounts{}, domain.ErrNotFound
	}
	var counts domain.VoteCounts
	for _, vote := range votes {
		if vote.ApproveRefund {
			counts.Refund++
		} else {
			counts.Release++
		}
	}
	return counts, nil
}

func (r *memoryDisputeRepo) ListVotes(ctx context.Context, disputeID string) ([]*domain.DisputeVote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	votes, ok := r.s.votes[disputeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.DisputeVote, 0, len(votes))
	for _, vote := range votes {
		copied := *vote
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VotedAt.Before(out[j].VotedAt)
	})
	return out, nil
}

func (r *memoryDisputeRepo) Resolve(ctx context.Context, disputeID string, verdict domain.DisputeStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.disputes[disputeID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if d.Status.Resolved() {
		return false, nil
	}
	now := time.Now()
	d.Status = verdict
	d.ResolvedAt = &now
	return true, nil
}

// --- clone helpers ---

func cloneAgent(a *domain.Agent) *domain.Agent {
	copied := *a
	copied.PricePerRequest = cloneAmount(a.PricePerRequest)
	copied.StakedAmount = cloneAmount(a.StakedAmount)
	copied.SlashedAmount = cloneAmount(a.SlashedAmount)
	copied.MinimumStake = cloneAmount(a.MinimumStake)
	return &copied
}

func cloneTask(t *domain.Task) *domain.Task {
	copied := *t
	if t.ReviewScore != nil {
		score := *t.ReviewScore
		copied.ReviewScore = &score
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return v.Clone()
}
