package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agora/internal/market/domain"
)

// pgUniqueViolation is the Postgres error code for unique-constraint hits.
const pgUniqueViolation = "23505"

// PostgresStore wires pgx-backed repositories over one connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and initializes the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS agents (
  id TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  endpoint TEXT NOT NULL DEFAULT '',
  price_per_request NUMERIC(78,0) NOT NULL DEFAULT 0,
  staked_amount NUMERIC(78,0) NOT NULL DEFAULT 0,
  slashed_amount NUMERIC(78,0) NOT NULL DEFAULT 0,
  minimum_stake NUMERIC(78,0) NOT NULL DEFAULT 0,
  active BOOLEAN NOT NULL DEFAULT FALSE,
  reputation_score INT NOT NULL DEFAULT 50,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS agents_wallet_idx ON agents (LOWER(wallet_address));

CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  requester_id TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  service_type TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  selected_agent_id TEXT NOT NULL DEFAULT '',
  payment_tx_hash TEXT NOT NULL DEFAULT '',
  payment_status TEXT NOT NULL,
  result TEXT NOT NULL DEFAULT '',
  review_score INT,
  review_comment TEXT NOT NULL DEFAULT '',
  dispute_status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_requester_idx ON tasks (requester_id);
CREATE INDEX IF NOT EXISTS tasks_dispatch_idx ON tasks (status, payment_status);
CREATE INDEX IF NOT EXISTS tasks_tx_hash_idx ON tasks (payment_tx_hash) WHERE payment_tx_hash <> '';

CREATE TABLE IF NOT EXISTS feedback (
  id TEXT PRIMARY KEY,
  agent_id TEXT NOT NULL,
  reviewer TEXT NOT NULL,
  score INT NOT NULL,
  comment TEXT NOT NULL DEFAULT '',
  payment_proof TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS feedback_agent_idx ON feedback (agent_id);

CREATE TABLE IF NOT EXISTS disputes (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL UNIQUE,
  raised_by TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dispute_votes (
  dispute_id TEXT NOT NULL,
  validator TEXT NOT NULL,
  approve_refund BOOLEAN NOT NULL,
  comment TEXT NOT NULL DEFAULT '',
  voted_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (dispute_id, validator)
);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Agents returns the AgentRepository view of the store.
func (s *PostgresStore) Agents() domain.AgentRepository { return &pgAgentRepo{pool: s.pool} }

// Tasks returns the TaskRepository view of the store.
func (s *PostgresStore) Tasks() domain.TaskRepository { return &pgTaskRepo{pool: s.pool} }

// Feedback returns the FeedbackRepository view of the store.
func (s *PostgresStore) Feedback() domain.FeedbackRepository { return &pgFeedbackRepo{pool: s.pool} }

// Disputes returns the DisputeRepository view of the store.
func (s *PostgresStore) Disputes() domain.DisputeRepository { return &pgDisputeRepo{pool: s.pool} }

// --- AgentRepository ---

type pgAgentRepo struct {
	pool *pgxpool.Pool
}

const agentColumns = `id, wallet_address, name, endpoint, price_per_request::text, staked_amount::text, slashed_amount::text, minimum_stake::text, active, reputation_score, created_at, updated_at`

func (r *pgAgentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	query := `
INSERT INTO agents (id, wallet_address, name, endpoint, price_per_request, staked_amount, slashed_amount, minimum_stake, active, reputation_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $11)
`
	_, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.WalletAddress,
		agent.Name,
		agent.Endpoint,
		decOrZero(agent.PricePerRequest),
		decOrZero(agent.StakedAmount),
		decOrZero(agent.SlashedAmount),
		decOrZero(agent.MinimumStake),
		agent.Active,
		agent.ReputationScore,
		agent.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrAgentExists
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (r *pgAgentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return r.scanOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
}

func (r *pgAgentRepo) GetByWallet(ctx context.Context, wallet string) (*domain.Agent, error) {
	return r.scanOne(ctx, `SELECT `+agentColumns+` FROM agents WHERE LOWER(wallet_address) = LOWER($1)`, wallet)
}

func (r *pgAgentRepo) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (r *pgAgentRepo) Update(ctx context.Context, agent *domain.Agent) error {
	query := `
UPDATE agents
SET name = $2,
    endpoint = $3,
    price_per_request = $4::numeric,
    staked_amount = $5::numeric,
    slashed_amount = $6::numeric,
    minimum_stake = $7::numeric,
    active = $8,
    reputation_score = $9,
    updated_at = now()
WHERE id = $1
`
	tag, err := r.pool.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Endpoint,
		decOrZero(agent.PricePerRequest),
		decOrZero(agent.StakedAmount),
		decOrZero(agent.SlashedAmount),
		decOrZero(agent.MinimumStake),
		agent.Active,
		agent.ReputationScore,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplySlash adds the penalty inside a single UPDATE so two concurrent
// slashes on the same agent both land; the active flag is re-derived from
// the stake invariant in the same statement.
func (r *pgAgentRepo) ApplySlash(ctx context.Context, id string, penalty *uint256.Int) (*domain.Agent, error) {
	query := `
UPDATE agents
SET slashed_amount = slashed_amount + $2::numeric,
    active = (staked_amount - (slashed_amount + $2::numeric)) >= minimum_stake,
    updated_at = now()
WHERE id = $1
RETURNING ` + agentColumns
	return r.scanOne(ctx, query, id, penalty.Dec())
}

func (r *pgAgentRepo) AddStake(ctx context.Context, id string, amount *uint256.Int) (*domain.Agent, error) {
	query := `
UPDATE agents
SET staked_amount = staked_amount + $2::numeric,
    active = ((staked_amount + $2::numeric) - slashed_amount) >= minimum_stake,
    updated_at = now()
WHERE id = $1
RETURNING ` + agentColumns
	return r.scanOne(ctx, query, id, amount.Dec())
}

func (r *pgAgentRepo) SetStake(ctx context.Context, id string, staked *uint256.Int) (*domain.Agent, error) {
	query := `
UPDATE agents
SET staked_amount = $2::numeric,
    active = ($2::numeric - slashed_amount) >= minimum_stake,
    updated_at = now()
WHERE id = $1
RETURNING ` + agentColumns
	return r.scanOne(ctx, query, id, staked.Dec())
}

func (r *pgAgentRepo) AdjustReputation(ctx context.Context, id string, delta int) (*domain.Agent, error) {
	query := `
UPDATE agents
SET reputation_score = LEAST(100, GREATEST(0, reputation_score + $2)),
    updated_at = now()
WHERE id = $1
RETURNING ` + agentColumns
	return r.scanOne(ctx, query, id, delta)
}

func (r *pgAgentRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Agent, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return agent, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var agent domain.Agent
	var price, staked, slashed, minimum string
	err := row.Scan(
		&agent.ID,
		&agent.WalletAddress,
		&agent.Name,
		&agent.Endpoint,
		&price,
		&staked,
		&slashed,
		&minimum,
		&agent.Active,
		&agent.ReputationScore,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if agent.PricePerRequest, err = uint256.FromDecimal(price); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	if agent.StakedAmount, err = uint256.FromDecimal(staked); err != nil {
		return nil, fmt.Errorf("decode staked amount: %w", err)
	}
	if agent.SlashedAmount, err = uint256.FromDecimal(slashed); err != nil {
		return nil, fmt.Errorf("decode slashed amount: %w", err)
	}
	if agent.MinimumStake, err = uint256.FromDecimal(minimum); err != nil {
		return nil, fmt.Errorf("decode minimum stake: %w", err)
	}
	return &agent, nil
}

func decOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// --- TaskRepository ---

type pgTaskRepo struct {
	pool *pgxpool.Pool
}

const taskColumns = `id, requester_id, description, service_type, status, selected_agent_id, payment_tx_hash, payment_status, result, review_score, review_comment, dispute_status, created_at, completed_at`

func (r *pgTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	query := `
INSERT INTO tasks (id, requester_id, description, service_type, status, selected_agent_id, payment_tx_hash, payment_status, result, review_score, review_comment, dispute_status, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.RequesterID,
		task.Description,
		task.ServiceType,
		string(task.Status),
		task.SelectedAgentID,
		task.PaymentTxHash,
		string(task.PaymentStatus),
		task.Result,
		task.ReviewScore,
		task.ReviewComment,
		string(task.DisputeStatus),
		task.CreatedAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *pgTaskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	return r.scanOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
}

func (r *pgTaskRepo) GetByPaymentTxHash(ctx context.Context, txHash string) (*domain.Task, error) {
	return r.scanOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE payment_tx_hash = $1 ORDER BY created_at DESC LIMIT 1`, txHash)
}

func (r *pgTaskRepo) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE requester_id = $1 ORDER BY created_at DESC`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *pgTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	query := `
UPDATE tasks
SET status = $2,
    selected_agent_id = $3,
    payment_tx_hash = $4,
    payment_status = $5,
    result = $6,
    review_score = $7,
    review_comment = $8,
    dispute_status = $9,
    completed_at = $10
WHERE id = $1
`
	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		string(task.Status),
		task.SelectedAgentID,
		task.PaymentTxHash,
		string(task.PaymentStatus),
		task.Result,
		task.ReviewScore,
		task.ReviewComment,
		string(task.DisputeStatus),
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgTaskRepo) ListDispatchable(ctx context.Context, limit int) ([]*domain.Task, error) {
	query := `
SELECT ` + taskColumns + `
FROM tasks
WHERE status IN ('PENDING', 'ASSIGNED', 'PAID')
  AND payment_status = 'VERIFIED'
  AND selected_agent_id <> ''
ORDER BY created_at
LIMIT $1
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatchable tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ClaimForDispatch is the exclusive dispatch gate: the conditional UPDATE
// makes the PROCESSING transition first-writer-wins even across multiple
// dispatcher instances.
func (r *pgTaskRepo) ClaimForDispatch(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE tasks
SET status = 'PROCESSING'
WHERE id = $1
  AND status IN ('PENDING', 'ASSIGNED', 'PAID')
  AND payment_status = 'VERIFIED'
  AND selected_agent_id <> ''
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgTaskRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func collectTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var reviewScore sql.NullInt32
	var completedAt sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.RequesterID,
		&task.Description,
		&task.ServiceType,
		&task.Status,
		&task.SelectedAgentID,
		&task.PaymentTxHash,
		&task.PaymentStatus,
		&task.Result,
		&reviewScore,
		&task.ReviewComment,
		&task.DisputeStatus,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if reviewScore.Valid {
		score := int(reviewScore.Int32)
		task.ReviewScore = &score
	}
	if completedAt.Valid {
		at := completedAt.Time
		task.CompletedAt = &at
	}
	return &task, nil
}

// --- FeedbackRepository ---

type pgFeedbackRepo struct {
	pool *pgxpool.Pool
}

func (r *pgFeedbackRepo) Append(ctx context.Context, fb *domain.Feedback) error {
	query := `
INSERT INTO feedback (id, agent_id, reviewer, score, comment, payment_proof, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := r.pool.Exec(ctx, query,
		fb.ID,
		fb.AgentID,
		fb.Reviewer,
		fb.Score,
		fb.Comment,
		fb.PaymentProof,
		fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *pgFeedbackRepo) ListByAgent(ctx context.Context, agentID string) ([]*domain.Feedback, error) {
	query := `
SELECT id, agent_id, reviewer, score, comment, payment_proof, created_at
FROM feedback
WHERE agent_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var records []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.AgentID, &fb.Reviewer, &fb.Score, &fb.Comment, &fb.PaymentProof, &fb.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &fb)
	}
	return records, rows.Err()
}

// --- DisputeRepository ---

type pgDisputeRepo struct {
	pool *pgxpool.Pool
}

const disputeColumns = `id, task_id, raised_by, reason, status, created_at, resolved_at`

func (r *pgDisputeRepo) Create(ctx context.Context, d *domain.Dispute) error {
	query := `
INSERT INTO disputes (id, task_id, raised_by, reason, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := r.pool.Exec(ctx, query, d.ID, d.TaskID, d.RaisedBy, d.Reason, string(d.Status), d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDisputeExists
		}
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (r *pgDisputeRepo) Get(ctx context.Context, id string) (*domain.Dispute, error) {
	return r.scanOne(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
}

func (r *pgDisputeRepo) GetByTask(ctx context.Context, taskID string) (*domain.Dispute, error) {
	return r.scanOne(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE task_id = $1`, taskID)
}

func (r *pgDisputeRepo) ListOpen(ctx context.Context) ([]*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE status IN ('PENDING', 'VOTING') ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// AddVote leans on the (dispute_id, validator) primary key: two concurrent
// identical votes race on the INSERT and exactly one succeeds.
func (r *pgDisputeRepo) AddVote(ctx context.Context, vote *domain.DisputeVote) error {
	d, err := r.Get(ctx, vote.DisputeID)
	if err != nil {
		return err
	}
	if d.Status.Resolved() {
		return domain.ErrDisputeResolved
	}

	query := `
INSERT INTO dispute_votes (dispute_id, validator, approve_refund, comment, voted_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err = r.pool.Exec(ctx, query, vote.DisputeID, vote.Validator, vote.ApproveRefund, vote.Comment, vote.VotedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `UPDATE disputes SET status = 'VOTING' WHERE id = $1 AND status = 'PENDING'`, vote.DisputeID); err != nil {
		return fmt.Errorf("mark dispute voting: %w", err)
	}
	return nil
}

func (r *pgDisputeRepo) CountVotes(ctx context.Context, disputeID string) (domain.VoteCounts, error) {
	query := `
SELECT
  COUNT(*) FILTER (WHERE approve_refund),
  COUNT(*) FILTER (WHERE NOT approve_refund)
FROM dispute_votes
WHERE dispute_id = $1
`
	var counts domain.VoteCounts
	if err := r.pool.QueryRow(ctx, query, disputeID).Scan(&counts.Refund, &counts.Release); err != nil {
		return domain.VoteCounts{}, fmt.Errorf("count votes: %w", err)
	}
	return counts, nil
}

func (r *pgDisputeRepo) ListVotes(ctx context.Context, disputeID string) ([]*domain.DisputeVote, error) {
	query := `
SELECT dispute_id, validator, approve_refund, comment, voted_at
FROM dispute_votes
WHERE dispute_id = $1
ORDER BY voted_at
`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []*domain.DisputeVote
	for rows.Next() {
		var vote domain.DisputeVote
		if err := rows.Scan(&vote.DisputeID, &vote.Validator, &vote.ApproveRefund, &vote.Comment, &vote.VotedAt); err != nil {
			return nil, err
		}
		votes = append(votes, &vote)
	}
	return votes, rows.Err()
}

// Resolve is a compare-and-swap from an unresolved status; the losing caller
// of a resolution race sees false and must not re-apply side effects.
func (r *pgDisputeRepo) Resolve(ctx context.Context, disputeID string, verdict domain.DisputeStatus) (bool, error) {
	query := `
UPDATE disputes
SET status = $2, resolved_at = now()
WHERE id = $1 AND status IN ('PENDING', 'VOTING')
`
	tag, err := r.pool.Exec(ctx, query, disputeID, string(verdict))
	if err != nil {
		return false, fmt.Errorf("resolve dispute: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgDisputeRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func scanDispute(row rowScanner) (*domain.Dispute, error) {
	var d domain.Dispute
	var resolvedAt sql.NullTime
	err := row.Scan(&d.ID, &d.TaskID, &d.RaisedBy, &d.Reason, &d.Status, &d.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		at := resolvedAt.Time
		d.ResolvedAt = &at
	}
	return &d, nil
}
