package domain

import (
	"context"

	"github.com/holiman/uint256"
)

// AgentRepository persists agent records. Stake mutations are expressed as
// storage-level read-modify-write operations keyed by agent id so two
// concurrent slashes never lose a decrement.
type AgentRepository interface {
	Create(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id string) (*Agent, error)
	GetByWallet(ctx context.Context, wallet string) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	Update(ctx context.Context, agent *Agent) error

	// ApplySlash atomically adds penalty to the slashed amount and
	// re-derives the active flag. Returns the post-slash record.
	ApplySlash(ctx context.Context, id string, penalty *uint256.Int) (*Agent, error)

	// AddStake atomically adds amount to the staked amount and re-derives
	// the active flag.
	AddStake(ctx context.Context, id string, amount *uint256.Int) (*Agent, error)

	// SetStake overwrites the staked amount (chain sync) and re-derives
	// the active flag.
	SetStake(ctx context.Context, id string, staked *uint256.Int) (*Agent, error)

	// AdjustReputation atomically applies delta clamped to [0,100].
	AdjustReputation(ctx context.Context, id string, delta int) (*Agent, error)
}

// TaskRepository is the single source of truth for task state.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	GetByPaymentTxHash(ctx context.Context, txHash string) (*Task, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*Task, error)
	Update(ctx context.Context, task *Task) error

	// ListDispatchable returns up to limit tasks eligible for dispatch:
	// pre-processing status, VERIFIED payment, agent assigned.
	ListDispatchable(ctx context.Context, limit int) ([]*Task, error)

	// ClaimForDispatch flips an eligible task to PROCESSING. The write is
	// conditional on the task still being eligible, so of two concurrent
	// claimers exactly one wins. Returns false when the claim lost.
	ClaimForDispatch(ctx context.Context, id string) (bool, error)
}

// FeedbackRepository is an append-only review log.
type FeedbackRepository interface {
	Append(ctx context.Context, fb *Feedback) error
	ListByAgent(ctx context.Context, agentID string) ([]*Feedback, error)
}

// DisputeRepository persists disputes and their votes. AddVote enforces the
// (dispute, validator) uniqueness constraint; Resolve is a compare-and-swap
// so a dispute resolves exactly once.
type DisputeRepository interface {
	Create(ctx context.Context, d *Dispute) error
	Get(ctx context.Context, id string) (*Dispute, error)
	GetByTask(ctx context.Context, taskID string) (*Dispute, error)
	ListOpen(ctx context.Context) ([]*Dispute, error)

	// AddVote records a vote, returning ErrDuplicateVote when this
	// validator already voted on this dispute. Also moves a PENDING
	// dispute to VOTING.
	AddVote(ctx context.Context, vote *DisputeVote) error
	CountVotes(ctx context.Context, disputeID string) (VoteCounts, error)
	ListVotes(ctx context.Context, disputeID string) ([]*DisputeVote, error)

	// Resolve moves an unresolved dispute to the verdict. Returns false
	// when the dispute was already resolved (the caller lost the race).
	Resolve(ctx context.Context, disputeID string, verdict DisputeStatus) (bool, error)
}

// VerifyRequest describes one payment credential to verify against the
// facilitator before a task may advance.
type VerifyRequest struct {
	Resource     string
	Method       string
	Credential   string
	PayTo        string
	Network      string
	PriceAmount  *uint256.Int
	AssetAddress string
}

// VerifyResult is the facilitator's synchronous answer.
type VerifyResult struct {
	Settled       bool
	Payer         string
	SettlementRef string
}

// PaymentVerifier is the payment facilitator boundary. The core consumes a
// synchronous verified/failed result; the payment protocol's cryptography
// lives entirely behind this interface.
type PaymentVerifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	// CheckSettled reports whether proof references a real settled payment.
	CheckSettled(ctx context.Context, proof string) (bool, error)
}

// Judge is the external oracle deciding whether a negative review justifies
// slashing the agent's stake.
type Judge interface {
	Judge(ctx context.Context, comment string, score int) (bool, error)
}

// ChainMirror mirrors slashing decisions on-chain and reads stake balances.
// Mirroring is best-effort: the local ledger stays authoritative.
type ChainMirror interface {
	MirrorSlash(ctx context.Context, wallet string, amount *uint256.Int) error
	StakeOf(ctx context.Context, wallet string) (*uint256.Int, error)
}
