package domain

import "time"

// DisputeStatus is the lifecycle state of a dispute. Resolution is terminal.
type DisputeStatus string

const (
	DisputeStatusPending         DisputeStatus = "PENDING"
	DisputeStatusVoting          DisputeStatus = "VOTING"
	DisputeStatusResolvedRefund  DisputeStatus = "RESOLVED_REFUND"
	DisputeStatusResolvedRelease DisputeStatus = "RESOLVED_RELEASE"
)

// Resolved reports whether s is a terminal verdict.
func (s DisputeStatus) Resolved() bool {
	return s == DisputeStatusResolvedRefund || s == DisputeStatusResolvedRelease
}

// Dispute lets a task's payer contest an outcome. One dispute exists per task.
type Dispute struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"task_id"`
	RaisedBy   string        `json:"raised_by"`
	Reason     string        `json:"reason"`
	Status     DisputeStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

// DisputeVote is one validator's verdict. At most one vote exists per
// (dispute, validator) pair; the pair is a storage-level uniqueness
// constraint, not an application convention.
type DisputeVote struct {
	DisputeID     string    `json:"dispute_id"`
	Validator     string    `json:"validator"`
	ApproveRefund bool      `json:"approve_refund"`
	Comment       string    `json:"comment,omitempty"`
	VotedAt       time.Time `json:"voted_at"`
}

// VoteCounts is the tally of recorded votes for a dispute.
type VoteCounts struct {
	Refund  int
	Release int
}
