package domain

import (
	"time"
)

// TaskStatus is the primary lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusPaid       TaskStatus = "PAID"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusReviewed   TaskStatus = "REVIEWED"
)

// PaymentStatus tracks the payment verification outcome recorded on a task.
type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "NONE"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusVerified PaymentStatus = "VERIFIED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

// DisputeMarker is the dispute side-channel attached to a task. It moves
// independently of the primary status once the task is COMPLETED or later.
type DisputeMarker string

const (
	DisputeNone            DisputeMarker = "NONE"
	DisputeRaised          DisputeMarker = "RAISED"
	DisputeResolvedRefund  DisputeMarker = "RESOLVED_REFUND"
	DisputeResolvedRelease DisputeMarker = "RESOLVED_RELEASE"
)

// Task is one paid request moving through the marketplace. Tasks are never
// deleted; every terminal state stays queryable as an audit trail.
type Task struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	Description string     `json:"description"`
	ServiceType string     `json:"service_type,omitempty"`
	Status      TaskStatus `json:"status"`

	// SelectedAgentID is a weak reference: the task outlives agent deactivation.
	SelectedAgentID string `json:"selected_agent_id,omitempty"`

	PaymentTxHash string        `json:"payment_tx_hash,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	Result        string        `json:"result,omitempty"`
	ReviewScore   *int          `json:"review_score,omitempty"`
	ReviewComment string        `json:"review_comment,omitempty"`
	DisputeStatus DisputeMarker `json:"dispute_status"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// taskTransitions holds the legal primary-status edges. COMPLETED→COMPLETED
// covers at-least-once delivery from the dispatcher: a redelivered completion
// overwrites the result rather than corrupting state.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusAssigned},
	TaskStatusAssigned:   {TaskStatusAssigned, TaskStatusPaid},
	TaskStatusPaid:       {TaskStatusProcessing},
	TaskStatusProcessing: {TaskStatusCompleted, TaskStatusFailed},
	TaskStatusCompleted:  {TaskStatusCompleted, TaskStatusReviewed},
}

// CanTransition reports whether moving from → to is a legal lifecycle edge.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
