package domain

import "time"

// Feedback is one user review of an agent, tied to a settled payment.
// Records are append-only and never mutated after creation.
type Feedback struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Reviewer     string    `json:"reviewer"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment,omitempty"`
	PaymentProof string    `json:"payment_proof"`
	CreatedAt    time.Time `json:"created_at"`
}

// Review score bounds.
const (
	MinReviewScore = 1
	MaxReviewScore = 5
)

// LowScoreThreshold: reviews below this enter slash evaluation.
const LowScoreThreshold = 4

// reputationDeltas maps a review score to its bounded reputation adjustment.
// Deliberately non-linear: a bad review costs more than a good one earns.
var reputationDeltas = map[int]int{
	5: +5,
	4: +2,
	3: -2,
	2: -5,
	1: -10,
}

// ReputationDelta returns the score adjustment for a review score.
func ReputationDelta(score int) int {
	return reputationDeltas[score]
}

// ValidReviewScore reports whether score is in the accepted [1,5] range.
func ValidReviewScore(score int) bool {
	return score >= MinReviewScore && score <= MaxReviewScore
}
