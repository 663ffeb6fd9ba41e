package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agora/internal/logging"
	"agora/internal/market/domain"
	"agora/internal/observability"
)

// QuorumVotes is how many same-verdict validator votes resolve a dispute.
const QuorumVotes = 2

// DisputeService runs the validator voting flow. A dispute resolves exactly
// once: the terminal write is a compare-and-swap at the storage layer, so of
// two votes that both reach quorum concurrently only one applies the verdict.
type DisputeService struct {
	disputes domain.DisputeRepository
	tasks    *TaskService

	quorum  int
	metrics *observability.MetricsCollector
	logger  logging.Logger
}

// NewDisputeService creates a DisputeService. quorum <= 0 selects the
// default threshold.
func NewDisputeService(disputes domain.DisputeRepository, tasks *TaskService, quorum int, metrics *observability.MetricsCollector, logger logging.Logger) *DisputeService {
	if quorum <= 0 {
		quorum = QuorumVotes
	}
	return &DisputeService{
		disputes: disputes,
		tasks:    tasks,
		quorum:   quorum,
		metrics:  metrics,
		logger:   logging.OrNop(logger),
	}
}

// Create opens a dispute on a completed task and flips the task's dispute
// marker to RAISED. One dispute per task.
func (s *DisputeService) Create(ctx context.Context, taskID, raisedBy, reason string) (*domain.Dispute, error) {
	if strings.TrimSpace(raisedBy) == "" {
		return nil, domain.NewInvalidInput("raisedBy", "required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewInvalidInput("reason", "required")
	}

	task, err := s.tasks.RaiseDispute(ctx, taskID)
	if err != nil {
		return nil, err
	}

	d := &domain.Dispute{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		RaisedBy:  raisedBy,
		Reason:    reason,
		Status:    domain.DisputeStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		// Put the marker back so a retry is possible; a task stuck at
		// RAISED with no dispute record behind it can never be contested.
		if rbErr := s.tasks.setDisputeOutcome(ctx, task.ID, domain.DisputeNone); rbErr != nil {
			s.logger.Error("roll back dispute marker on task %s: %v", task.ID, rbErr)
		}
		return nil, fmt.Errorf("create dispute: %w", err)
	}
	s.logger.Info("dispute %s opened on task %s by %s", d.ID, task.ID, raisedBy)
	if s.metrics != nil {
		s.metrics.DisputeOpened(ctx)
	}
	return d, nil
}

// Get returns a dispute with its recorded votes.
func (s *DisputeService) Get(ctx context.Context, disputeID string) (*domain.Dispute, []*domain.DisputeVote, error) {
	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	votes, err := s.disputes.ListVotes(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	return d, votes, nil
}

// GetByTask returns the dispute attached to a task, if any.
func (s *DisputeService) GetByTask(ctx context.Context, taskID string) (*domain.Dispute, error) {
	return s.disputes.GetByTask(ctx, taskID)
}

// ListOpen returns disputes still awaiting quorum.
func (s *DisputeService) ListOpen(ctx context.Context) ([]*domain.Dispute, error) {
	return s.disputes.ListOpen(ctx)
}

// SubmitVote records one validator's verdict and evaluates quorum. Each
// validator votes at most once per dispute; the uniqueness lives in the
// store, not here, so concurrent duplicates cannot both land. Votes against
// a resolved dispute are rejected, resolution never re-opens.
func (s *DisputeService) SubmitVote(ctx context.Context, disputeID, validator string, approveRefund bool, comment string) (*domain.Dispute, error) {
	if strings.TrimSpace(validator) == "" {
		return nil, domain.NewInvalidInput("validator", "required")
	}

	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Resolved() {
		return nil, domain.ErrDisputeResolved
	}

	vote := &domain.DisputeVote{
		DisputeID:     d.ID,
		Validator:     validator,
		ApproveRefund: approveRefund,
		Comment:       comment,
		VotedAt:       time.Now(),
	}
	if err := s.disputes.AddVote(ctx, vote); err != nil {
		return nil, err
	}

	counts, err := s.disputes.CountVotes(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("count votes for dispute %s: %w", d.ID, err)
	}

	var verdict domain.DisputeStatus
	switch {
	case counts.Refund >= s.quorum:
		verdict = domain.DisputeStatusResolvedRefund
	case counts.Release >= s.quorum:
		verdict = domain.DisputeStatusResolvedRelease
	default:
		return s.disputes.Get(ctx, d.ID)
	}

	won, err := s.disputes.Resolve(ctx, d.ID, verdict)
	if err != nil {
		return nil, fmt.Errorf("resolve dispute %s: %w", d.ID, err)
	}
	if won {
		s.applyVerdict(ctx, d, verdict)
	}
	return s.disputes.Get(ctx, d.ID)
}

// applyVerdict runs the side effects of a won resolution: the task's dispute
// marker and the metrics. Only the caller whose compare-and-swap landed gets
// here, so these run once per dispute.
func (s *DisputeService) applyVerdict(ctx context.Context, d *domain.Dispute, verdict domain.DisputeStatus) {
	marker := domain.DisputeResolvedRelease
	if verdict == domain.DisputeStatusResolvedRefund {
		marker = domain.DisputeResolvedRefund
	}
	if err := s.tasks.setDisputeOutcome(ctx, d.TaskID, marker); err != nil {
		s.logger.Error("mark task %s with dispute verdict %s: %v", d.TaskID, verdict, err)
	}

	s.logger.Info("dispute %s resolved %s (task %s)", d.ID, verdict, d.TaskID)
	if s.metrics != nil {
		s.metrics.DisputeResolved(ctx, string(verdict))
	}
}
