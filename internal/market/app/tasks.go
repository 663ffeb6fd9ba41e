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

// TaskService drives the task lifecycle state machine. Every transition is
// validated against the current persisted state; an illegal transition is
// surfaced, never coerced.
type TaskService struct {
	tasks  domain.TaskRepository
	agents domain.AgentRepository

	verifier domain.PaymentVerifier
	// strictVerification gates PAID on a facilitator settlement check of the
	// recorded transaction, on top of the caller-supplied status.
	strictVerification bool

	metrics *observability.MetricsCollector
	logger  logging.Logger
}

// TaskServiceOption customizes a TaskService.
type TaskServiceOption func(*TaskService)

// WithPaymentVerifier enables strict on-chain verification in RecordPayment.
func WithPaymentVerifier(verifier domain.PaymentVerifier, strict bool) TaskServiceOption {
	return func(s *TaskService) {
		s.verifier = verifier
		s.strictVerification = strict
	}
}

// WithTaskMetrics attaches the metrics collector.
func WithTaskMetrics(metrics *observability.MetricsCollector) TaskServiceOption {
	return func(s *TaskService) {
		s.metrics = metrics
	}
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks domain.TaskRepository, agents domain.AgentRepository, logger logging.Logger, opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		tasks:  tasks,
		agents: agents,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a new task in PENDING. No side effects beyond persistence.
func (s *TaskService) Create(ctx context.Context, requesterID, description, serviceType string) (*domain.Task, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, domain.NewInvalidInput("requesterId", "required")
	}
	if strings.TrimSpace(description) == "" {
		return nil, domain.NewInvalidInput("description", "required")
	}

	task := &domain.Task{
		ID:            uuid.NewString(),
		RequesterID:   requesterID,
		Description:   description,
		ServiceType:   serviceType,
		Status:        domain.TaskStatusPending,
		PaymentStatus: domain.PaymentStatusNone,
		DisputeStatus: domain.DisputeNone,
		CreatedAt:     time.Now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTaskCreated(ctx)
	}
	return task, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ListByRequester returns a requester's tasks, newest first.
func (s *TaskService) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Task, error) {
	return s.tasks.ListByRequester(ctx, requesterID)
}

// Assign selects an agent for a PENDING or ASSIGNED task. Re-assignment is
// only legal while no payment attempt has been recorded: once payment fields
// exist the gating cannot be bypassed by re-ordering calls.
func (s *TaskService) Assign(ctx context.Context, taskID, agentID string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.agents.Get(ctx, agentID); err != nil {
		return nil, err
	}

	if !domain.CanTransition(task.Status, domain.TaskStatusAssigned) || task.PaymentStatus != domain.PaymentStatusNone {
		return nil, domain.NewInvalidState(task.ID, task.Status, domain.TaskStatusAssigned)
	}

	task.Status = domain.TaskStatusAssigned
	task.SelectedAgentID = agentID
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}
	return task, nil
}

// RecordPayment records a payment attempt on an ASSIGNED task. Only the
// VERIFIED status advances the task to PAID; any other status is written for
// audit and the task stays where it is. With strict verification enabled the
// facilitator must also confirm the transaction settled, otherwise the task
// does not advance.
func (s *TaskService) RecordPayment(ctx context.Context, taskID, txHash string, status domain.PaymentStatus) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if status != domain.PaymentStatusVerified {
		task.PaymentTxHash = txHash
		task.PaymentStatus = status
		if err := s.tasks.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("record payment: %w", err)
		}
		return task, nil
	}

	if !domain.CanTransition(task.Status, domain.TaskStatusPaid) {
		return nil, domain.NewInvalidState(task.ID, task.Status, domain.TaskStatusPaid)
	}

	if s.strictVerification && s.verifier != nil {
		settled, err := s.verifier.CheckSettled(ctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("verify payment %s: %w", txHash, domain.ErrPaymentInvalid)
		}
		if !settled {
			return nil, domain.ErrPaymentInvalid
		}
	}

	task.Status = domain.TaskStatusPaid
	task.PaymentTxHash = txHash
	task.PaymentStatus = domain.PaymentStatusVerified
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return task, nil
}

// Complete records the agent's result. The dispatcher guarantees at-least-once
// delivery, so completion is idempotent: a redelivery overwrites the result
// and bumps completedAt (last-write-wins). Completing a FAILED or REVIEWED
// task is an illegal transition.
func (s *TaskService) Complete(ctx context.Context, taskID, result string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(task.Status, domain.TaskStatusCompleted) {
		return nil, domain.NewInvalidState(task.ID, task.Status, domain.TaskStatusCompleted)
	}

	now := time.Now()
	task.Status = domain.TaskStatusCompleted
	task.Result = result
	task.CompletedAt = &now
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return task, nil
}

// FailDispatch moves a PROCESSING task to FAILED and stores the failure
// reason in the result field so a user-facing layer can explain the stall.
// There is no automatic retry; recovery is out-of-band re-assignment.
func (s *TaskService) FailDispatch(ctx context.Context, taskID, reason string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(task.Status, domain.TaskStatusFailed) {
		return nil, domain.NewInvalidState(task.ID, task.Status, domain.TaskStatusFailed)
	}

	task.Status = domain.TaskStatusFailed
	task.Result = reason
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("fail task: %w", err)
	}
	return task, nil
}

// SubmitReview attaches a 1-5 review to a COMPLETED task and moves it to
// REVIEWED.
func (s *TaskService) SubmitReview(ctx context.Context, taskID string, score int, comment string) (*domain.Task, error) {
	if !domain.ValidReviewScore(score) {
		return nil, domain.NewInvalidInput("score", fmt.Sprintf("must be between %d and %d", domain.MinReviewScore, domain.MaxReviewScore))
	}

	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusCompleted {
		return nil, domain.NewInvalidState(task.ID, task.Status, domain.TaskStatusReviewed)
	}

	task.Status = domain.TaskStatusReviewed
	task.ReviewScore = &score
	task.ReviewComment = comment
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}
	return task, nil
}

// RaiseDispute flips the dispute side-channel from NONE to RAISED. Permitted
// only for tasks that reached COMPLETED or later.
func (s *TaskService) RaiseDispute(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.DisputeStatus != domain.DisputeNone {
		return nil, domain.ErrDisputeExists
	}
	switch task.Status {
	case domain.TaskStatusCompleted, domain.TaskStatusReviewed:
	default:
		return nil, domain.NewInvalidState(task.ID, task.Status, task.Status)
	}

	task.DisputeStatus = domain.DisputeRaised
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("raise dispute: %w", err)
	}
	return task, nil
}

// setDisputeOutcome writes the terminal dispute marker onto the task. Called
// by the dispute engine after quorum; the primary status is untouched.
func (s *TaskService) setDisputeOutcome(ctx context.Context, taskID string, marker domain.DisputeMarker) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.DisputeStatus = marker
	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("set dispute outcome: %w", err)
	}
	return nil
}

// UpdateDenormalizedReview writes the review score onto the task for UI
// convenience. Best-effort: failures are logged, never surfaced.
func (s *TaskService) UpdateDenormalizedReview(ctx context.Context, txHash string, score int) {
	task, err := s.tasks.GetByPaymentTxHash(ctx, txHash)
	if err != nil {
		s.logger.Debug("no task for payment proof %s, skipping review denormalization", txHash)
		return
	}
	task.ReviewScore = &score
	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.Warn("denormalize review score on task %s: %v", task.ID, err)
	}
}
