package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"agora/internal/async"
	"agora/internal/errors"
	"agora/internal/logging"
	"agora/internal/market/domain"
	"agora/internal/observability"
)

const mirrorTimeout = 30 * time.Second

// ReputationService turns user reviews into bounded reputation adjustments
// and, for low scores, into stake slashes. The local ledger is authoritative;
// on-chain mirroring of a slash is best-effort and retried in the background.
type ReputationService struct {
	agents   domain.AgentRepository
	tasks    *TaskService
	feedback domain.FeedbackRepository

	verifier domain.PaymentVerifier
	judge    domain.Judge
	mirror   domain.ChainMirror
	penalty  *uint256.Int

	metrics *observability.MetricsCollector
	logger  logging.Logger
}

// ReputationServiceOption customizes a ReputationService.
type ReputationServiceOption func(*ReputationService)

// WithJudge attaches the external judgment service consulted before a slash.
func WithJudge(judge domain.Judge) ReputationServiceOption {
	return func(s *ReputationService) { s.judge = judge }
}

// WithChainMirror attaches the on-chain slash mirror.
func WithChainMirror(mirror domain.ChainMirror) ReputationServiceOption {
	return func(s *ReputationService) { s.mirror = mirror }
}

// WithReputationMetrics attaches the metrics collector.
func WithReputationMetrics(metrics *observability.MetricsCollector) ReputationServiceOption {
	return func(s *ReputationService) { s.metrics = metrics }
}

// NewReputationService creates a ReputationService. penalty is the fixed
// slash amount in the chain's smallest unit.
func NewReputationService(
	agents domain.AgentRepository,
	tasks *TaskService,
	feedback domain.FeedbackRepository,
	verifier domain.PaymentVerifier,
	penalty *uint256.Int,
	logger logging.Logger,
	opts ...ReputationServiceOption,
) *ReputationService {
	s := &ReputationService{
		agents:   agents,
		tasks:    tasks,
		feedback: feedback,
		verifier: verifier,
		penalty:  penalty,
		logger:   logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FeedbackRequest is one submitted review.
type FeedbackRequest struct {
	AgentID      string
	Reviewer     string
	Score        int
	Comment      string
	PaymentProof string
}

// FeedbackResult reports what a review did.
type FeedbackResult struct {
	Feedback   *domain.Feedback `json:"feedback"`
	NewScore   int              `json:"new_score"`
	Slashed    bool             `json:"slashed"`
	SlashBasis string           `json:"slash_basis,omitempty"`
}

// SubmitFeedback runs the full review pipeline: validate, verify the payment
// proof, persist the record, adjust reputation, and evaluate slashing for low
// scores. The reputation update and the slash are separate storage-level
// atomic operations; a mirroring failure never rolls either back.
func (s *ReputationService) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	if !domain.ValidReviewScore(req.Score) {
		return nil, domain.NewInvalidInput("score", fmt.Sprintf("must be between %d and %d", domain.MinReviewScore, domain.MaxReviewScore))
	}
	if strings.TrimSpace(req.PaymentProof) == "" {
		return nil, domain.NewInvalidInput("paymentProof", "required")
	}

	agent, err := s.agents.Get(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	if s.verifier != nil {
		settled, err := s.verifier.CheckSettled(ctx, req.PaymentProof)
		if err != nil || !settled {
			return nil, domain.ErrPaymentInvalid
		}
	}

	fb := &domain.Feedback{
		ID:           uuid.NewString(),
		AgentID:      agent.ID,
		Reviewer:     req.Reviewer,
		Score:        req.Score,
		Comment:      req.Comment,
		PaymentProof: req.PaymentProof,
		CreatedAt:    time.Now(),
	}
	if err := s.feedback.Append(ctx, fb); err != nil {
		return nil, fmt.Errorf("append feedback: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordFeedback(ctx, req.Score)
	}

	s.tasks.UpdateDenormalizedReview(ctx, req.PaymentProof, req.Score)

	updated, err := s.agents.AdjustReputation(ctx, agent.ID, domain.ReputationDelta(req.Score))
	if err != nil {
		return nil, fmt.Errorf("adjust reputation: %w", err)
	}

	result := &FeedbackResult{Feedback: fb, NewScore: updated.ReputationScore}
	if req.Score < domain.LowScoreThreshold {
		result.Slashed, result.SlashBasis = s.evaluateSlash(ctx, agent, req)
	}
	return result, nil
}

// History returns an agent's reviews, newest first.
func (s *ReputationService) History(ctx context.Context, agentID string) ([]*domain.Feedback, error) {
	return s.feedback.ListByAgent(ctx, agentID)
}

// evaluateSlash decides and applies a slash for a low review. An empty
// comment skips slashing entirely: a bad score with no justification cannot
// cost an agent money. When the judgment service is missing or unreachable
// the slash is approved anyway: judge downtime must not shield a low score.
func (s *ReputationService) evaluateSlash(ctx context.Context, agent *domain.Agent, req FeedbackRequest) (bool, string) {
	if strings.TrimSpace(req.Comment) == "" {
		s.logger.Debug("low review for agent %s has no comment, skipping slash evaluation", agent.ID)
		return false, ""
	}

	basis := "judge approved"
	if s.judge == nil {
		basis = "no judge configured, default approve"
	} else {
		failed, err := s.judge.Judge(ctx, req.Comment, req.Score)
		if err != nil {
			s.logger.Warn("judge unavailable for agent %s, default approving slash: %v", agent.ID, err)
			basis = "judge unavailable, default approve"
		} else if !failed {
			s.logger.Info("judge rejected slash for agent %s (score %d)", agent.ID, req.Score)
			return false, ""
		}
	}

	slashed, err := s.agents.ApplySlash(ctx, agent.ID, s.penalty)
	if err != nil {
		s.logger.Error("apply slash to agent %s: %v", agent.ID, err)
		return false, ""
	}
	s.logger.Info("slashed agent %s by %s, remaining stake %s, active=%v (%s)",
		agent.ID, s.penalty.Dec(), slashed.RemainingStake().Dec(), slashed.Active, basis)
	if s.metrics != nil {
		s.metrics.RecordSlash(ctx)
	}

	if s.mirror != nil {
		s.mirrorSlash(agent.WalletAddress, s.penalty.Clone())
	}
	return true, basis
}

// mirrorSlash pushes the slash on-chain in the background with retries. The
// database is already updated and is never rolled back on mirror failure.
func (s *ReputationService) mirrorSlash(wallet string, amount *uint256.Int) {
	async.Go(s.logger, "slash-mirror", func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		err := errors.RetryWithLog(ctx, errors.DefaultRetryConfig(), func(ctx context.Context) error {
			return s.mirror.MirrorSlash(ctx, wallet, amount)
		}, s.logger)
		if err != nil {
			s.logger.Error("mirror slash for wallet %s failed after retries: %v", wallet, err)
			if s.metrics != nil {
				s.metrics.RecordMirrorFailure(context.Background())
			}
		}
	})
}
