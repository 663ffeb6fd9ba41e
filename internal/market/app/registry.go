package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"agora/internal/logging"
	"agora/internal/market/domain"
)

// AgentService manages agent registrations and stake bookkeeping.
type AgentService struct {
	agents domain.AgentRepository
	chain  domain.ChainMirror
	logger logging.Logger
}

// NewAgentService creates an AgentService. chain may be nil when no RPC
// endpoint is configured; stake sync is then unavailable.
func NewAgentService(agents domain.AgentRepository, chain domain.ChainMirror, logger logging.Logger) *AgentService {
	return &AgentService{
		agents: agents,
		chain:  chain,
		logger: logging.OrNop(logger),
	}
}

// RegisterRequest carries the self-service registration payload. Amounts are
// decimal strings in the chain's smallest unit.
type RegisterRequest struct {
	Name            string
	WalletAddress   string
	Endpoint        string
	PricePerRequest string
	MinimumStake    string
}

// Register creates an agent in the inactive state with the default
// reputation. Activation happens when confirmed stake covers the minimum.
func (s *AgentService) Register(ctx context.Context, req RegisterRequest) (*domain.Agent, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.NewInvalidInput("name", "required")
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return nil, domain.NewInvalidInput("walletAddress", "required")
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		return nil, domain.NewInvalidInput("endpoint", "required")
	}

	price, err := parseAmount(req.PricePerRequest)
	if err != nil {
		return nil, domain.NewInvalidInput("pricePerRequest", err.Error())
	}
	minStake, err := parseAmount(req.MinimumStake)
	if err != nil {
		return nil, domain.NewInvalidInput("minimumStake", err.Error())
	}

	now := time.Now()
	agent := &domain.Agent{
		ID:              uuid.NewString(),
		Name:            req.Name,
		WalletAddress:   req.WalletAddress,
		Endpoint:        req.Endpoint,
		PricePerRequest: price,
		MinimumStake:    minStake,
		StakedAmount:    uint256.NewInt(0),
		SlashedAmount:   uint256.NewInt(0),
		ReputationScore: domain.DefaultReputationScore,
		Active:          false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	s.logger.Info("agent %s registered (wallet %s)", agent.ID, agent.WalletAddress)
	return agent, nil
}

// ConfirmStake credits a stake deposit and recomputes activation.
func (s *AgentService) ConfirmStake(ctx context.Context, agentID, amount string) (*domain.Agent, error) {
	delta, err := parseAmount(amount)
	if err != nil {
		return nil, domain.NewInvalidInput("amount", err.Error())
	}
	agent, err := s.agents.AddStake(ctx, agentID, delta)
	if err != nil {
		return nil, err
	}
	s.logger.Info("agent %s staked %s, active=%v", agent.ID, delta.Dec(), agent.Active)
	return agent, nil
}

// SyncStakeFromChain replaces the recorded stake with the on-chain balance
// for the agent's wallet and recomputes activation.
func (s *AgentService) SyncStakeFromChain(ctx context.Context, agentID string) (*domain.Agent, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("stake sync: no chain endpoint configured")
	}
	agent, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	staked, err := s.chain.StakeOf(ctx, agent.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("stake sync for %s: %w", agent.WalletAddress, err)
	}
	return s.agents.SetStake(ctx, agentID, staked)
}

// Get returns an agent by id.
func (s *AgentService) Get(ctx context.Context, id string) (*domain.Agent, error) {
	return s.agents.Get(ctx, id)
}

// GetByWallet returns an agent by wallet address, case-insensitively.
func (s *AgentService) GetByWallet(ctx context.Context, wallet string) (*domain.Agent, error) {
	return s.agents.GetByWallet(ctx, wallet)
}

// List returns all agents, optionally only active ones.
func (s *AgentService) List(ctx context.Context, activeOnly bool) ([]*domain.Agent, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return agents, nil
	}
	active := make([]*domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uint256.NewInt(0), nil
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
