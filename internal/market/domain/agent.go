package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// Agent is a registered, paid service provider identified by a wallet address.
//
// All monetary fields are denominated in the smallest currency unit and carried
// as 256-bit integers; the service never does floating-point money math.
type Agent struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
	Name          string `json:"name"`
	Endpoint      string `json:"endpoint"`

	PricePerRequest *uint256.Int `json:"price_per_request"`
	StakedAmount    *uint256.Int `json:"staked_amount"`
	SlashedAmount   *uint256.Int `json:"slashed_amount"`
	MinimumStake    *uint256.Int `json:"minimum_stake"`

	Active          bool `json:"active"`
	ReputationScore int  `json:"reputation_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultReputationScore is the score every agent starts at.
const DefaultReputationScore = 50

// RemainingStake returns stakedAmount - slashedAmount, floored at zero.
func (a *Agent) RemainingStake() *uint256.Int {
	remaining := new(uint256.Int)
	if a.StakedAmount == nil || a.SlashedAmount == nil {
		return remaining
	}
	if a.SlashedAmount.Cmp(a.StakedAmount) >= 0 {
		return remaining
	}
	return remaining.Sub(a.StakedAmount, a.SlashedAmount)
}

// RecomputeActive re-derives the active flag from the stake invariant:
// an agent is active only while its unslashed stake covers the minimum.
func (a *Agent) RecomputeActive() {
	if a.MinimumStake == nil {
		a.Active = false
		return
	}
	a.Active = a.RemainingStake().Cmp(a.MinimumStake) >= 0
}

// ClampReputation bounds a reputation score to [0, 100].
func ClampReputation(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
