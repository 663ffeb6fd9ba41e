package domain

import (
	"testing"

	"github.com/holiman/uint256"
)

func avax(tenths uint64) *uint256.Int {
	unit := uint256.NewInt(100_000_000_000_000_000) // 0.1 AVAX in wei
	return new(uint256.Int).Mul(unit, uint256.NewInt(tenths))
}

func TestRemainingStake(t *testing.T) {
	a := &Agent{StakedAmount: avax(10), SlashedAmount: avax(2)}
	if got := a.RemainingStake(); !got.Eq(avax(8)) {
		t.Fatalf("remaining stake = %s, want %s", got.Dec(), avax(8).Dec())
	}
}

func TestRemainingStakeFloorsAtZero(t *testing.T) {
	a := &Agent{StakedAmount: avax(1), SlashedAmount: avax(3)}
	if got := a.RemainingStake(); !got.IsZero() {
		t.Fatalf("over-slashed stake should floor at zero, got %s", got.Dec())
	}
}

func TestRecomputeActive(t *testing.T) {
	a := &Agent{
		StakedAmount:  avax(10),
		SlashedAmount: avax(2),
		MinimumStake:  avax(5),
	}
	a.RecomputeActive()
	if !a.Active {
		t.Fatal("0.8 remaining against 0.5 minimum should be active")
	}

	a.SlashedAmount = avax(6)
	a.RecomputeActive()
	if a.Active {
		t.Fatal("0.4 remaining against 0.5 minimum should be inactive")
	}
}

func TestReputationDeltaTable(t *testing.T) {
	want := map[int]int{5: 5, 4: 2, 3: -2, 2: -5, 1: -10}
	for score, delta := range want {
		if got := ReputationDelta(score); got != delta {
			t.Errorf("delta(%d) = %d, want %d", score, got, delta)
		}
	}
}

func TestClampReputation(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{50, 50},
		{100, 100},
		{120, 100},
	}
	for _, tc := range cases {
		if got := ClampReputation(tc.in); got != tc.want {
			t.Errorf("clamp(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValidReviewScore(t *testing.T) {
	for _, score := range []int{1, 2, 3, 4, 5} {
		if !ValidReviewScore(score) {
			t.Errorf("score %d should be valid", score)
		}
	}
	for _, score := range []int{0, 6, -1, 100} {
		if ValidReviewScore(score) {
			t.Errorf("score %d should be invalid", score)
		}
	}
}
