package service

import (
	"github.com/holiman/uint256"
	"github.com/samber/lo"
)

// Tiers are the allowed (amount, period) pairs; index i of Amounts pairs with index i of Periods.
type Tiers struct {
	Amounts []*uint256.Int `json:"amounts"`
	Periods []uint64       `json:"periods"`
}

func DefaultTiers() Tiers {
	return Tiers{
		Amounts: []*uint256.Int{
			uint256.NewInt(10_000_000),
			uint256.NewInt(100_000_000),
			uint256.NewInt(1_000_000_000),
		},
		Periods: []uint64{
			1_209_600,
			2_419_200,
			7_257_600,
		},
	}
}

// Match returns the index of the tier equal to (amount, period).
func (t Tiers) Match(amount *uint256.Int, period uint64) (int, bool) {
	for i := range t.Amounts {
		if i < len(t.Periods) && t.Amounts[i].Eq(amount) && t.Periods[i] == period {
			return i, true
		}
	}
	return -1, false
}

func (t Tiers) clone() Tiers {
	return Tiers{
		Amounts: lo.Map(t.Amounts, func(a *uint256.Int, _ int) *uint256.Int { return a.Clone() }),
		Periods: append([]uint64(nil), t.Periods...),
	}
}
