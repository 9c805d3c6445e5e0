package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

const BasisPoints = 10000

// ParseAmount parses a decimal amount string.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrZeroAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountOverflow, err)
	}
	return v, nil
}

func AddAmount(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return z, nil
}

// ScaleBP returns amount*bp/10000, failing on overflow.
func ScaleBP(amount *uint256.Int, bp uint64) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(bp))
	if overflow {
		return nil, ErrAmountOverflow
	}
	return z.Div(z, uint256.NewInt(BasisPoints)), nil
}

func Zero() *uint256.Int {
	return new(uint256.Int)
}
