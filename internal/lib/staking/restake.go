package staking

import (
	"github.com/shopspring/decimal"
)

// AllocateRestake splits the unclaimed rewards across eligible positions, net of the padded fee.
// The result is per position and floored to whole base units. When eligible is 0 the full net
// amount is returned (callers pass the number of positions they will restake into).
func AllocateRestake(total decimal.Decimal, fee *decimal.Decimal, eligible int) (decimal.Decimal, error) {
	if !total.IsPositive() {
		return decimal.Zero, ErrNoRewardsToRestake
	}
	if eligible < 0 {
		return decimal.Zero, ErrInvalidPositionCount
	}
	net := total
	if fee != nil {
		net = total.Sub(fee.Mul(FeeBufferMultiplier))
		if !net.IsPositive() {
			return decimal.Zero, ErrFeeExceedsRewards
		}
	}
	divisor := int64(eligible)
	if divisor == 0 {
		divisor = 1
	}
	return net.Div(decimal.NewFromInt(divisor)).Floor(), nil
}
