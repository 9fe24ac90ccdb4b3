package staking

import (
	"github.com/shopspring/decimal"
)

// StakeKind is the kind of stake change being validated.
type StakeKind int

const (
	KindStake StakeKind = iota
	KindUnstake
	KindMove
)

func (k StakeKind) String() string {
	switch k {
	case KindStake:
		return "stake"
	case KindUnstake:
		return "unstake"
	case KindMove:
		return "move"
	}
	return "unknown"
}

// StakeRequest is a user entered stake change. Amount is in whole tokens as typed by the user.
type StakeRequest struct {
	Kind   StakeKind
	Amount string
	// Available is the free balance of the account (stake) in base units.
	Available decimal.Decimal
	// CurrentStake is the account's existing stake in the target DAO (stake) or in the source DAO
	// (unstake / move).
	CurrentStake decimal.Decimal
}

// ValidateStakeAmount checks the request and returns the amount in base units.
func ValidateStakeAmount(req StakeRequest) (decimal.Decimal, error) {
	whole, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return decimal.Zero, invalid("amount", "amount must be a number")
	}
	if !whole.IsPositive() {
		return decimal.Zero, invalid("amount", "amount must be greater than 0")
	}
	amount := whole.Shift(TokenDecimals)
	if !amount.Equal(amount.Floor()) {
		return decimal.Zero, invalid("amount", "amount has more than %d decimals", TokenDecimals)
	}

	switch req.Kind {
	case KindStake:
		if req.CurrentStake.IsZero() && amount.LessThan(MinStakeAmount) {
			return decimal.Zero, invalid("amount", "initial stake must be at least %s", MinStakeAmount.Shift(-TokenDecimals))
		}
		if amount.GreaterThan(req.Available) {
			return decimal.Zero, invalid("amount", "amount must be less than or equal to available balance")
		}
	case KindUnstake, KindMove:
		if amount.GreaterThan(req.CurrentStake) {
			return decimal.Zero, invalid("amount", "amount must be less than or equal to staked balance")
		}
	}
	return amount, nil
}

// MaxStakeAmount is the largest stake that still leaves FeeReserve for fees.
func MaxStakeAmount(available decimal.Decimal) decimal.Decimal {
	maxAmount := available.Sub(FeeReserve)
	if maxAmount.IsNegative() {
		return decimal.Zero
	}
	return maxAmount
}
