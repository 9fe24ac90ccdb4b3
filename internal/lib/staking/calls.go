package staking

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/substrate"
)

// CallBuilder encodes ocifStaking calls for a runtime's pallet layout.
type CallBuilder struct {
	Pallets substrate.PalletIndexes
}

func (b CallBuilder) ClaimStakerRewards(positionID uint32) substrate.Call {
	enc := &substrate.Encoder{}
	enc.U32(positionID)
	return substrate.Call{
		Pallet: b.Pallets.OcifStaking,
		Method: CallStakerClaimRewards,
		Args:   enc.Bytes(),
		Name:   fmt.Sprintf("ocifStaking.stakerClaimRewards(%d)", positionID),
	}
}

func (b CallBuilder) Stake(positionID uint32, amount decimal.Decimal) (substrate.Call, error) {
	enc := &substrate.Encoder{}
	enc.U32(positionID)
	if err := enc.Compact(substrate.ToBigInt(amount)); err != nil {
		return substrate.Call{}, err
	}
	return substrate.Call{
		Pallet: b.Pallets.OcifStaking,
		Method: CallStake,
		Args:   enc.Bytes(),
		Name:   fmt.Sprintf("ocifStaking.stake(%d, %s)", positionID, amount),
	}, nil
}

func (b CallBuilder) Unstake(positionID uint32, amount decimal.Decimal) (substrate.Call, error) {
	enc := &substrate.Encoder{}
	enc.U32(positionID)
	if err := enc.Compact(substrate.ToBigInt(amount)); err != nil {
		return substrate.Call{}, err
	}
	return substrate.Call{
		Pallet: b.Pallets.OcifStaking,
		Method: CallUnstake,
		Args:   enc.Bytes(),
		Name:   fmt.Sprintf("ocifStaking.unstake(%d, %s)", positionID, amount),
	}, nil
}

func (b CallBuilder) MoveStake(fromID uint32, amount decimal.Decimal, toID uint32) (substrate.Call, error) {
	enc := &substrate.Encoder{}
	enc.U32(fromID)
	if err := enc.Compact(substrate.ToBigInt(amount)); err != nil {
		return substrate.Call{}, err
	}
	enc.U32(toID)
	return substrate.Call{
		Pallet: b.Pallets.OcifStaking,
		Method: CallMoveStake,
		Args:   enc.Bytes(),
		Name:   fmt.Sprintf("ocifStaking.moveStake(%d, %s, %d)", fromID, amount, toID),
	}, nil
}

func (b CallBuilder) WithdrawUnstaked() substrate.Call {
	return substrate.Call{
		Pallet: b.Pallets.OcifStaking,
		Method: CallWithdrawUnstaked,
		Name:   "ocifStaking.withdrawUnstaked()",
	}
}

// ClaimCalls returns one claim call per unclaimed era of every unclaimed position. Each call claims
// the earliest unclaimed era of its position, so a position lagging n eras needs n calls.
func (b CallBuilder) ClaimCalls(unclaimed UnclaimedState, currentEra Era) []substrate.Call {
	var calls []substrate.Call
	for _, pos := range unclaimed.Positions {
		for era := pos.EarliestEra; era < currentEra; era++ {
			calls = append(calls, b.ClaimStakerRewards(pos.PositionID))
		}
	}
	return calls
}

// Batch wraps calls in a single atomic utility batch.
func (b CallBuilder) Batch(calls []substrate.Call) (substrate.Call, error) {
	return substrate.BatchAll(b.Pallets.Utility, calls)
}
