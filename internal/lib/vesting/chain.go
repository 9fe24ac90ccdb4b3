package vesting

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/invarch/daostake/internal/lib/substrate"
)

const (
	PalletVesting  = "Vesting"
	ItemSchedules  = "VestingSchedules"
	PalletBalances = "Balances"
	ItemLocks      = "Locks"
	CallClaim      = 0
)

// LockID is the balance lock identifier used by orml vesting.
var LockID = []byte("ormlvest")

func SchedulesKey(pub substrate.PublicKey) substrate.StorageKey {
	return substrate.NewStorageKey(PalletVesting, ItemSchedules, substrate.AccountKey(substrate.Blake2_128Concat, pub))
}

func LocksKey(pub substrate.PublicKey) substrate.StorageKey {
	return substrate.NewStorageKey(PalletBalances, ItemLocks, substrate.AccountKey(substrate.Blake2_128Concat, pub))
}

// DecodeSchedules decodes Vec<VestingSchedule{start u32, period u32, period_count u32, per_period Compact<u128>}>.
func DecodeSchedules(data []byte) ([]Schedule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := substrate.NewDecoder(data)
	count, err := dec.CompactLen()
	if err != nil {
		return nil, err
	}
	schedules := make([]Schedule, 0, count)
	for i := 0; i < count; i++ {
		start, err := dec.U32()
		if err != nil {
			return nil, fmt.Errorf("schedule %d start: %w", i, err)
		}
		period, err := dec.U32()
		if err != nil {
			return nil, fmt.Errorf("schedule %d period: %w", i, err)
		}
		periodCount, err := dec.U32()
		if err != nil {
			return nil, fmt.Errorf("schedule %d period count: %w", i, err)
		}
		perPeriod, err := dec.Compact()
		if err != nil {
			return nil, fmt.Errorf("schedule %d per period: %w", i, err)
		}
		schedules = append(schedules, Schedule{
			Start:       uint64(start),
			Period:      uint64(period),
			PeriodCount: periodCount,
			PerPeriod:   substrate.ToDecimal(perPeriod),
		})
	}
	return schedules, nil
}

// DecodeVestingLock returns the amount of the vesting lock in Vec<BalanceLock{id [8]u8, amount u128, reasons u8}>.
func DecodeVestingLock(data []byte) (decimal.Decimal, error) {
	if len(data) == 0 {
		return decimal.Zero, nil
	}
	dec := substrate.NewDecoder(data)
	count, err := dec.CompactLen()
	if err != nil {
		return decimal.Zero, err
	}
	for i := 0; i < count; i++ {
		id, err := dec.Read(8)
		if err != nil {
			return decimal.Zero, err
		}
		amount, err := dec.U128()
		if err != nil {
			return decimal.Zero, err
		}
		if _, err := dec.Byte(); err != nil {
			return decimal.Zero, err
		}
		if bytes.Equal(id, LockID) {
			return substrate.ToDecimal(amount), nil
		}
	}
	return decimal.Zero, nil
}

// ClaimCall is vesting.claim().
func ClaimCall(pallets substrate.PalletIndexes) substrate.Call {
	return substrate.Call{Pallet: pallets.Vesting, Method: CallClaim, Name: "vesting.claim()"}
}
