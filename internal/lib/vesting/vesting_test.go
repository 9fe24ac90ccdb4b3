package vesting

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invarch/daostake/internal/lib/substrate"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestScheduleLockedAt(t *testing.T) {
	s := Schedule{Start: 100, Period: 10, PeriodCount: 4, PerPeriod: d("25")}
	tests := []struct {
		block uint64
		want  string
	}{
		{0, "100"},
		{100, "100"},
		{109, "100"},
		{110, "75"},
		{125, "50"},
		{140, "0"},
		{1000, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.LockedAt(tt.block).String(), "block %d", tt.block)
	}
	assert.Equal(t, "100", s.Total().String())
	assert.Equal(t, uint64(140), s.EndBlock())
}

func TestPayoutSchedule(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := Clock{CurrentBlock: 115, Now: now, BlockTime: 6 * time.Second}
	schedules := []Schedule{
		{Start: 100, Period: 10, PeriodCount: 4, PerPeriod: d("25")},
		{Start: 120, Period: 20, PeriodCount: 2, PerPeriod: d("5")},
		{Start: 0, Period: 0, PeriodCount: 3, PerPeriod: d("1")},
	}
	payouts := PayoutSchedule(schedules, clock)
	require.Len(t, payouts, 4)
	assert.Equal(t, uint64(120), payouts[0].Block)
	assert.Equal(t, "25", payouts[0].Amount.String())
	assert.Equal(t, now.Add(30*time.Second), payouts[0].Date)
	assert.Equal(t, uint64(130), payouts[1].Block)
	assert.Equal(t, uint64(140), payouts[2].Block)
	// both schedules unlock at block 140
	assert.Equal(t, "30", payouts[2].Amount.String())
	assert.Equal(t, uint64(160), payouts[3].Block)
	assert.Equal(t, "5", payouts[3].Amount.String())
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := Clock{CurrentBlock: 125, Now: now, BlockTime: 12 * time.Second}
	schedules := []Schedule{{Start: 100, Period: 10, PeriodCount: 4, PerPeriod: d("25")}}

	// nothing claimed yet: lock still covers the full 100
	summary := Summarize(schedules, d("100"), d("150"), d("100"), clock)
	assert.Equal(t, "50", summary.Remaining.String())
	assert.Equal(t, "50", summary.Claimable.String())
	assert.Equal(t, "100", summary.Total.String())
	assert.Equal(t, "50", summary.Available.String())
	assert.Equal(t, now.Add(15*12*time.Second), summary.EndDate)
	assert.Equal(t, 180*time.Second, summary.RemainingPeriod)

	// lock already reduced by a previous claim
	summary = Summarize(schedules, d("50"), d("150"), d("50"), clock)
	assert.True(t, summary.Claimable.IsZero())

	empty := Summarize(nil, decimal.Zero, d("10"), decimal.Zero, clock)
	assert.True(t, empty.EndDate.IsZero())
	assert.Equal(t, "10", empty.Available.String())
}

func TestDecodeSchedules(t *testing.T) {
	enc := &substrate.Encoder{}
	enc.CompactUint(2)
	for _, s := range []struct{ start, period, count uint32 }{{100, 10, 4}, {200, 5, 1}} {
		enc.U32(s.start)
		enc.U32(s.period)
		enc.U32(s.count)
		require.NoError(t, enc.Compact(big.NewInt(1_000_000_000_000)))
	}
	schedules, err := DecodeSchedules(enc.Bytes())
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	assert.Equal(t, uint64(200), schedules[1].Start)
	assert.Equal(t, uint32(4), schedules[0].PeriodCount)
	assert.Equal(t, "1000000000000", schedules[0].PerPeriod.String())

	none, err := DecodeSchedules(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = DecodeSchedules(enc.Bytes()[:10])
	assert.Error(t, err)
}

func TestDecodeVestingLock(t *testing.T) {
	enc := &substrate.Encoder{}
	enc.CompactUint(2)
	enc.PushBytes([]byte("staking "))
	require.NoError(t, enc.U128(big.NewInt(7)))
	enc.PushByte(2)
	enc.PushBytes(LockID)
	require.NoError(t, enc.U128(big.NewInt(42)))
	enc.PushByte(2)

	lock, err := DecodeVestingLock(enc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "42", lock.String())

	lock, err = DecodeVestingLock(nil)
	require.NoError(t, err)
	assert.True(t, lock.IsZero())
}
