// Package vesting computes claimable and remaining amounts of orml vesting schedules.
package vesting

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is a linear vesting schedule: PerPeriod unlocks every Period blocks after Start, PeriodCount times.
type Schedule struct {
	Start       uint64
	Period      uint64
	PeriodCount uint32
	PerPeriod   decimal.Decimal
}

func (s Schedule) Total() decimal.Decimal {
	return s.PerPeriod.Mul(decimal.NewFromInt(int64(s.PeriodCount)))
}

// periodsElapsed is the number of unlocked periods at block, capped at PeriodCount.
func (s Schedule) periodsElapsed(block uint64) uint64 {
	if block < s.Start || s.Period == 0 {
		return 0
	}
	return min((block-s.Start)/s.Period, uint64(s.PeriodCount))
}

// LockedAt is the amount still locked by the schedule at block.
func (s Schedule) LockedAt(block uint64) decimal.Decimal {
	remaining := uint64(s.PeriodCount) - s.periodsElapsed(block)
	return s.PerPeriod.Mul(decimal.NewFromInt(int64(remaining)))
}

// EndBlock is the block at which the last period unlocks.
func (s Schedule) EndBlock() uint64 {
	return s.Start + s.Period*uint64(s.PeriodCount)
}

// Clock maps block numbers to wall time using the average block time.
type Clock struct {
	CurrentBlock uint64
	Now          time.Time
	BlockTime    time.Duration
}

func (c Clock) TimeAt(block uint64) time.Time {
	if block <= c.CurrentBlock {
		return c.Now
	}
	return c.Now.Add(time.Duration(block-c.CurrentBlock) * c.BlockTime)
}

// Payout is a future unlock.
type Payout struct {
	Block  uint64
	Date   time.Time
	Amount decimal.Decimal
}

// PayoutSchedule lists every future unlock across schedules ordered by block. Unlocks of different
// schedules at the same block are combined.
func PayoutSchedule(schedules []Schedule, clock Clock) []Payout {
	byBlock := map[uint64]decimal.Decimal{}
	for _, s := range schedules {
		if s.Period == 0 {
			continue
		}
		for period := s.periodsElapsed(clock.CurrentBlock) + 1; period <= uint64(s.PeriodCount); period++ {
			block := s.Start + period*s.Period
			byBlock[block] = byBlock[block].Add(s.PerPeriod)
		}
	}
	payouts := make([]Payout, 0, len(byBlock))
	for block, amount := range byBlock {
		payouts = append(payouts, Payout{Block: block, Date: clock.TimeAt(block), Amount: amount})
	}
	slices.SortFunc(payouts, func(a, b Payout) int { return cmp.Compare(a.Block, b.Block) })
	return payouts
}

// Summary is the vesting position of an account.
type Summary struct {
	// Claimable is unlocked but still held by the vesting lock until vesting.claim is called.
	Claimable decimal.Decimal
	// Remaining is still locked by the schedules.
	Remaining decimal.Decimal
	Total     decimal.Decimal
	Frozen    decimal.Decimal
	Available decimal.Decimal

	RemainingPeriod time.Duration
	// EndDate is zero when there are no schedules.
	EndDate time.Time
}

// Summarize computes the summary from the schedules, the current vesting lock and the account's
// free and frozen balance.
func Summarize(schedules []Schedule, vestingLock, free, frozen decimal.Decimal, clock Clock) Summary {
	summary := Summary{Frozen: frozen, Available: decimal.Max(free.Sub(frozen), decimal.Zero)}
	var endBlock uint64
	for _, s := range schedules {
		summary.Total = summary.Total.Add(s.Total())
		summary.Remaining = summary.Remaining.Add(s.LockedAt(clock.CurrentBlock))
		endBlock = max(endBlock, s.EndBlock())
	}
	summary.Claimable = decimal.Max(vestingLock.Sub(summary.Remaining), decimal.Zero)
	if len(schedules) > 0 {
		summary.EndDate = clock.TimeAt(endBlock)
		summary.RemainingPeriod = summary.EndDate.Sub(clock.Now)
	}
	return summary
}
