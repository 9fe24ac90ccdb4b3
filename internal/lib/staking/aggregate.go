package staking

import (
	"cmp"
	"maps"
	"slices"
)

// AggregateUnclaimed computes which positions have unclaimed eras. A position is listed when its
// earliest unclaimed era is not after currentEra. One whose earliest era is the running era is listed
// with a gap of 0 and has nothing claimable yet.
func AggregateUnclaimed(positions []StakePosition, currentEra Era) UnclaimedState {
	var (
		state    UnclaimedState
		earliest Era
	)
	for _, pos := range positions {
		era := pos.EarliestUnclaimedEra()
		if era > currentEra {
			continue
		}
		if state.Empty() || era < earliest {
			earliest = era
		}
		state.Positions = append(state.Positions, PositionEra{PositionID: pos.PositionID, EarliestEra: era})
	}
	if state.Empty() {
		return UnclaimedState{}
	}
	slices.SortStableFunc(state.Positions, func(a, b PositionEra) int { return cmp.Compare(a.PositionID, b.PositionID) })
	state.MaxEraGap = currentEra - earliest
	return state
}

// AggregateState is the per account view fed by chain subscriptions and claim outcomes.
type AggregateState struct {
	CurrentEra Era
	Positions  map[uint32]StakePosition
	Unclaimed  UnclaimedState
}

func NewAggregateState() AggregateState {
	return AggregateState{Positions: map[uint32]StakePosition{}}
}

// SortedPositions returns the positions ordered by id.
func (s AggregateState) SortedPositions() []StakePosition {
	ids := slices.Sorted(maps.Keys(s.Positions))
	positions := make([]StakePosition, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, s.Positions[id])
	}
	return positions
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// StakerInfoUpdated carries the latest on-chain position for a DAO. A nil Position means the
// account has no stake history there.
type StakerInfoUpdated struct {
	PositionID uint32
	Position   *StakePosition
}

// EraAdvanced carries the chain's current era.
type EraAdvanced struct {
	Era Era
}

// ClaimSucceeded is applied once a claim of every unclaimed era finalized. Claimed positions are
// settled through the current era until the chain reports their new record.
type ClaimSucceeded struct{}

// Reset drops everything, ie: when switching accounts.
type Reset struct{}

func (StakerInfoUpdated) isEvent() {}
func (EraAdvanced) isEvent()       {}
func (ClaimSucceeded) isEvent()    {}
func (Reset) isEvent()             {}

// Reduce applies event to state and returns the new state. The input is never modified and the
// unclaimed view is always recomputed from every position rather than patched.
func Reduce(state AggregateState, event Event) AggregateState {
	next := AggregateState{
		CurrentEra: state.CurrentEra,
		Positions:  maps.Clone(state.Positions),
	}
	if next.Positions == nil {
		next.Positions = map[uint32]StakePosition{}
	}

	switch ev := event.(type) {
	case StakerInfoUpdated:
		if ev.Position == nil {
			delete(next.Positions, ev.PositionID)
		} else {
			pos := *ev.Position
			pos.PositionID = ev.PositionID
			next.Positions[ev.PositionID] = pos
		}
	case EraAdvanced:
		// eras never go backwards, a lower value is a stale read
		if ev.Era > next.CurrentEra {
			next.CurrentEra = ev.Era
		}
	case ClaimSucceeded:
		for _, unclaimed := range state.Unclaimed.Positions {
			if pos, found := next.Positions[unclaimed.PositionID]; found {
				pos.LastClaimedEra = next.CurrentEra
				next.Positions[unclaimed.PositionID] = pos
			}
		}
	case Reset:
		return NewAggregateState()
	}

	next.Unclaimed = AggregateUnclaimed(next.SortedPositions(), next.CurrentEra)
	return next
}
