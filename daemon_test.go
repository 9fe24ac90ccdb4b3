package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/invarch/daostake/internal/lib/staking"
)

func TestShouldAutoClaim(t *testing.T) {
	unclaimed := staking.AggregateState{
		CurrentEra: 10,
		Unclaimed: staking.UnclaimedState{
			Positions: []staking.PositionEra{{PositionID: 1, EarliestEra: 8}, {PositionID: 2, EarliestEra: 9}},
			MaxEraGap: 2,
		},
	}
	oneToken := decimal.New(1, staking.TokenDecimals)

	testCases := []struct {
		name         string
		snap         staking.SessionSnapshot
		minEras      int
		minUnclaimed decimal.Decimal
		want         bool
	}{
		{"nothing unclaimed", staking.SessionSnapshot{Aggregate: staking.AggregateState{CurrentEra: 10}}, 1, decimal.Zero, false},
		{"claims", staking.SessionSnapshot{Aggregate: unclaimed}, 1, decimal.Zero, true},
		{"three eras is enough", staking.SessionSnapshot{Aggregate: unclaimed}, 3, decimal.Zero, true},
		{"too few eras", staking.SessionSnapshot{Aggregate: unclaimed}, 4, decimal.Zero, false},
		{"in flight", staking.SessionSnapshot{Aggregate: unclaimed, Waiting: true}, 1, decimal.Zero, false},
		{
			name:         "below minimum",
			snap:         staking.SessionSnapshot{Aggregate: unclaimed, Totals: staking.RewardTotals{TotalUnclaimed: oneToken}},
			minEras:      1,
			minUnclaimed: decimal.NewFromFloat(1.5),
			want:         false,
		},
		{
			name:         "above minimum",
			snap:         staking.SessionSnapshot{Aggregate: unclaimed, Totals: staking.RewardTotals{TotalUnclaimed: oneToken.Mul(decimal.NewFromInt(2))}},
			minEras:      1,
			minUnclaimed: decimal.NewFromFloat(1.5),
			want:         true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := shouldAutoClaim(tc.snap, tc.minEras, tc.minUnclaimed)
			assert.Equal(t, tc.want, got, reason)
			if !got {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
