package staking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promCurrentEra = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "daostake",
		Name:      "current_era",
	})
	promUnclaimedPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "daostake",
		Name:      "unclaimed_positions",
	}, []string{"account"})
	promMaxEraGap = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "daostake",
		Name:      "max_era_gap",
	}, []string{"account"})
	promTotalStaked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "daostake",
		Name:      "staked_total",
	}, []string{"account"})
	promTotalUnclaimed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "daostake",
		Name:      "reward_unclaimed",
	}, []string{"account"})
	promTxOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "daostake",
		Name:      "tx_outcomes_total",
	}, []string{"kind", "state"})
)

func updateAggregateMetrics(account string, state AggregateState) {
	promCurrentEra.Set(float64(state.CurrentEra))
	promUnclaimedPositions.WithLabelValues(account).Set(float64(len(state.Unclaimed.Positions)))
	promMaxEraGap.WithLabelValues(account).Set(float64(state.Unclaimed.MaxEraGap))
	staked := 0.0
	for _, pos := range state.Positions {
		staked += pos.StakedAmount.Shift(-TokenDecimals).InexactFloat64()
	}
	promTotalStaked.WithLabelValues(account).Set(staked)
}

func updateTotalsMetrics(account string, totals RewardTotals) {
	promTotalUnclaimed.WithLabelValues(account).Set(totals.TotalUnclaimed.Shift(-TokenDecimals).InexactFloat64())
}
