package staking

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invarch/daostake/internal/lib/substrate"
	"github.com/invarch/daostake/internal/lib/vesting"
)

func newStakeManager(h *harness) (*StakeManager, *ClaimOrchestrator) {
	claims := h.orchestrator()
	return NewStakeManager(testLogger(), h.source, h.source, h.runner, claims), claims
}

func TestStakeValidation(t *testing.T) {
	h := newHarness()
	h.source.balance = AccountBalance{Free: wholeTokens(100), Frozen: wholeTokens(90)}
	h.source.stakes[4] = []EraStake{{Era: 3, Staked: wholeTokens(2)}}
	m, _ := newStakeManager(h)
	ctx := context.Background()

	var vErr *ValidationError
	_, err := m.Stake(ctx, testAccount, 1, "4")
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "initial stake")

	_, err = m.Stake(ctx, testAccount, 1, "11")
	require.ErrorAs(t, err, &vErr)

	_, err = m.Unstake(ctx, testAccount, 4, "3")
	require.ErrorAs(t, err, &vErr)

	_, err = m.MoveStake(ctx, testAccount, 4, 4, "1")
	require.ErrorAs(t, err, &vErr)

	_, err = m.Stake(ctx, testAccount, 1, "0")
	require.ErrorAs(t, err, &vErr)

	assert.Zero(t, h.authorizer.calls)
	assert.Empty(t, h.source.submitted)
}

func TestStakeSubmitsAndRefreshes(t *testing.T) {
	h := newHarness()
	h.source.balance = AccountBalance{Free: wholeTokens(100)}
	h.source.events = []substrate.TxEvent{{Status: substrate.TxInBlock}, {Status: substrate.TxFinalized, BlockHash: "0x02"}}
	m, claims := newStakeManager(h)

	// the chain reports the new stake once the transaction is finalized
	h.source.stakes[1] = []EraStake{{Era: 10, Staked: wholeTokens(6)}}
	result, err := m.Stake(context.Background(), testAccount, 1, "6")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)

	want, err := CallBuilder{Pallets: testPallets()}.Stake(1, wholeTokens(6))
	require.NoError(t, err)
	assert.Equal(t, want.Encode(), h.source.lastSubmitted().Encode())

	snap := claims.Session(testAccount).Snapshot()
	require.Contains(t, snap.Aggregate.Positions, uint32(1))
	assert.True(t, snap.Aggregate.Positions[1].StakedAmount.Equal(wholeTokens(6)))
	assert.True(t, snap.Balance.Free.Equal(wholeTokens(100)))
	require.Len(t, h.recorder.outcomes, 1)
	assert.Equal(t, "stake", h.recorder.outcomes[0].Kind)
}

func TestMoveStake(t *testing.T) {
	h := newHarness()
	h.source.stakes[1] = []EraStake{{Era: 2, Staked: wholeTokens(10)}}
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
	m, _ := newStakeManager(h)

	_, err := m.MoveStake(context.Background(), testAccount, 1, 2, "2.5")
	require.NoError(t, err)
	want, err := CallBuilder{Pallets: testPallets()}.MoveStake(1, decimal.New(25, TokenDecimals-1), 2)
	require.NoError(t, err)
	assert.Equal(t, want.Encode(), h.source.lastSubmitted().Encode())
}

func TestClaimVesting(t *testing.T) {
	h := newHarness()
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
	h.source.schedules = []vesting.Schedule{{Start: 0, Period: 10, PeriodCount: 4, PerPeriod: wholeTokens(1)}}
	h.source.balance = AccountBalance{Free: wholeTokens(10), Frozen: wholeTokens(4)}
	h.source.clock = vesting.Clock{CurrentBlock: 5, Now: time.Unix(1_700_000_000, 0), BlockTime: 12 * time.Second}
	h.source.lock = wholeTokens(4)
	m, _ := newStakeManager(h)

	_, err := m.ClaimVesting(context.Background(), testAccount)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	h.source.clock.CurrentBlock = 25
	overview, err := m.Vesting(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, overview.Summary.Claimable.Equal(wholeTokens(2)), overview.Summary.Claimable.String())

	result, err := m.ClaimVesting(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, vesting.ClaimCall(testPallets()).Encode(), h.source.lastSubmitted().Encode())
}
