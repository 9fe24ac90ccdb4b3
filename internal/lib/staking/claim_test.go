package staking

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invarch/daostake/internal/lib/substrate"
)

var wholeTokens = func(n int64) decimal.Decimal { return decimal.New(n, TokenDecimals) }

func loadedOrchestrator(t *testing.T, h *harness) *ClaimOrchestrator {
	t.Helper()
	h.source.stakes[1] = []EraStake{{Era: 7, Staked: wholeTokens(10)}}
	h.source.stakes[2] = []EraStake{{Era: 5, Staked: wholeTokens(20)}}
	h.index.err = nil
	h.index.totals = RewardTotals{TotalClaimed: wholeTokens(3), TotalUnclaimed: wholeTokens(4)}
	o := h.orchestrator()
	snap, err := o.Load(context.Background(), testAccount, []uint32{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, snap.Aggregate.Unclaimed.Positions, 2)
	return o
}

func TestClaimRewardsNothingToClaim(t *testing.T) {
	h := newHarness()
	o := h.orchestrator()

	_, err := o.ClaimRewards(context.Background(), ClaimRequest{Account: testAccount, CurrentEra: 10})
	assert.ErrorIs(t, err, ErrNothingToClaim)
	_, err = o.ClaimRewards(context.Background(), ClaimRequest{Unclaimed: UnclaimedState{Positions: []PositionEra{{PositionID: 1, EarliestEra: 3}}}, CurrentEra: 10})
	assert.ErrorIs(t, err, ErrNothingToClaim)
	// staked in the running era: listed but nothing claimable yet
	_, err = o.ClaimRewards(context.Background(), ClaimRequest{Account: testAccount, Unclaimed: UnclaimedState{Positions: []PositionEra{{PositionID: 1, EarliestEra: 10}}}, CurrentEra: 10})
	assert.ErrorIs(t, err, ErrNothingToClaim)
	assert.Zero(t, h.authorizer.calls)
	assert.Empty(t, h.notifier.notes)
}

func TestClaimRewardsSuccessAppliedOnce(t *testing.T) {
	h := newHarness()
	h.source.events = []substrate.TxEvent{
		{Status: substrate.TxPending},
		{Status: substrate.TxInBlock, BlockHash: "0xaa"},
		{Status: substrate.TxFinalized, BlockHash: "0xaa"},
		{Status: substrate.TxFinalized, BlockHash: "0xaa"},
	}
	o := loadedOrchestrator(t, h)
	// the index lags behind the chain right after the claim
	h.index.err = ErrDataUnavailable

	result, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, false))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, "0xaa", result.BlockHash)

	snap := o.Session(testAccount).Snapshot()
	assert.True(t, snap.Aggregate.Unclaimed.Empty())
	assert.True(t, snap.Totals.TotalClaimed.Equal(wholeTokens(7)), snap.Totals.TotalClaimed.String())
	assert.True(t, snap.Totals.TotalUnclaimed.IsZero())
	assert.True(t, snap.ClaimSucceeded)
	assert.False(t, snap.Waiting)
	assert.Equal(t, StateSuccess, snap.LastOutcome)

	terminal := h.notifier.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, NotifySuccess, terminal[0].Level)
	require.Len(t, h.recorder.outcomes, 1)
	assert.Equal(t, "success", h.recorder.outcomes[0].State)
	// 3 eras for position 1 (7..9) and 5 for position 2 (5..9)
	assert.Equal(t, 8, h.recorder.outcomes[0].Calls)
}

func TestClaimRewardsRefreshesIndexAfterSuccess(t *testing.T) {
	h := newHarness()
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized, BlockHash: "0xbb"}}
	o := loadedOrchestrator(t, h)
	h.index.totals = RewardTotals{TotalClaimed: wholeTokens(7)}

	_, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, false))
	require.NoError(t, err)
	snap := o.Session(testAccount).Snapshot()
	assert.True(t, snap.Totals.TotalClaimed.Equal(wholeTokens(7)))
	assert.False(t, snap.ClaimSucceeded)
}

func TestClaimRewardsFailures(t *testing.T) {
	tests := []struct {
		name      string
		deny      bool
		submitErr error
		events    []substrate.TxEvent
		state     TxState
		wantErr   error
	}{
		{
			name:    "authorization denied",
			deny:    true,
			state:   StateError,
			wantErr: ErrAuthorizationDenied,
		},
		{
			name:    "invalid",
			events:  []substrate.TxEvent{{Status: substrate.TxInvalid}},
			state:   StateInvalid,
			wantErr: ErrTransactionInvalid,
		},
		{
			name:      "rejected by pool",
			submitErr: &substrate.RPCError{Code: 1010, Message: "Invalid Transaction"},
			state:     StateInvalid,
			wantErr:   ErrTransactionInvalid,
		},
		{
			name:    "dropped after inclusion",
			events:  []substrate.TxEvent{{Status: substrate.TxInBlock, BlockHash: "0x01"}, {Status: substrate.TxDropped}},
			state:   StateDropped,
			wantErr: ErrTransactionDropped,
		},
		{
			name:   "error then success ignored",
			events: []substrate.TxEvent{{Status: substrate.TxError, Detail: "boom"}, {Status: substrate.TxFinalized}},
			state:  StateError,
		},
		{
			name:   "stream ends",
			events: []substrate.TxEvent{{Status: substrate.TxInBlock}},
			state:  StateError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.authorizer.deny = tt.deny
			h.source.submitErr = tt.submitErr
			h.source.events = tt.events
			o := loadedOrchestrator(t, h)
			before := o.Session(testAccount).Snapshot()

			result, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, false))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var txErr *TransactionError
				assert.ErrorAs(t, err, &txErr)
			}
			assert.Equal(t, tt.state, result.State)
			if tt.deny {
				assert.Empty(t, h.source.submitted)
			}

			snap := o.Session(testAccount).Snapshot()
			assert.False(t, snap.Waiting)
			assert.Equal(t, tt.state, snap.LastOutcome)
			assert.Equal(t, before.Aggregate.Unclaimed, snap.Aggregate.Unclaimed)
			assert.True(t, before.Totals.TotalClaimed.Equal(snap.Totals.TotalClaimed))
			require.Len(t, h.notifier.terminal(), 1)
			assert.Equal(t, NotifyError, h.notifier.terminal()[0].Level)
			require.Len(t, h.recorder.outcomes, 1)
			assert.Equal(t, tt.state.String(), h.recorder.outcomes[0].State)
		})
	}
}

func TestClaimRewardsInFlight(t *testing.T) {
	h := newHarness()
	o := loadedOrchestrator(t, h)

	release := make(chan struct{})
	entered := make(chan struct{})
	h.runner.authorizer = authorizerFunc(func() {
		close(entered)
		<-release
	}, h.authorizer)
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, false))
		assert.NoError(t, err)
	}()
	<-entered
	assert.True(t, o.Session(testAccount).Snapshot().Waiting)

	_, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, false))
	assert.ErrorIs(t, err, ErrClaimInFlight)
	close(release)
	wg.Wait()
	assert.False(t, o.Session(testAccount).Snapshot().Waiting)
	assert.Len(t, h.notifier.terminal(), 1)
}

type blockingAuthorizer struct {
	before func()
	next   WalletAuthorizer
}

func authorizerFunc(before func(), next WalletAuthorizer) WalletAuthorizer {
	return &blockingAuthorizer{before: before, next: next}
}

func (b *blockingAuthorizer) Authorize(ctx context.Context, account string, description string) (substrate.Signer, error) {
	b.before()
	return b.next.Authorize(ctx, account, description)
}

func TestClaimRewardsAutoRestake(t *testing.T) {
	h := newHarness()
	fee := decimal.New(1, 10)
	h.source.fee = &fee
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
	o := loadedOrchestrator(t, h)

	req := o.RequestFor(testAccount, true)
	_, err := o.ClaimRewards(context.Background(), req)
	require.NoError(t, err)

	builder := CallBuilder{Pallets: testPallets()}
	calls := builder.ClaimCalls(req.Unclaimed, req.CurrentEra)
	// (4 tokens - 0.012 tokens) / 2
	amount, err := AllocateRestake(wholeTokens(4), &fee, 2)
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.New(1994, 9)), amount.String())
	for _, id := range []uint32{1, 2} {
		call, err := builder.Stake(id, amount)
		require.NoError(t, err)
		calls = append(calls, call)
	}
	want, err := builder.Batch(calls)
	require.NoError(t, err)
	assert.Equal(t, want.Encode(), h.source.lastSubmitted().Encode())
}

func TestClaimRewardsRestakeSkipped(t *testing.T) {
	h := newHarness()
	fee := wholeTokens(10)
	h.source.fee = &fee
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
	o := loadedOrchestrator(t, h)

	req := o.RequestFor(testAccount, true)
	_, err := o.ClaimRewards(context.Background(), req)
	require.NoError(t, err)

	builder := CallBuilder{Pallets: testPallets()}
	want, err := builder.Batch(builder.ClaimCalls(req.Unclaimed, req.CurrentEra))
	require.NoError(t, err)
	assert.Equal(t, want.Encode(), h.source.lastSubmitted().Encode())

	var skipped []Notification
	for _, note := range h.notifier.notes {
		if note.Kind == "restake" {
			skipped = append(skipped, note)
		}
	}
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0].Err, ErrFeeExceedsRewards)
	assert.False(t, skipped[0].Terminal)
}

func TestClaimRewardsDeniedWithRestake(t *testing.T) {
	tests := []struct {
		name     string
		noStakes bool
	}{
		{name: "eligible positions"},
		{name: "no eligible positions", noStakes: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			fee := decimal.New(1, 10)
			h.source.fee = &fee
			h.authorizer.deny = true
			o := loadedOrchestrator(t, h)
			before := o.Session(testAccount).Snapshot()

			req := o.RequestFor(testAccount, true)
			if tt.noStakes {
				for id := range req.PositionStakes {
					req.PositionStakes[id] = decimal.Zero
				}
			}
			result, err := o.ClaimRewards(context.Background(), req)
			assert.ErrorIs(t, err, ErrAuthorizationDenied)
			assert.Equal(t, StateError, result.State)

			assert.Zero(t, h.source.feeEstimates())
			assert.Empty(t, h.source.submitted)
			require.Len(t, h.notifier.notes, 1)
			assert.True(t, h.notifier.notes[0].Terminal)
			assert.Equal(t, "claim", h.notifier.notes[0].Kind)
			assert.Equal(t, before.Aggregate.Unclaimed, o.Session(testAccount).Snapshot().Aggregate.Unclaimed)
		})
	}
}

func TestClaimRewardsRestakeAfterAuthorization(t *testing.T) {
	h := newHarness()
	fee := decimal.New(1, 10)
	h.source.fee = &fee
	h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
	o := loadedOrchestrator(t, h)

	estimatesAtAuthorization := -1
	h.runner.authorizer = authorizerFunc(func() {
		estimatesAtAuthorization = h.source.feeEstimates()
	}, h.authorizer)

	_, err := o.ClaimRewards(context.Background(), o.RequestFor(testAccount, true))
	require.NoError(t, err)
	assert.Equal(t, 0, estimatesAtAuthorization)
	assert.Equal(t, 1, h.source.feeEstimates())
}
