package staking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invarch/daostake/internal/lib/substrate"
)

func TestTxRunnerPrepare(t *testing.T) {
	builder := CallBuilder{Pallets: testPallets()}
	claim := builder.ClaimStakerRewards(1)
	withdraw := builder.WithdrawUnstaked()

	t.Run("appends calls after authorization", func(t *testing.T) {
		h := newHarness()
		h.source.events = []substrate.TxEvent{{Status: substrate.TxFinalized}}
		prepared := false
		result, err := h.runner.Run(context.Background(), TxRequest{
			Kind:    "claim",
			Account: testAccount,
			Calls:   []substrate.Call{claim},
			Prepare: func(context.Context) ([]substrate.Call, error) {
				assert.Equal(t, 1, h.authorizer.calls)
				prepared = true
				return []substrate.Call{withdraw}, nil
			},
		})
		require.NoError(t, err)
		assert.True(t, prepared)
		assert.Equal(t, StateSuccess, result.State)

		want, err := builder.Batch([]substrate.Call{claim, withdraw})
		require.NoError(t, err)
		assert.Equal(t, want.Encode(), h.source.lastSubmitted().Encode())
		require.Len(t, h.recorder.outcomes, 1)
		assert.Equal(t, 2, h.recorder.outcomes[0].Calls)
	})

	t.Run("not run when denied", func(t *testing.T) {
		h := newHarness()
		h.authorizer.deny = true
		_, err := h.runner.Run(context.Background(), TxRequest{
			Kind:    "claim",
			Account: testAccount,
			Calls:   []substrate.Call{claim},
			Prepare: func(context.Context) ([]substrate.Call, error) {
				t.Fatal("prepare ran without authorization")
				return nil, nil
			},
		})
		assert.ErrorIs(t, err, ErrAuthorizationDenied)
		assert.Len(t, h.notifier.notes, 1)
	})

	t.Run("failure ends the transaction", func(t *testing.T) {
		h := newHarness()
		result, err := h.runner.Run(context.Background(), TxRequest{
			Kind:    "claim",
			Account: testAccount,
			Calls:   []substrate.Call{claim},
			Prepare: func(context.Context) ([]substrate.Call, error) {
				return nil, errors.New("no fee")
			},
		})
		var txErr *TransactionError
		assert.ErrorAs(t, err, &txErr)
		assert.Equal(t, StateError, result.State)
		assert.Empty(t, h.source.submitted)
		assert.Len(t, h.notifier.terminal(), 1)
		assert.False(t, h.runner.InFlight(testAccount))
	})
}
