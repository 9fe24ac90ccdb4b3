package substrate

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormattedAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "0"},
		{"1000000000000", "1"},
		{"1500000000000", "1.5"},
		{"123", "0.000000000123"},
		{"5000000000000000", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormattedAmount(decimal.RequireFromString(tt.amount), 12))
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 1.25 ", 12)
	require.NoError(t, err)
	assert.Equal(t, "1250000000000", amount.String())

	_, err = ParseAmount("abc", 12)
	assert.Error(t, err)
}

func TestParseStorageChangeSet(t *testing.T) {
	raw := json.RawMessage(`{"block":"0x01","changes":[["0xaabb","0x0102"],["0xccdd",null]]}`)
	changes, err := ParseStorageChangeSet(raw)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, StorageKey{0xaa, 0xbb}, changes[0].Key)
	assert.Equal(t, []byte{1, 2}, changes[0].Value)
	assert.Nil(t, changes[1].Value)
	assert.Equal(t, "0x01", changes[1].Block)
}

func TestClientChainHelpers(t *testing.T) {
	srv := fakeNode(t, func(conn *websocket.Conn, req rpcRequest) {
		switch req.Method {
		case "state_getStorage":
			if req.Params[0] == "0x01" {
				respond(conn, req.ID, "0x2a000000")
			} else {
				respond(conn, req.ID, nil)
			}
		case "payment_queryInfo":
			respond(conn, req.ID, map[string]any{"weight": 1, "class": "normal", "partialFee": "15800000000"})
		case "chain_getHeader":
			respond(conn, req.ID, map[string]any{"number": "0x1f4"})
		case "state_getRuntimeVersion":
			respond(conn, req.ID, map[string]any{"specName": "invarch", "specVersion": 21, "transactionVersion": 2})
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, testLogger(), wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	value, err := client.GetStorage(ctx, StorageKey{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, value)

	value, err = client.GetStorage(ctx, StorageKey{0x02})
	require.NoError(t, err)
	assert.Nil(t, value)

	fee, err := client.QueryFee(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(15800000000), fee)

	number, err := client.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), number)

	version, err := client.RuntimeVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(21), version.SpecVersion)
	assert.Equal(t, uint32(2), version.TransactionVersion)
}

func TestSubmitAndWatch(t *testing.T) {
	srv := fakeNode(t, func(conn *websocket.Conn, req rpcRequest) {
		switch req.Method {
		case "author_submitAndWatchExtrinsic":
			respond(conn, req.ID, "tx1")
			notify(conn, "author_extrinsicUpdate", "tx1", "ready")
			notify(conn, "author_extrinsicUpdate", "tx1", map[string]any{"inBlock": "0xaa"})
			notify(conn, "author_extrinsicUpdate", "tx1", map[string]any{"finalized": "0xaa"})
		case "author_unwatchExtrinsic":
			respond(conn, req.ID, true)
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, testLogger(), wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	events, err := client.SubmitAndWatch(ctx, []byte{1})
	require.NoError(t, err)

	var statuses []TxStatus
	for event := range events {
		statuses = append(statuses, event.Status)
	}
	assert.Equal(t, []TxStatus{TxPending, TxInBlock, TxFinalized}, statuses)
}

func TestSubmitAndWatchUnreadEvents(t *testing.T) {
	unwatched := make(chan struct{}, 1)
	srv := fakeNode(t, func(conn *websocket.Conn, req rpcRequest) {
		switch req.Method {
		case "author_submitAndWatchExtrinsic":
			respond(conn, req.ID, "tx1")
			for range 12 {
				notify(conn, "author_extrinsicUpdate", "tx1", "ready")
			}
		case "author_unwatchExtrinsic":
			respond(conn, req.ID, true)
			unwatched <- struct{}{}
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, testLogger(), wsURL(srv), nil)
	require.NoError(t, err)
	defer client.Close()

	watchCtx, stopWatching := context.WithCancel(ctx)
	events, err := client.SubmitAndWatch(watchCtx, []byte{1})
	require.NoError(t, err)

	// nobody reads: the buffer fills up and the watcher waits on the next send
	assert.Eventually(t, func() bool { return len(events) == cap(events) }, 2*time.Second, 10*time.Millisecond)
	stopWatching()

	select {
	case <-unwatched:
	case <-ctx.Done():
		t.Fatal("watcher did not stop after cancellation")
	}
}
