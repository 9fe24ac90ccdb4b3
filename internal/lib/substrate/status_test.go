package substrate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTxStatus(t *testing.T) {
	tests := []struct {
		raw      string
		want     TxStatus
		hash     string
		terminal bool
	}{
		{`"future"`, TxPending, "", false},
		{`"ready"`, TxPending, "", false},
		{`{"broadcast":["12D3KooW"]}`, TxPending, "", false},
		{`{"inBlock":"0xabc"}`, TxInBlock, "0xabc", false},
		{`{"retracted":"0xabc"}`, TxPending, "0xabc", false},
		{`{"finalized":"0xdef"}`, TxFinalized, "0xdef", true},
		{`"invalid"`, TxInvalid, "", true},
		{`"dropped"`, TxDropped, "", true},
		{`{"usurped":"0x01"}`, TxDropped, "0x01", true},
		{`{"finalityTimeout":"0x02"}`, TxDropped, "0x02", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			event, err := ParseTxStatus(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Status)
			assert.Equal(t, tt.hash, event.BlockHash)
			assert.Equal(t, tt.terminal, event.Status.Terminal())
		})
	}
}

func TestParseTxStatusGarbage(t *testing.T) {
	_, err := ParseTxStatus(json.RawMessage(`12`))
	assert.Error(t, err)
	_, err = ParseTxStatus(json.RawMessage(`{}`))
	assert.Error(t, err)
}
