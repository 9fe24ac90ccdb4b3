package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer rec.Close()

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, rec.RecordOutcome(&TxOutcome{At: base, Account: "alice", Kind: "claim", State: "success", Calls: 3, Amount: "100"}))
	require.NoError(t, rec.RecordOutcome(&TxOutcome{At: base.Add(time.Minute), Account: "alice", Kind: "stake", State: "dropped", Calls: 1}))
	require.NoError(t, rec.RecordOutcome(&TxOutcome{At: base, Account: "bob", Kind: "claim", State: "invalid"}))

	outcomes, err := rec.Recent("alice", 10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "stake", outcomes[0].Kind)
	assert.Equal(t, "claim", outcomes[1].Kind)
	assert.Equal(t, 3, outcomes[1].Calls)
	assert.Equal(t, "100", outcomes[1].Amount)
	assert.True(t, base.Equal(outcomes[1].At))

	limited, err := rec.Recent("alice", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	assert.NoError(t, rec.RecordOutcome(&TxOutcome{}))
	outcomes, err := rec.Recent("x", 1)
	assert.NoError(t, err)
	assert.Empty(t, outcomes)
}
