package substrate

import (
	"bytes"
	"context"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"
)

func TestLocalKeyStore(t *testing.T) {
	seedKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, 32))
	mnemonicKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{2}, 32))
	words, err := mnemonic.FromPrivateKey(mnemonicKey)
	require.NoError(t, err)

	t.Setenv("DAOSTAKE_KEY_SEED", EncodeHex(bytes.Repeat([]byte{1}, 32)))
	t.Setenv("DAOSTAKE_KEY_WORDS", words)
	t.Setenv("DAOSTAKE_KEY_BAD", "0x1234")

	store := NewLocalKeyStore(testLogger(), 117)
	seedAddr := NewKeySigner(seedKey, 117).Address()
	mnemonicAddr := NewKeySigner(mnemonicKey, 117).Address()

	assert.ElementsMatch(t, []string{seedAddr, mnemonicAddr}, store.Accounts())
	assert.True(t, store.HasAccount(seedAddr))

	first, err := store.FindFirstSigner([]string{"unknown", mnemonicAddr, seedAddr})
	require.NoError(t, err)
	assert.Equal(t, mnemonicAddr, first)

	_, err = store.FindFirstSigner([]string{"unknown"})
	assert.ErrorIs(t, err, ErrNoSigner)

	signer, err := SignWithAccount(store, seedAddr, 117)
	require.NoError(t, err)
	sig, err := signer.Sign(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(seedKey.Public().(ed25519.PublicKey), []byte("payload"), sig))

	_, err = SignWithAccount(store, NewKeySigner(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, 32)), 117).Address(), 117)
	assert.ErrorIs(t, err, ErrNoSigner)
}
