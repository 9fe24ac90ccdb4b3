package substrate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

var ErrNoSigner = errors.New("no signing key present for account")

// Signer signs extrinsic payloads for a single account.
type Signer interface {
	Address() string
	PublicKey() PublicKey
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// MultipleWalletSigner holds keys for several accounts.
type MultipleWalletSigner interface {
	HasAccount(address string) bool
	Accounts() []string
	SignWithAccount(ctx context.Context, payload []byte, address string) ([]byte, error)
	FindFirstSigner(addresses []string) (string, error)
}

// SignWithAccount returns a Signer that delegates to the key manager for the given address.
func SignWithAccount(keyManager MultipleWalletSigner, address string, prefix uint16) (Signer, error) {
	pub, err := DecodeAddressForNetwork(address, prefix)
	if err != nil {
		return nil, err
	}
	if !keyManager.HasAccount(address) {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, address)
	}
	return &walletSigner{keyManager: keyManager, address: address, pub: pub}, nil
}

type walletSigner struct {
	keyManager MultipleWalletSigner
	address    string
	pub        PublicKey
}

func (w *walletSigner) Address() string      { return w.address }
func (w *walletSigner) PublicKey() PublicKey { return w.pub }

func (w *walletSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return w.keyManager.SignWithAccount(ctx, payload, w.address)
}

// KeySigner signs with an in-memory ed25519 key.
type KeySigner struct {
	key     ed25519.PrivateKey
	address string
}

func NewKeySigner(key ed25519.PrivateKey, prefix uint16) *KeySigner {
	var pub PublicKey
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return &KeySigner{key: key, address: EncodeAddress(pub, prefix)}
}

func (k *KeySigner) Address() string { return k.address }

func (k *KeySigner) PublicKey() PublicKey {
	var pub PublicKey
	copy(pub[:], k.key.Public().(ed25519.PublicKey))
	return pub
}

func (k *KeySigner) Sign(_ context.Context, payload []byte) ([]byte, error) {
	return ed25519.Sign(k.key, payload), nil
}
