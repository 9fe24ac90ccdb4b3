/*
 * Copyright (c) 2024. InvArch Association.
 * All Rights reserved.
 */

package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"golang.org/x/crypto/ed25519"

	"github.com/invarch/daostake/internal/lib/misc"
)

// KeyEnvPrefix is the prefix of environment variables (or .env entries) holding account keys.
const KeyEnvPrefix = "DAOSTAKE_KEY"

func NewLocalKeyStore(log *slog.Logger, prefix uint16) MultipleWalletSigner {
	keyStore := &localKeyStore{
		log:    log,
		prefix: prefix,
		keys:   map[string]ed25519.PrivateKey{},
	}
	keyStore.loadFromEnvironment()
	return keyStore
}

type localKeyStore struct {
	log    *slog.Logger
	prefix uint16

	keys map[string]ed25519.PrivateKey
}

func (lk *localKeyStore) HasAccount(address string) bool {
	_, found := lk.keys[address]
	return found
}

func (lk *localKeyStore) Accounts() []string {
	var accounts []string
	for addr := range lk.keys {
		accounts = append(accounts, addr)
	}
	slices.Sort(accounts)
	return accounts
}

func (lk *localKeyStore) SignWithAccount(_ context.Context, payload []byte, address string) ([]byte, error) {
	key, found := lk.keys[address]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, address)
	}
	return ed25519.Sign(key, payload), nil
}

func (lk *localKeyStore) FindFirstSigner(addresses []string) (string, error) {
	for _, addr := range addresses {
		if lk.HasAccount(addr) {
			return addr, nil
		}
	}
	return "", ErrNoSigner
}

// loadFromEnvironment loads keys from variables starting with DAOSTAKE_KEY. A value is either a
// 0x prefixed 32 byte ed25519 seed or a 25 word mnemonic.
func (lk *localKeyStore) loadFromEnvironment() {
	var numKeys int
	for _, envKey := range misc.SecretKeys(KeyEnvPrefix) {
		value := strings.TrimSpace(misc.GetSecret(envKey))
		if value == "" {
			continue
		}
		if err := lk.addKey(value); err != nil {
			misc.Errorf(lk.log, "unable to load key from %s, err:%v", envKey, err)
			continue
		}
		numKeys++
	}
	misc.Infof(lk.log, "loaded %d signing keys", numKeys)
}

func (lk *localKeyStore) addKey(value string) error {
	key, err := parsePrivateKey(value)
	if err != nil {
		return err
	}
	signer := NewKeySigner(key, lk.prefix)
	lk.keys[signer.Address()] = key
	misc.Infof(lk.log, "Added key for account:%s", signer.Address())
	return nil
}

func parsePrivateKey(value string) (ed25519.PrivateKey, error) {
	if strings.HasPrefix(value, "0x") {
		seed, err := DecodeHex(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hex seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	key, err := mnemonic.ToPrivateKey(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mnemonic: %w", err)
	}
	return key, nil
}
