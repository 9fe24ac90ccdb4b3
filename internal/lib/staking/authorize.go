package staking

import (
	"context"
	"fmt"

	"github.com/invarch/daostake/internal/lib/substrate"
)

// WalletAuthorizer returns a signer for account or ErrAuthorizationDenied.
type WalletAuthorizer interface {
	Authorize(ctx context.Context, account string, description string) (substrate.Signer, error)
}

// ConfirmFunc asks the user to approve signing. Returning false denies authorization.
type ConfirmFunc func(account string, description string) bool

// KeyStoreAuthorizer authorizes accounts whose keys are in the local key store, optionally
// asking for confirmation first.
type KeyStoreAuthorizer struct {
	Keys    substrate.MultipleWalletSigner
	Prefix  uint16
	Confirm ConfirmFunc
}

func (k *KeyStoreAuthorizer) Authorize(ctx context.Context, account string, description string) (substrate.Signer, error) {
	if !k.Keys.HasAccount(account) {
		return nil, fmt.Errorf("%w: no key for %s", ErrAuthorizationDenied, account)
	}
	if k.Confirm != nil && !k.Confirm(account, description) {
		return nil, fmt.Errorf("%w: rejected by user", ErrAuthorizationDenied)
	}
	signer, err := substrate.SignWithAccount(k.Keys, account, k.Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorizationDenied, err)
	}
	return signer, nil
}
