package staking

import (
	"errors"
	"fmt"
)

var (
	ErrAuthorizationDenied = errors.New("wallet denied authorization")
	ErrTransactionInvalid  = errors.New("transaction invalid")
	ErrTransactionDropped  = errors.New("transaction dropped")
	ErrDataUnavailable     = errors.New("data unavailable")

	ErrNothingToClaim = errors.New("no unclaimed rewards to claim")
	ErrClaimInFlight  = errors.New("a claim is already in progress for this account")
	ErrTxInFlight     = errors.New("a transaction is already in progress for this account")

	ErrNoRewardsToRestake   = errors.New("no unclaimed rewards to restake")
	ErrInvalidPositionCount = errors.New("invalid number of positions to restake into")
	ErrFeeExceedsRewards    = errors.New("estimated fee exceeds unclaimed rewards")
)

// ValidationError is user input out of bounds. No transaction is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransactionError is an unexpected failure while submitting or watching a transaction.
type TransactionError struct {
	Detail string
	Err    error
}

func (e *TransactionError) Error() string {
	if e.Detail == "" && e.Err != nil {
		return fmt.Sprintf("transaction failed: %v", e.Err)
	}
	return fmt.Sprintf("transaction failed: %s", e.Detail)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
