// Package recorder keeps a history of transaction outcomes.
package recorder

import (
	"time"
)

// TxOutcome is the terminal outcome of one submitted transaction.
type TxOutcome struct {
	At        time.Time
	Account   string
	Kind      string // "claim", "stake", "unstake", "move", "withdraw", "vesting"
	State     string // "success", "invalid", "dropped", "error"
	Calls     int
	Amount    string // base units, empty when not applicable
	BlockHash string
	Detail    string
}

// Recorder persists transaction outcomes.
type Recorder interface {
	RecordOutcome(outcome *TxOutcome) error
	// Recent returns up to limit outcomes for account, newest first.
	Recent(account string, limit int) ([]TxOutcome, error)
	Close() error
}
