package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists outcomes to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the CLI can read history while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tx_outcomes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			account    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			state      TEXT NOT NULL,
			calls      INTEGER,
			amount     TEXT,
			block_hash TEXT,
			detail     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_account_ts ON tx_outcomes(account, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordOutcome(outcome *TxOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := outcome.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO tx_outcomes
		(timestamp, account, kind, state, calls, amount, block_hash, detail)
		VALUES (?,?,?,?,?,?,?,?)`,
		at.UnixMilli(), outcome.Account, outcome.Kind, outcome.State,
		outcome.Calls, outcome.Amount, outcome.BlockHash, outcome.Detail,
	)
	return err
}

func (r *SQLiteRecorder) Recent(account string, limit int) ([]TxOutcome, error) {
	rows, err := r.db.Query(`SELECT timestamp, account, kind, state, calls, amount, block_hash, detail
		FROM tx_outcomes WHERE account = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []TxOutcome
	for rows.Next() {
		var (
			ts      int64
			outcome TxOutcome
		)
		if err := rows.Scan(&ts, &outcome.Account, &outcome.Kind, &outcome.State, &outcome.Calls,
			&outcome.Amount, &outcome.BlockHash, &outcome.Detail); err != nil {
			return nil, err
		}
		outcome.At = time.UnixMilli(ts)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
