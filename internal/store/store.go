// Package store persists transaction histories and analysis runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"decap/analyze"
	"decap/history"
	"decap/transaction"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT UNIQUE NOT NULL,
	digest  TEXT NOT NULL,
	author  TEXT NOT NULL,
	date    INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	created_at   INTEGER NOT NULL,
	transactions INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS decapsulations (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	field_id    TEXT NOT NULL,
	field_tx    TEXT NOT NULL,
	accessor_id TEXT NOT NULL,
	accessor_tx TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	PRIMARY KEY (run_id, field_id, accessor_id)
);
`

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// DuplicateTransactionError is returned when appending a transaction whose
// id is already stored.
type DuplicateTransactionError struct {
	ID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %s already stored", e.ID)
}

// Run describes a saved analysis.
type Run struct {
	ID           string
	CreatedAt    time.Time
	Transactions int
	Fields       int
}

// Entry is one field/accessor pair of a saved analysis.
type Entry struct {
	FieldID    string
	FieldTx    string
	AccessorID string
	AccessorTx string
}

// Store wraps the SQLite database connection.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// PRAGMAs are per connection.
	conn.SetMaxOpenConns(1)

	// Fail early if connection is bad
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// DeleteRun removes a run; its decapsulations go with it.
func (s *Store) DeleteRun(id string) error {
	res, err := s.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Append stores txs after the transactions already in the store. Nothing is
// stored if any id is already present.
func (s *Store) Append(txs ...*transaction.Transaction) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range txs {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM transactions WHERE id = ?`, t.ID()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking transaction %s: %w", t.ID(), err)
		}
		if exists > 0 {
			return &DuplicateTransactionError{ID: t.ID()}
		}

		payload, err := history.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling transaction %s: %w", t.ID(), err)
		}
		digest, err := history.Digest(t)
		if err != nil {
			return fmt.Errorf("digesting transaction %s: %w", t.ID(), err)
		}

		_, err = tx.Exec(`
			INSERT INTO transactions (id, digest, author, date, payload)
			VALUES (?, ?, ?, ?, ?)
		`, t.ID(), digest, t.Author(), t.Date().UnixMilli(), string(payload))
		if err != nil {
			return fmt.Errorf("inserting transaction %s: %w", t.ID(), err)
		}
	}
	return tx.Commit()
}

// History returns every stored transaction in append order.
func (s *Store) History() ([]*transaction.Transaction, error) {
	rows, err := s.conn.Query(`SELECT id, payload FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		t, err := history.Unmarshal([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("loading transaction %s: %w", id, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Len returns the number of stored transactions.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

// Digest returns the stored content digest of a transaction.
func (s *Store) Digest(id string) (string, error) {
	var digest string
	err := s.conn.QueryRow(`SELECT digest FROM transactions WHERE id = ?`, id).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("transaction %s not stored", id)
	}
	if err != nil {
		return "", fmt.Errorf("querying transaction: %w", err)
	}
	return digest, nil
}

// SaveRun stores the result of analyzing txCount transactions and returns the
// new run id.
func (s *Store) SaveRun(result analyze.Result, txCount int) (string, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.New().String()
	if _, err := tx.Exec(`
		INSERT INTO runs (id, created_at, transactions) VALUES (?, ?, ?)
	`, id, time.Now().UnixMilli(), txCount); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, fieldID := range result.FieldIDs() {
		set := result[fieldID]
		for i, acc := range set.Accessors() {
			_, err := tx.Exec(`
				INSERT INTO decapsulations (run_id, field_id, field_tx, accessor_id, accessor_tx, ord)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, fieldID, set.Field.TransactionID, acc.ID(), acc.TransactionID, i)
			if err != nil {
				return "", fmt.Errorf("inserting decapsulation: %w", err)
			}
		}
	}
	return id, tx.Commit()
}

// Runs returns the saved runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.conn.Query(`
		SELECT r.id, r.created_at, r.transactions,
			(SELECT COUNT(DISTINCT d.field_id) FROM decapsulations d WHERE d.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at, r.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt int64
		if err := rows.Scan(&r.ID, &createdAt, &r.Transactions, &r.Fields); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunEntries returns the decapsulations saved with a run, ordered by field
// id and then by the order the accessors were found.
func (s *Store) RunEntries(id string) ([]Entry, error) {
	var exists int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	rows, err := s.conn.Query(`
		SELECT field_id, field_tx, accessor_id, accessor_tx
		FROM decapsulations WHERE run_id = ?
		ORDER BY field_id, ord
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying decapsulations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.FieldID, &e.FieldTx, &e.AccessorID, &e.AccessorTx); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
