package kvs

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS eventlog (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	key   TEXT NOT NULL,
	entry BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_eventlog_key ON eventlog(key, id);
`

// SQLite is the production Store, one row per appended entry.
//
// Append order within a key is preserved by rowid. SQLite transactions
// give the all-or-nothing commit the engine's durability contract needs.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the store at path.
//
// The database is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, and a 5-second busy timeout. The connection pool is
// pinned to one connection, so commits issued from several goroutines
// run one at a time.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open kvs: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect kvs: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply kvs schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Commit applies all appends in txn as one SQL transaction.
func (s *SQLite) Commit(ctx context.Context, txn *Txn) error {
	if txn == nil || len(txn.appends) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kvs commit: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed.

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO eventlog (key, entry) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("kvs commit: prepare: %w", err)
	}
	defer stmt.Close()

	for _, op := range txn.appends {
		if _, err := stmt.ExecContext(ctx, op.key, op.data); err != nil {
			return fmt.Errorf("kvs commit: append %s: %w", op.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kvs commit: %w", err)
	}
	return nil
}

// ReadLog returns the concatenated appends for a key in append order.
func (s *SQLite) ReadLog(ctx context.Context, key string) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM eventlog WHERE key = ? ORDER BY id`, key)
	if err != nil {
		return nil, fmt.Errorf("kvs read %s: %w", key, err)
	}
	defer rows.Close()

	var log []byte
	for rows.Next() {
		var entry []byte
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("kvs read %s: %w", key, err)
		}
		log = append(log, entry...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kvs read %s: %w", key, err)
	}
	return log, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
