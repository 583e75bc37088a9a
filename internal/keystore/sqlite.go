package keystore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

const keysSchema = `
CREATE TABLE IF NOT EXISTS private_keys (
    identity   TEXT    PRIMARY KEY,
    key        BLOB    NOT NULL,
    created_at INTEGER NOT NULL
);`

// SQLite stores keys in a SQLite database. It suits applications that
// already keep their local state in one file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens the key database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		keysSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load(identity string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRow(`SELECT key FROM private_keys WHERE identity = ?`, identity).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query key: %w", err)
	}
	return key, nil
}

func (s *SQLite) Store(identity string, key []byte) error {
	_, err := s.db.Exec(`INSERT INTO private_keys (identity, key, created_at) VALUES (?, ?, ?)`,
		identity, key, time.Now().UnixMilli())
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return ErrExists
		}
	}
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(identity string) error {
	res, err := s.db.Exec(`DELETE FROM private_keys WHERE identity = ?`, identity)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
