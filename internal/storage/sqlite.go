package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - cards and entries
const currentSchemaVersion = 1

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - a single connection, so compare-and-swap writes are serialized
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
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *SQLite) PublishCard(ctx context.Context, card Card) (Card, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Card{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanCard(tx.QueryRowContext(ctx,
		`SELECT id, identity, public_key, previous_card_id, created_at FROM cards WHERE id = ?`, card.ID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Card{}, fmt.Errorf("query card: %w", err)
	}

	if card.PreviousCardID != "" {
		var latest string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM cards WHERE identity = ? ORDER BY seq DESC LIMIT 1`, card.Identity).Scan(&latest)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Card{}, fmt.Errorf("query latest card: %w", err)
		}
		if latest != card.PreviousCardID {
			return Card{}, fmt.Errorf("%w: %s is not the newest card of %q", ErrConflict, card.PreviousCardID, card.Identity)
		}
	}

	card.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cards (id, identity, public_key, previous_card_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		card.ID, card.Identity, card.PublicKey, card.PreviousCardID, card.CreatedAt.UnixMilli())
	if err != nil {
		return Card{}, fmt.Errorf("insert card: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Card{}, fmt.Errorf("commit: %w", err)
	}
	return card, nil
}

func (s *SQLite) LatestCards(ctx context.Context, identities []string) (map[string]Card, error) {
	out := make(map[string]Card, len(identities))
	if len(identities) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identities)), ",")
	args := make([]any, len(identities))
	for i, id := range identities {
		args[i] = id
	}

	query := `SELECT c.id, c.identity, c.public_key, c.previous_card_id, c.created_at
		FROM cards c
		WHERE c.identity IN (` + placeholders + `)
		  AND c.seq = (SELECT MAX(seq) FROM cards WHERE identity = c.identity)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out[card.Identity] = card
	}
	return out, rows.Err()
}

func (s *SQLite) GetEntry(ctx context.Context, identity, name string) (Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT identity, name, data, version, updated_at FROM entries WHERE identity = ? AND name = ?`,
		identity, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query entry: %w", err)
	}
	return e, nil
}

func (s *SQLite) PutEntry(ctx context.Context, identity, name string, data []byte, expectedVersion string) (Entry, error) {
	e := Entry{
		Identity:  identity,
		Name:      name,
		Data:      append([]byte{}, data...),
		Version:   uuid.NewString(),
		UpdatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if expectedVersion == "" {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO entries (identity, name, data, version, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (identity, name) DO NOTHING`,
			e.Identity, e.Name, e.Data, e.Version, e.UpdatedAt.UnixMilli())
		if err != nil {
			return Entry{}, fmt.Errorf("insert entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Entry{}, fmt.Errorf("%w: entry exists", ErrConflict)
		}
		return e, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET data = ?, version = ?, updated_at = ? WHERE identity = ? AND name = ? AND version = ?`,
		e.Data, e.Version, e.UpdatedAt.UnixMilli(), identity, name, expectedVersion)
	if err != nil {
		return Entry{}, fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Entry{}, s.missOrConflict(ctx, identity, name)
	}
	return e, nil
}

func (s *SQLite) DeleteEntry(ctx context.Context, identity, name, version string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE identity = ? AND name = ? AND version = ?`, identity, name, version)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missOrConflict(ctx, identity, name)
	}
	return nil
}

// missOrConflict explains a compare-and-swap write that touched no row.
func (s *SQLite) missOrConflict(ctx context.Context, identity, name string) error {
	if _, err := s.GetEntry(ctx, identity, name); err != nil {
		return err
	}
	return fmt.Errorf("%w: version mismatch", ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (Card, error) {
	var c Card
	var created int64
	if err := row.Scan(&c.ID, &c.Identity, &c.PublicKey, &c.PreviousCardID, &created); err != nil {
		return Card{}, err
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	return c, nil
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var updated int64
	if err := row.Scan(&e.Identity, &e.Name, &e.Data, &e.Version, &updated); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}
