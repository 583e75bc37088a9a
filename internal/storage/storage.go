// Package storage holds the state behind the reference collaborators: the
// append-only card directory and the versioned cloud key entries.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an expected version does not match, when a
	// create-only write finds an existing entry, or when a card names a
	// previous card that is not the identity's newest.
	ErrConflict = errors.New("conflict")
)

// Card binds an identity to a public key. Cards are never modified; a newer
// card for the same identity supersedes the older one.
type Card struct {
	ID             string
	Identity       string
	PublicKey      []byte
	PreviousCardID string
	CreatedAt      time.Time
}

// Entry is a versioned blob. Every successful write assigns a new opaque
// version.
type Entry struct {
	Identity  string
	Name      string
	Data      []byte
	Version   string
	UpdatedAt time.Time
}

// Store is the persistence contract shared by the memory and SQLite
// backends.
type Store interface {
	// PublishCard appends card. A card whose ID already exists is returned
	// unchanged. A non-empty PreviousCardID must name the identity's newest
	// card.
	PublishCard(ctx context.Context, card Card) (Card, error)

	// LatestCards returns the newest card of every identity that has one.
	LatestCards(ctx context.Context, identities []string) (map[string]Card, error)

	// GetEntry returns an entry or ErrNotFound.
	GetEntry(ctx context.Context, identity, name string) (Entry, error)

	// PutEntry writes data when the current version equals expectedVersion.
	// An empty expectedVersion creates the entry and fails with ErrConflict
	// if it exists.
	PutEntry(ctx context.Context, identity, name string, data []byte, expectedVersion string) (Entry, error)

	// DeleteEntry removes an entry when its version equals version.
	DeleteEntry(ctx context.Context, identity, name, version string) error

	Close() error
}
