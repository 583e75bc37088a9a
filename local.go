package e3kit

import (
	"context"
	"errors"
	"time"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
	"github.com/vaultsandbox/e3kit-go/internal/storage"
)

// LocalBackend is an in-process Directory and CloudStore. It is meant for
// tests and single-process applications; every call requires a token in
// the context, as EThree always attaches one.
type LocalBackend struct {
	store storage.Store
}

var (
	_ Directory  = (*LocalBackend)(nil)
	_ CloudStore = (*LocalBackend)(nil)
)

// NewLocalBackend returns an empty in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{store: storage.NewMemory()}
}

// OpenLocalBackend returns a backend persisted in the SQLite database at
// path.
func OpenLocalBackend(path string) (*LocalBackend, error) {
	s, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{store: s}, nil
}

// Close releases the backing store.
func (b *LocalBackend) Close() error {
	return b.store.Close()
}

// Publish stores a card for publicKey. A non-empty previousCardID must be
// the identity's newest card or ErrCardConflict is returned.
func (b *LocalBackend) Publish(ctx context.Context, identity string, publicKey []byte, previousCardID string) (*Card, error) {
	if err := requireToken(ctx); err != nil {
		return nil, err
	}
	if _, err := crypto.ParsePublicKey(publicKey); err != nil {
		return nil, err
	}

	c, err := b.store.PublishCard(ctx, storage.Card{
		ID:             crypto.CardID(identity, publicKey),
		Identity:       identity,
		PublicKey:      publicKey,
		PreviousCardID: previousCardID,
		CreatedAt:      time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrConflict) {
		return nil, ErrCardConflict
	}
	if err != nil {
		return nil, err
	}
	return fromStorageCard(c), nil
}

// Lookup returns the newest card of each identity that has one.
func (b *LocalBackend) Lookup(ctx context.Context, identities []string) (map[string]*Card, error) {
	if err := requireToken(ctx); err != nil {
		return nil, err
	}
	found, err := b.store.LatestCards(ctx, identities)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Card, len(found))
	for id, c := range found {
		out[id] = fromStorageCard(c)
	}
	return out, nil
}

// Get returns the entry or ErrCloudEntryNotFound.
func (b *LocalBackend) Get(ctx context.Context, identity, name string) (*CloudEntry, error) {
	if err := requireToken(ctx); err != nil {
		return nil, err
	}
	e, err := b.store.GetEntry(ctx, identity, name)
	if err != nil {
		return nil, cloudStoreError(err)
	}
	return fromStorageEntry(e), nil
}

// Put writes the entry if its version equals expectedVersion; an empty
// expectedVersion creates it. Mismatches return ErrCloudConflict.
func (b *LocalBackend) Put(ctx context.Context, identity, name string, data []byte, expectedVersion string) (*CloudEntry, error) {
	if err := requireToken(ctx); err != nil {
		return nil, err
	}
	e, err := b.store.PutEntry(ctx, identity, name, data, expectedVersion)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCloudConflict
	}
	if err != nil {
		return nil, cloudStoreError(err)
	}
	return fromStorageEntry(e), nil
}

// Delete removes the entry if it is still at expectedVersion.
func (b *LocalBackend) Delete(ctx context.Context, identity, name, expectedVersion string) error {
	if err := requireToken(ctx); err != nil {
		return err
	}
	return cloudStoreError(b.store.DeleteEntry(ctx, identity, name, expectedVersion))
}

func requireToken(ctx context.Context) error {
	if _, ok := TokenFromContext(ctx); !ok {
		return ErrUnauthorized
	}
	return nil
}

func cloudStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrCloudEntryNotFound
	case errors.Is(err, storage.ErrConflict):
		return ErrCloudConflict
	}
	return err
}

func fromStorageCard(c storage.Card) *Card {
	return &Card{
		ID:             c.ID,
		Identity:       c.Identity,
		PublicKey:      c.PublicKey,
		PreviousCardID: c.PreviousCardID,
		CreatedAt:      c.CreatedAt,
	}
}

func fromStorageEntry(e storage.Entry) *CloudEntry {
	return &CloudEntry{
		Name:      e.Name,
		Data:      e.Data,
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt,
	}
}
