package e3kit

import (
	"errors"
	"io"

	"github.com/vaultsandbox/e3kit-go/internal/keylock"
	"github.com/vaultsandbox/e3kit-go/internal/keystore"
)

// LocalKeyStorage is the built-in KeyStorage. Managers using the same
// LocalKeyStorage share its per-identity locks, whichever Factory created
// them.
type LocalKeyStorage struct {
	store keystore.Store
	locks keylock.Table
}

var _ KeyStorage = (*LocalKeyStorage)(nil)

// NewMemoryKeyStorage keeps keys in process memory. Keys are wiped on
// Delete and lost on exit.
func NewMemoryKeyStorage() *LocalKeyStorage {
	return &LocalKeyStorage{store: keystore.NewMemory()}
}

// NewFileKeyStorage keeps one file per identity in dir. A non-empty
// passphrase seals every file with scrypt and ChaCha20-Poly1305.
func NewFileKeyStorage(dir string, passphrase []byte) (*LocalKeyStorage, error) {
	var opts []keystore.FileOption
	if len(passphrase) > 0 {
		opts = append(opts, keystore.WithPassphrase(passphrase))
	}
	f, err := keystore.NewFile(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &LocalKeyStorage{store: f}, nil
}

// OpenSQLiteKeyStorage keeps keys in the SQLite database at path.
func OpenSQLiteKeyStorage(path string) (*LocalKeyStorage, error) {
	db, err := keystore.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &LocalKeyStorage{store: db}, nil
}

// Load returns the key for identity or ErrKeyNotStored.
func (s *LocalKeyStorage) Load(identity string) ([]byte, error) {
	key, err := s.store.Load(identity)
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, ErrKeyNotStored
	}
	return key, err
}

// Store saves key for identity. It fails if a key is already stored.
func (s *LocalKeyStorage) Store(identity string, key []byte) error {
	return s.store.Store(identity, key)
}

// Delete removes the key for identity or returns ErrKeyNotStored.
func (s *LocalKeyStorage) Delete(identity string) error {
	err := s.store.Delete(identity)
	if errors.Is(err, keystore.ErrNotFound) {
		return ErrKeyNotStored
	}
	return err
}

func (s *LocalKeyStorage) lockTable() *keylock.Table {
	return &s.locks
}

// Close releases the database of a SQLite storage. It is a no-op otherwise.
func (s *LocalKeyStorage) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
