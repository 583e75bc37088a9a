package keystore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/awnumar/memguard"
)

const keyFileVersion = 1

// keyFile is the JSON record stored per identity, sealed or not.
type keyFile struct {
	V        int    `json:"v"`
	Identity string `json:"identity"`
	Key      []byte `json:"key"`
}

// File stores one key file per identity in a directory. File names are
// hashes of the identity, so any identity string is a valid name.
type File struct {
	dir        string
	passphrase []byte
	params     ScryptParams
	mu         sync.Mutex
}

var _ Store = (*File)(nil)

// FileOption configures a File store.
type FileOption func(*File)

// WithPassphrase seals every key file with a passphrase-derived key.
func WithPassphrase(passphrase []byte) FileOption {
	return func(f *File) {
		f.passphrase = append([]byte(nil), passphrase...)
	}
}

// WithScryptParams overrides the sealing cost.
func WithScryptParams(p ScryptParams) FileOption {
	return func(f *File) {
		f.params = p
	}
}

// NewFile returns a store rooted at dir, creating it with mode 0700.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	f := &File{dir: dir, params: DefaultScryptParams()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *File) path(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".key")
}

func (f *File) Load(identity string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := readFile(f.path(identity))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}

	if f.passphrase != nil {
		if b, err = unseal(f.passphrase, b); err != nil {
			return nil, err
		}
	}

	var rec keyFile
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	memguard.WipeBytes(b)

	if rec.Identity != identity {
		return nil, fmt.Errorf("key file belongs to %q", rec.Identity)
	}
	return rec.Key, nil
}

func (f *File) Store(identity string, key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(identity)
	if _, err := os.Stat(path); err == nil {
		return ErrExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	b, err := json.Marshal(keyFile{V: keyFileVersion, Identity: identity, Key: key})
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(b)

	if f.passphrase != nil {
		sealedBytes, err := seal(f.passphrase, b, f.params)
		if err != nil {
			return fmt.Errorf("seal key file: %w", err)
		}
		return writeNewFile(path, sealedBytes, 0o600)
	}
	return writeNewFile(path, b, 0o600)
}

func (f *File) Delete(identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(identity))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// readFile reads the file at path; a missing file is not an error.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeNewFile writes bytes via a temp file, then links it into place. The
// link fails if path exists, so a file created by another process after the
// caller's check is never replaced.
func writeNewFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return err
	}
	return nil
}
