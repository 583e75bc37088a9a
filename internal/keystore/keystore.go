// Package keystore implements local private key storage: in memory, as one
// file per identity (optionally sealed with a passphrase), or in SQLite.
package keystore

import "errors"

var (
	// ErrNotFound is returned when no key is stored for an identity.
	ErrNotFound = errors.New("no key stored for identity")

	// ErrExists is returned when storing over an existing key.
	ErrExists = errors.New("key already stored for identity")

	// ErrWrongPassphrase is returned when a sealed key file cannot be opened.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")
)

// Store maps identities to private key material. Keys are never
// overwritten; Delete must precede a second Store for the same identity.
type Store interface {
	Load(identity string) ([]byte, error)
	Store(identity string, key []byte) error
	Delete(identity string) error
}
