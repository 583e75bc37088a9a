package e3kit

import (
	"context"
	"errors"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

// errAuthFailed is returned when the credential cannot open an existing
// entry. It is never confused with a missing entry.
var errAuthFailed = errors.New("credential does not open the entry")

// cloudSync is a CloudStore view scoped to one recovery credential. Every
// payload is encrypted to the credential and signed by it, so only the same
// password can read or authenticate it.
type cloudSync struct {
	store    CloudStore
	crypto   CryptoProvider
	identity string
	cred     *KeyPair
}

func (s *cloudSync) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.store.Get(ctx, s.identity, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCloudEntryNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Retrieve returns the decrypted payload and the entry version for a later
// Replace or Delete.
func (s *cloudSync) Retrieve(ctx context.Context, name string) ([]byte, string, error) {
	entry, err := s.store.Get(ctx, s.identity, name)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.crypto.Decrypt(entry.Data, s.cred, s.cred.PublicKey)
	if err != nil {
		return nil, "", errAuthFailed
	}
	return payload, entry.Version, nil
}

// Store creates the entry. It fails with ErrCloudConflict if it exists.
func (s *cloudSync) Store(ctx context.Context, name string, payload []byte) error {
	return s.put(ctx, name, payload, "")
}

// Replace overwrites the entry if it is still at version.
func (s *cloudSync) Replace(ctx context.Context, name string, payload []byte, version string) error {
	return s.put(ctx, name, payload, version)
}

func (s *cloudSync) Delete(ctx context.Context, name, version string) error {
	return s.store.Delete(ctx, s.identity, name, version)
}

func (s *cloudSync) put(ctx context.Context, name string, payload []byte, version string) error {
	data, err := s.crypto.Encrypt(payload, s.cred, [][]byte{s.cred.PublicKey})
	if err != nil {
		return collaboratorError(CollaboratorCrypto, "seal backup", err)
	}
	_, err = s.store.Put(ctx, s.identity, name, data, version)
	return err
}

// wipe clears the credential's private key.
func (s *cloudSync) wipe() {
	crypto.Wipe(s.cred.PrivateKey)
}
