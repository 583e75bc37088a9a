package e3kit

import (
	"context"
	"errors"
	"time"
)

// Errors returned by collaborator implementations.
var (
	// ErrKeyNotStored is returned by KeyStorage.Load when no key is stored.
	ErrKeyNotStored = errors.New("no key stored")

	// ErrCloudEntryNotFound is returned by CloudStore when an entry does not
	// exist.
	ErrCloudEntryNotFound = errors.New("cloud entry not found")

	// ErrCloudConflict is returned by CloudStore when the expected version
	// does not match or a create-only write finds an existing entry.
	ErrCloudConflict = errors.New("cloud entry version conflict")

	// ErrCardConflict is returned by Directory.Publish when the previous card
	// is no longer the identity's newest.
	ErrCardConflict = errors.New("card was superseded")
)

// KeyStorage is local, durable storage of private keys by identity.
// Store must not overwrite an existing key.
type KeyStorage interface {
	Load(identity string) ([]byte, error)
	Store(identity string, key []byte) error
	Delete(identity string) error
}

// Card binds an identity to a public key in the directory.
type Card struct {
	ID             string
	Identity       string
	PublicKey      []byte
	PreviousCardID string
	CreatedAt      time.Time
}

// Directory publishes and resolves cards.
type Directory interface {
	// Publish is idempotent per (identity, publicKey). A non-empty
	// previousCardID replaces that card and fails with ErrCardConflict when
	// it is not the newest.
	Publish(ctx context.Context, identity string, publicKey []byte, previousCardID string) (*Card, error)

	// Lookup returns the newest card of each identity. Identities without a
	// card are absent from the map.
	Lookup(ctx context.Context, identities []string) (map[string]*Card, error)
}

// CloudEntry is a versioned blob in the cloud store.
type CloudEntry struct {
	Name      string
	Data      []byte
	Version   string
	UpdatedAt time.Time
}

// CloudStore is a raw versioned key-value store scoped by identity.
type CloudStore interface {
	Get(ctx context.Context, identity, name string) (*CloudEntry, error)

	// Put writes data if the entry's version equals expectedVersion. An
	// empty expectedVersion creates the entry.
	Put(ctx context.Context, identity, name string, data []byte, expectedVersion string) (*CloudEntry, error)

	Delete(ctx context.Context, identity, name, expectedVersion string) error
}

// KeyPair is a raw key pair as handled by a CryptoProvider.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// CryptoProvider supplies the primitives. Decrypt must return an error
// matching ErrVerification when the signature is missing or wrong, and one
// matching ErrDecryption otherwise.
type CryptoProvider interface {
	GenerateKeyPair() (*KeyPair, error)

	// DeriveKeyPair is deterministic in (password, scope). EThree passes
	// the identity as scope.
	DeriveKeyPair(ctx context.Context, password, scope string) (*KeyPair, error)

	PublicKey(privateKey []byte) ([]byte, error)

	// Encrypt encrypts to every recipient and signs with signer unless it
	// is nil.
	Encrypt(plaintext []byte, signer *KeyPair, recipients [][]byte) ([]byte, error)

	Decrypt(ciphertext []byte, recipient *KeyPair, expectedSigner []byte) ([]byte, error)
}

// TokenSource supplies bearer tokens for the directory and cloud store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken returns a TokenSource that always yields tok.
func StaticToken(tok string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return tok, nil })
}

type tokenKey struct{}

// ContextWithToken attaches a bearer token to ctx. EThree does this before
// every directory or cloud call.
func ContextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

// TokenFromContext returns the token attached by ContextWithToken.
// Directory and CloudStore implementations use it to authenticate.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}
