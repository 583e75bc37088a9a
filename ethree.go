package e3kit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
	"github.com/vaultsandbox/e3kit-go/internal/keylock"
)

// State is the lifecycle state of an identity on this device.
type State int

const (
	// StateUninitialized is reported when key storage cannot be read.
	StateUninitialized State = iota
	// StateNoLocalKey means no private key is stored for the identity.
	StateNoLocalKey
	// StateBootstrapped means a private key is stored for the identity.
	StateBootstrapped
)

func (s State) String() string {
	switch s {
	case StateNoLocalKey:
		return "no_local_key"
	case StateBootstrapped:
		return "bootstrapped"
	default:
		return "uninitialized"
	}
}

// EThree manages the keys of one identity: bootstrap, backup and restore,
// and encryption. It is safe for concurrent use.
//
// The state is not cached. It is read from key storage on every call, so a
// key stored by another process is picked up immediately.
type EThree struct {
	identity  string
	tokens    TokenSource
	keys      KeyStorage
	directory Directory
	cloud     CloudStore
	crypto    CryptoProvider
	locks     *keylock.Table
	log       *slog.Logger
}

// Identity returns the identity the manager is bound to.
func (e *EThree) Identity() string {
	return e.identity
}

// HasLocalPrivateKey reports whether a private key is stored for the
// identity.
func (e *EThree) HasLocalPrivateKey() (bool, error) {
	key, err := e.loadKey()
	if err != nil {
		return false, err
	}
	crypto.Wipe(key)
	return key != nil, nil
}

// State returns the current lifecycle state.
func (e *EThree) State() State {
	ok, err := e.HasLocalPrivateKey()
	switch {
	case err != nil:
		return StateUninitialized
	case ok:
		return StateBootstrapped
	default:
		return StateNoLocalKey
	}
}

// Bootstrap makes sure a usable key pair exists. With a stored key it
// returns immediately without network calls. Otherwise it generates a key
// pair, publishes the public key and then stores the private key.
//
// If publishing fails nothing is stored. If storing fails the card stays
// published and a *BootstrapError is returned.
func (e *EThree) Bootstrap(ctx context.Context) (State, error) {
	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return e.State(), err
	}
	defer unlock()

	key, err := e.loadKey()
	if err != nil {
		return StateUninitialized, err
	}
	if key != nil {
		crypto.Wipe(key)
		e.log.Debug("bootstrap: local key present")
		return StateBootstrapped, nil
	}

	ctx, err = e.authorize(ctx, "bootstrap")
	if err != nil {
		return StateNoLocalKey, err
	}
	if err := e.publishAndStore(ctx, "bootstrap", ""); err != nil {
		return StateNoLocalKey, err
	}
	return StateBootstrapped, nil
}

// Register publishes a first card for the identity and stores its key. It
// fails if a local key exists or the identity already has a card.
func (e *EThree) Register(ctx context.Context) error {
	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.requireNoLocalKey(); err != nil {
		return err
	}
	ctx, err = e.authorize(ctx, "register")
	if err != nil {
		return err
	}
	card, err := e.currentCard(ctx, "register")
	if err != nil {
		return err
	}
	if card != nil {
		return &IdentityAlreadyRegisteredError{Identity: e.identity}
	}
	return e.publishAndStore(ctx, "register", "")
}

// RotatePrivateKey replaces a lost key: it generates a new key pair,
// publishes a card superseding the current one and stores the new key.
// Ciphertexts for the old key can no longer be decrypted. It fails if a
// local key exists or the identity has no card.
func (e *EThree) RotatePrivateKey(ctx context.Context) error {
	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.requireNoLocalKey(); err != nil {
		return err
	}
	ctx, err = e.authorize(ctx, "rotate")
	if err != nil {
		return err
	}
	card, err := e.currentCard(ctx, "rotate")
	if err != nil {
		return err
	}
	if card == nil {
		return &IdentityNotRegisteredError{Identity: e.identity}
	}
	return e.publishAndStore(ctx, "rotate", card.ID)
}

// Cleanup deletes the local private key. The card and any cloud backup are
// left alone.
func (e *EThree) Cleanup(ctx context.Context) error {
	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ok, err := e.HasLocalPrivateKey()
	if err != nil {
		return err
	}
	if !ok {
		return &NotBootstrappedError{Identity: e.identity}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.keys.Delete(e.identity); err != nil {
		if errors.Is(err, ErrKeyNotStored) {
			return &NotBootstrappedError{Identity: e.identity}
		}
		return collaboratorError(CollaboratorKeyStorage, "delete key", err)
	}
	e.log.Info("local key deleted")
	return nil
}

// publishAndStore generates a key pair, publishes it replacing
// previousCardID, and stores the private key. ctx must be authorized.
func (e *EThree) publishAndStore(ctx context.Context, op, previousCardID string) error {
	kp, err := e.crypto.GenerateKeyPair()
	if err != nil {
		return collaboratorError(CollaboratorCrypto, "generate key pair", err)
	}
	defer crypto.Wipe(kp.PrivateKey)

	card, err := e.directory.Publish(ctx, e.identity, kp.PublicKey, previousCardID)
	if err != nil {
		return collaboratorError(CollaboratorDirectory, op, err)
	}
	e.log.Info("card published", "op", op, "card_id", card.ID)

	// The card is out; from here on only the local write can be skipped.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.keys.Store(e.identity, kp.PrivateKey); err != nil {
		e.log.Error("key not stored after publish", "op", op, "card_id", card.ID, "error", err)
		return &BootstrapError{
			Identity: e.identity,
			CardID:   card.ID,
			Err:      collaboratorError(CollaboratorKeyStorage, "store key", err),
		}
	}
	return nil
}

// currentCard returns the identity's newest card, or nil.
func (e *EThree) currentCard(ctx context.Context, op string) (*Card, error) {
	cards, err := e.directory.Lookup(ctx, []string{e.identity})
	if err != nil {
		return nil, collaboratorError(CollaboratorDirectory, op, err)
	}
	return cards[e.identity], nil
}

// requireBootstrapped loads the local key pair. The caller must wipe the
// returned private key.
func (e *EThree) requireBootstrapped() (*KeyPair, error) {
	key, err := e.loadKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, &NotBootstrappedError{Identity: e.identity}
	}
	pub, err := e.crypto.PublicKey(key)
	if err != nil {
		crypto.Wipe(key)
		return nil, collaboratorError(CollaboratorCrypto, "public key", err)
	}
	return &KeyPair{PrivateKey: key, PublicKey: pub}, nil
}

func (e *EThree) requireNoLocalKey() error {
	ok, err := e.HasLocalPrivateKey()
	if err != nil {
		return err
	}
	if ok {
		return &PrivateKeyExistsError{Identity: e.identity}
	}
	return nil
}

// loadKey returns nil without error when no key is stored.
func (e *EThree) loadKey() ([]byte, error) {
	key, err := e.keys.Load(e.identity)
	if errors.Is(err, ErrKeyNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, collaboratorError(CollaboratorKeyStorage, "load key", err)
	}
	if len(key) == 0 {
		return nil, nil
	}
	return key, nil
}

// authorize fetches a token and attaches it to ctx for the directory and
// cloud store.
func (e *EThree) authorize(ctx context.Context, op string) (context.Context, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, collaboratorError(CollaboratorToken, op, fmt.Errorf("%w: %w", ErrUnauthorized, err))
	}
	if strings.TrimSpace(tok) == "" {
		return nil, collaboratorError(CollaboratorToken, op, fmt.Errorf("%w: empty token", ErrUnauthorized))
	}
	return ContextWithToken(ctx, tok), nil
}
