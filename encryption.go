package e3kit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

// LookupResult maps identities to their current public keys.
type LookupResult map[string][]byte

// LookupPublicKeys resolves the public key of every identity. Identities
// are trimmed; an empty list, an empty identity or a duplicate is rejected.
// If any identity has no card the whole lookup fails with
// *PublicKeyNotFoundError naming it.
func (e *EThree) LookupPublicKeys(ctx context.Context, identities []string) (LookupResult, error) {
	if len(identities) == 0 {
		return nil, &EmptyArgumentError{Argument: "identities"}
	}

	normalized := make([]string, 0, len(identities))
	seen := make(map[string]struct{}, len(identities))
	for _, id := range identities {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &EmptyArgumentError{Argument: "identity"}
		}
		if _, dup := seen[id]; dup {
			return nil, &DuplicateIdentityError{Identity: id}
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}

	ctx, err := e.authorize(ctx, "lookup public keys")
	if err != nil {
		return nil, err
	}
	cards, err := e.directory.Lookup(ctx, normalized)
	if err != nil {
		return nil, collaboratorError(CollaboratorDirectory, "lookup public keys", err)
	}

	result := make(LookupResult, len(normalized))
	for _, id := range normalized {
		card, ok := cards[id]
		if !ok || card == nil || len(card.PublicKey) == 0 {
			return nil, &PublicKeyNotFoundError{Identity: id}
		}
		result[id] = bytes.Clone(card.PublicKey)
	}
	e.log.Debug("public keys resolved", "identities", normalized)
	return result, nil
}

// Encrypt encrypts plaintext for recipients and signs it with the local
// key. The caller's own key is added as a recipient unless WithoutSelf is
// given, and must not appear in recipients. A nil recipients map makes the
// result readable only by the caller; an empty non-nil map is rejected.
func (e *EThree) Encrypt(ctx context.Context, plaintext []byte, recipients LookupResult, opts ...EncryptOption) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := encryptConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	kp, err := e.requireBootstrapped()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(kp.PrivateKey)

	if len(plaintext) == 0 {
		return nil, &EmptyArgumentError{Argument: "plaintext"}
	}
	if recipients != nil && len(recipients) == 0 {
		return nil, &EmptyArgumentError{Argument: "recipients"}
	}
	if cfg.withoutSelf && len(recipients) == 0 {
		return nil, &EmptyArgumentError{Argument: "recipients"}
	}

	keys := make([][]byte, 0, len(recipients)+1)
	if !cfg.withoutSelf {
		keys = append(keys, kp.PublicKey)
	}
	for _, id := range slices.Sorted(maps.Keys(recipients)) {
		pk := recipients[id]
		if len(pk) == 0 {
			return nil, &InvalidArgumentError{Message: fmt.Sprintf("recipient %q has no public key", id)}
		}
		if bytes.Equal(pk, kp.PublicKey) {
			return nil, &InvalidArgumentError{Message: fmt.Sprintf("recipient %q is the caller's own key, which is always included", id)}
		}
		keys = append(keys, pk)
	}

	ciphertext, err := e.crypto.Encrypt(plaintext, kp, keys)
	if err != nil {
		return nil, collaboratorError(CollaboratorCrypto, "encrypt", err)
	}
	return ciphertext, nil
}

// EncryptText is Encrypt for strings. The result is standard base64.
func (e *EThree) EncryptText(ctx context.Context, text string, recipients LookupResult, opts ...EncryptOption) (string, error) {
	ciphertext, err := e.Encrypt(ctx, []byte(text), recipients, opts...)
	if err != nil {
		return "", err
	}
	return crypto.ToBase64(ciphertext), nil
}

// Decrypt verifies that ciphertext was signed by sender and decrypts it
// with the local key. A nil sender means the caller's own key.
//
// A missing or mismatched signature yields *VerificationError; a local key
// that is not a recipient, or a malformed ciphertext, yields
// *DecryptionError.
func (e *EThree) Decrypt(ctx context.Context, ciphertext []byte, sender []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kp, err := e.requireBootstrapped()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(kp.PrivateKey)

	if len(ciphertext) == 0 {
		return nil, &DecryptionError{Err: errors.New("empty ciphertext")}
	}
	if sender == nil {
		sender = kp.PublicKey
	}

	plaintext, err := e.crypto.Decrypt(ciphertext, kp, sender)
	if err != nil {
		if errors.Is(err, ErrVerification) {
			return nil, &VerificationError{Err: err}
		}
		return nil, &DecryptionError{Err: err}
	}
	return plaintext, nil
}

// DecryptText is Decrypt for the output of EncryptText.
func (e *EThree) DecryptText(ctx context.Context, text string, sender []byte) (string, error) {
	ciphertext, err := crypto.FromBase64(text)
	if err != nil {
		// Check the key first so an unbootstrapped caller gets the same
		// error as with Decrypt.
		kp, kerr := e.requireBootstrapped()
		if kerr != nil {
			return "", kerr
		}
		crypto.Wipe(kp.PrivateKey)
		return "", &DecryptionError{Err: fmt.Errorf("invalid base64: %w", err)}
	}
	plaintext, err := e.Decrypt(ctx, ciphertext, sender)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
