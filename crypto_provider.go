package e3kit

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

// NewCryptoProvider returns the built-in provider: ML-KEM-768 key wrapping,
// ML-DSA-65 signatures, AES-256-GCM content encryption and Argon2id brain
// keys with the given costs.
func NewCryptoProvider(params BrainKeyParams) (CryptoProvider, error) {
	p := crypto.BrainKeyParams{Time: params.Time, Memory: params.Memory, Threads: params.Threads}
	if err := p.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "brain key params", Message: err.Error()}
	}
	return &provider{params: p}, nil
}

type provider struct {
	params crypto.BrainKeyParams
}

func (p *provider) GenerateKeyPair() (*KeyPair, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	defer kp.Destroy()
	return exportKeyPair(kp), nil
}

func (p *provider) DeriveKeyPair(ctx context.Context, password, scope string) (*KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kp, err := crypto.DeriveKeyPair([]byte(password), scope, p.params)
	if err != nil {
		return nil, err
	}
	defer kp.Destroy()
	return exportKeyPair(kp), nil
}

func (p *provider) PublicKey(privateKey []byte) ([]byte, error) {
	return crypto.PublicKeyFromSeed(privateKey)
}

func (p *provider) Encrypt(plaintext []byte, signer *KeyPair, recipients [][]byte) ([]byte, error) {
	pubs := make([]*crypto.PublicKey, 0, len(recipients))
	for _, raw := range recipients {
		pk, err := crypto.ParsePublicKey(raw)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pk)
	}

	var kp *crypto.KeyPair
	if signer != nil {
		var err error
		if kp, err = crypto.KeyPairFromSeed(signer.PrivateKey); err != nil {
			return nil, err
		}
		defer kp.Destroy()
	}
	return crypto.Encrypt(plaintext, kp, pubs)
}

func (p *provider) Decrypt(ciphertext []byte, recipient *KeyPair, expectedSigner []byte) ([]byte, error) {
	signer, err := crypto.ParsePublicKey(expectedSigner)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrVerification, err)
	}
	kp, err := crypto.KeyPairFromSeed(recipient.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	defer kp.Destroy()

	plaintext, err := crypto.Decrypt(ciphertext, kp, signer)
	switch {
	case err == nil:
		return plaintext, nil
	case errors.Is(err, crypto.ErrSignatureMissing), errors.Is(err, crypto.ErrSignatureVerificationFailed):
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
}

func exportKeyPair(kp *crypto.KeyPair) *KeyPair {
	return &KeyPair{
		PrivateKey: append([]byte(nil), kp.Seed...),
		PublicKey:  append([]byte(nil), kp.PublicKey...),
	}
}
