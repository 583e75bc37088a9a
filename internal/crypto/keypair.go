package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// randReader is the random source used for seeds and nonces.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

var kemScheme = mlkem768.Scheme()

// KeyPair is an identity key pair. The private half is a 32-byte seed from
// which the ML-KEM-768 decapsulation key and the ML-DSA-65 signing key are
// expanded with HKDF-SHA-512.
type KeyPair struct {
	// Seed is the private key material.
	Seed []byte
	// PublicKey is the encoded public key (ML-KEM-768 || ML-DSA-65).
	PublicKey []byte

	kemPriv kem.PrivateKey
	sigPriv *mldsa65.PrivateKey
	pub     *PublicKey
}

// PublicKey is a parsed public key.
type PublicKey struct {
	raw []byte
	id  []byte
	kem kem.PublicKey
	sig *mldsa65.PublicKey
}

// GenerateKeyPair creates a key pair from a fresh random seed.
func GenerateKeyPair() (*KeyPair, error) {
	seed, err := randomBytes(SeedSize)
	if err != nil {
		return nil, err
	}
	defer Wipe(seed)

	return KeyPairFromSeed(seed)
}

// KeyPairFromSeed expands a seed into a key pair. The same seed always
// yields the same key pair. The seed is copied.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSecretKeySize, len(seed), SeedSize)
	}

	kemSeed, err := DeriveKey(seed, nil, []byte(HKDFContext+":kem"), kemScheme.SeedSize())
	if err != nil {
		return nil, err
	}
	defer Wipe(kemSeed)

	sigSeed, err := DeriveKey(seed, nil, []byte(HKDFContext+":sig"), mldsa65.SeedSize)
	if err != nil {
		return nil, err
	}
	defer Wipe(sigSeed)

	kemPub, kemPriv := kemScheme.DeriveKeyPair(kemSeed)

	var sigSeedArr [mldsa65.SeedSize]byte
	copy(sigSeedArr[:], sigSeed)
	sigPub, sigPriv := mldsa65.NewKeyFromSeed(&sigSeedArr)
	Wipe(sigSeedArr[:])

	kemPubBytes, err := kemPub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal kem public key: %w", err)
	}
	sigPubBytes, err := sigPub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal signing public key: %w", err)
	}

	raw := make([]byte, 0, PublicKeySize)
	raw = append(raw, kemPubBytes...)
	raw = append(raw, sigPubBytes...)

	own := make([]byte, SeedSize)
	copy(own, seed)

	return &KeyPair{
		Seed:      own,
		PublicKey: raw,
		kemPriv:   kemPriv,
		sigPriv:   sigPriv,
		pub: &PublicKey{
			raw: raw,
			id:  KeyID(raw),
			kem: kemPub,
			sig: sigPub,
		},
	}, nil
}

// PublicKeyFromSeed returns the encoded public key belonging to seed.
func PublicKeyFromSeed(seed []byte) ([]byte, error) {
	kp, err := KeyPairFromSeed(seed)
	if err != nil {
		return nil, err
	}
	defer kp.Destroy()

	return kp.PublicKey, nil
}

// Public returns the parsed public half of the key pair.
func (kp *KeyPair) Public() *PublicKey {
	return kp.pub
}

// Sign produces an ML-DSA-65 signature over message.
func (kp *KeyPair) Sign(message []byte) []byte {
	sig := make([]byte, mldsa65.SignatureSize)
	mldsa65.SignTo(kp.sigPriv, message, nil, false, sig)
	return sig
}

// Destroy wipes the private seed.
func (kp *KeyPair) Destroy() {
	if kp == nil {
		return
	}
	Wipe(kp.Seed)
}

// ParsePublicKey parses an encoded public key.
func ParsePublicKey(raw []byte) (*PublicKey, error) {
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPublicKeySize, len(raw), PublicKeySize)
	}

	kemPub, err := kemScheme.UnmarshalBinaryPublicKey(raw[:MLKEMPublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("unmarshal kem public key: %w", err)
	}

	sigPub := &mldsa65.PublicKey{}
	if err := sigPub.UnmarshalBinary(raw[MLKEMPublicKeySize:]); err != nil {
		return nil, fmt.Errorf("unmarshal signing public key: %w", err)
	}

	own := make([]byte, len(raw))
	copy(own, raw)

	return &PublicKey{
		raw: own,
		id:  KeyID(own),
		kem: kemPub,
		sig: sigPub,
	}, nil
}

// Bytes returns a copy of the encoded public key.
func (p *PublicKey) Bytes() []byte {
	out := make([]byte, len(p.raw))
	copy(out, p.raw)
	return out
}

// ID returns the key identifier used to address recipient entries.
func (p *PublicKey) ID() []byte {
	return p.id
}

// Equal reports whether two public keys are the same key.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	return bytes.Equal(p.raw, other.raw)
}

// Verify checks an ML-DSA-65 signature made by the private half of p.
func (p *PublicKey) Verify(message, signature []byte) error {
	if len(signature) != mldsa65.SignatureSize {
		return ErrSignatureVerificationFailed
	}
	if !mldsa65.Verify(p.sig, message, nil, signature) {
		return ErrSignatureVerificationFailed
	}
	return nil
}
