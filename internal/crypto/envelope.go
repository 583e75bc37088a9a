package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Envelope is the CBOR structure of a ciphertext. The content is encrypted
// once under a random content key, and the content key is wrapped for every
// recipient through an ML-KEM-768 encapsulation.
type Envelope struct {
	// V is the envelope format version.
	V int `cbor:"1,keyasint"`
	// Algs is the algorithm suite string.
	Algs string `cbor:"2,keyasint"`
	// Recipients holds one wrapped content key per recipient.
	Recipients []Recipient `cbor:"3,keyasint"`
	// Ciphertext is nonce || AES-256-GCM ciphertext || tag of the content.
	Ciphertext []byte `cbor:"4,keyasint"`
	// SignerID is the key ID of the signing key, empty when unsigned.
	SignerID []byte `cbor:"5,keyasint,omitempty"`
	// Sig is the ML-DSA-65 signature over the transcript, empty when unsigned.
	Sig []byte `cbor:"6,keyasint,omitempty"`
}

// Recipient is one wrapped copy of the content key.
type Recipient struct {
	// KeyID identifies the recipient public key.
	KeyID []byte `cbor:"1,keyasint"`
	// CtKem is the ML-KEM-768 ciphertext.
	CtKem []byte `cbor:"2,keyasint"`
	// WrappedKey is the content key sealed under the derived key-encryption key.
	WrappedKey []byte `cbor:"3,keyasint"`
}

// Encrypt encrypts plaintext for every recipient and, when signer is not nil,
// signs the result.
func Encrypt(plaintext []byte, signer *KeyPair, recipients []*PublicKey) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	contentKey, err := randomBytes(AESKeySize)
	if err != nil {
		return nil, err
	}
	defer Wipe(contentKey)

	env := &Envelope{
		V:          EnvelopeVersion,
		Algs:       AlgsCiphersuite,
		Recipients: make([]Recipient, 0, len(recipients)),
	}

	for _, r := range recipients {
		entry, err := wrapContentKey(contentKey, r)
		if err != nil {
			return nil, err
		}
		env.Recipients = append(env.Recipients, entry)
	}

	env.Ciphertext, err = SealAES(contentKey, plaintext, []byte(AlgsCiphersuite))
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	if signer != nil {
		env.SignerID = signer.Public().ID()
		env.Sig = signer.Sign(buildTranscript(env))
	}

	return cbor.Marshal(env)
}

// Decrypt verifies the envelope signature against signer and then decrypts
// it with recipient. Verification always happens before any decryption.
func Decrypt(data []byte, recipient *KeyPair, signer *PublicKey) ([]byte, error) {
	if signer == nil {
		return nil, ErrSignatureMissing
	}

	env, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	if len(env.Sig) == 0 {
		return nil, ErrSignatureMissing
	}
	if !bytes.Equal(env.SignerID, signer.ID()) {
		return nil, ErrSignatureVerificationFailed
	}
	if err := signer.Verify(buildTranscript(env), env.Sig); err != nil {
		return nil, err
	}

	entry := env.recipient(recipient.Public().ID())
	if entry == nil {
		return nil, ErrNotARecipient
	}

	contentKey, err := unwrapContentKey(entry, recipient)
	if err != nil {
		return nil, err
	}
	defer Wipe(contentKey)

	return DecryptAES(contentKey, env.Ciphertext, []byte(AlgsCiphersuite))
}

// ParseEnvelope decodes and structurally validates a ciphertext envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.V != EnvelopeVersion || env.Algs != AlgsCiphersuite {
		return nil, fmt.Errorf("%w: version %d suite %q", ErrInvalidAlgorithm, env.V, env.Algs)
	}
	if len(env.Recipients) == 0 || len(env.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: missing recipients or ciphertext", ErrInvalidPayload)
	}
	return &env, nil
}

// IsSigned reports whether the envelope carries a signature.
func (e *Envelope) IsSigned() bool {
	return len(e.Sig) > 0
}

func (e *Envelope) recipient(keyID []byte) *Recipient {
	for i := range e.Recipients {
		if bytes.Equal(e.Recipients[i].KeyID, keyID) {
			return &e.Recipients[i]
		}
	}
	return nil
}

func wrapContentKey(contentKey []byte, r *PublicKey) (Recipient, error) {
	ctKem, sharedSecret, err := kemScheme.Encapsulate(r.kem)
	if err != nil {
		return Recipient{}, fmt.Errorf("encapsulate: %w", err)
	}
	defer Wipe(sharedSecret)

	kek, err := deriveKEK(sharedSecret, ctKem, r.ID())
	if err != nil {
		return Recipient{}, fmt.Errorf("derive key: %w", err)
	}
	defer Wipe(kek)

	wrapped, err := SealAES(kek, contentKey, r.ID())
	if err != nil {
		return Recipient{}, fmt.Errorf("wrap content key: %w", err)
	}

	return Recipient{
		KeyID:      r.ID(),
		CtKem:      ctKem,
		WrappedKey: wrapped,
	}, nil
}

func unwrapContentKey(entry *Recipient, recipient *KeyPair) ([]byte, error) {
	if len(entry.CtKem) != MLKEMCiphertextSize {
		return nil, ErrInvalidCiphertextSize
	}

	sharedSecret, err := kemScheme.Decapsulate(recipient.kemPriv, entry.CtKem)
	if err != nil {
		return nil, fmt.Errorf("%w: decapsulate: %v", ErrDecryptionFailed, err)
	}
	defer Wipe(sharedSecret)

	kek, err := deriveKEK(sharedSecret, entry.CtKem, entry.KeyID)
	if err != nil {
		return nil, err
	}
	defer Wipe(kek)

	return DecryptAES(kek, entry.WrappedKey, entry.KeyID)
}

// buildTranscript constructs the signed transcript. Every variable-length
// field is length-prefixed.
func buildTranscript(env *Envelope) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(env.V))
	writeField(&buf, []byte(env.Algs))
	writeField(&buf, []byte(HKDFContext))
	writeField(&buf, env.SignerID)
	for _, r := range env.Recipients {
		writeField(&buf, r.KeyID)
		writeField(&buf, r.CtKem)
		writeField(&buf, r.WrappedKey)
	}
	writeField(&buf, env.Ciphertext)
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, field []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(field)))
	buf.Write(n[:])
	buf.Write(field)
}
