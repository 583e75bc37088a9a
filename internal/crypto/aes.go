package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// newGCM validates the key and nonce sizes and returns an AES-256-GCM AEAD.
func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptAES encrypts data using AES-256-GCM, authenticating aad alongside it.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func EncryptAES(key, plaintext, nonce, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, AESNonceSize+len(plaintext)+AESTagSize)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// DecryptAES reverses EncryptAES. Any authentication failure, including a
// wrong key or mismatched aad, is reported as ErrDecryptionFailed.
func DecryptAES(key, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < AESNonceSize+AESTagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce := ciphertext[:AESNonceSize]
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext[AESNonceSize:], aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SealAES encrypts plaintext under key with a fresh random nonce.
func SealAES(key, plaintext, aad []byte) ([]byte, error) {
	nonce, err := randomBytes(AESNonceSize)
	if err != nil {
		return nil, err
	}
	return EncryptAES(key, plaintext, nonce, aad)
}

// randomBytes reads n bytes from the package random source.
func randomBytes(n int) ([]byte, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}
