package keystore

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// sealedFormatVersion is the newest sealed file format this package reads.
const sealedFormatVersion = 1

// ScryptParams are the scrypt cost parameters for passphrase sealing.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams returns the default sealing cost.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 15, R: 8, P: 1}
}

// sealed is the on-disk JSON structure of a passphrase-protected key file.
type sealed struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from passphrase and encrypts raw. The salt is fresh
// for every seal, so the zero nonce is never reused under one key.
func seal(passphrase []byte, raw []byte, params ScryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key(passphrase, salt[:], params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(sealed{
		V:      sealedFormatVersion,
		Salt:   salt[:],
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Cipher: ct,
	})
}

// unseal reverses seal.
func unseal(passphrase []byte, b []byte) ([]byte, error) {
	var s sealed
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
	}
	if s.V > sealedFormatVersion {
		return nil, fmt.Errorf("unsupported key file version %d", s.V)
	}

	key, err := scrypt.Key(passphrase, s.Salt, s.N, s.R, s.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], s.Cipher, s.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
