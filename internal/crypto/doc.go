// Package crypto provides the cryptographic primitives behind e3kit: identity
// key pairs, password-derived recovery key pairs, and signed multi-recipient
// ciphertexts.
//
// # Algorithm Suite
//
//   - ML-KEM-768 (NIST FIPS 203): wraps the per-message content key for
//     each recipient.
//
//   - ML-DSA-65 (NIST FIPS 204): signs the ciphertext transcript with the
//     author's key.
//
//   - AES-256-GCM: encrypts the content and the wrapped content keys.
//
//   - HKDF-SHA-512 (RFC 5869): expands private seeds into KEM and signing
//     keys, and derives key-encryption keys from KEM shared secrets.
//
//   - Argon2id (RFC 9106): derives recovery seeds ("brain keys") from
//     passwords.
//
// # Keys
//
// A private key is a 32-byte seed. [KeyPairFromSeed] expands it
// deterministically, so storing and backing up the seed is enough to
// recover the whole key pair. A public key is the ML-KEM-768 public key
// followed by the ML-DSA-65 public key ([PublicKeySize] bytes). [KeyID]
// and [CardID] derive identifiers from it with BLAKE2b.
//
// # Ciphertexts
//
// [Encrypt] produces a CBOR [Envelope]. [Decrypt] verifies the signature
// against the expected signer BEFORE it touches any ciphertext, then looks
// up the recipient entry for the decrypting key:
//
//	plaintext, err := crypto.Decrypt(data, myKeyPair, senderPublicKey)
//	switch {
//	case errors.Is(err, crypto.ErrSignatureMissing),
//	    errors.Is(err, crypto.ErrSignatureVerificationFailed):
//	    // forged, unsigned, or from someone else
//	case errors.Is(err, crypto.ErrNotARecipient):
//	    // not encrypted for this key
//	}
//
// Seeds, content keys and derived keys are wiped with [Wipe] after use.
package crypto
