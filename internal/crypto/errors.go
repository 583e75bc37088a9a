package crypto

import "errors"

var (
	// ErrInvalidSecretKeySize is returned when a private key seed has the wrong size.
	ErrInvalidSecretKeySize = errors.New("invalid secret key size")

	// ErrInvalidPublicKeySize is returned when the public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrInvalidCiphertextSize is returned when the KEM ciphertext size is invalid.
	ErrInvalidCiphertextSize = errors.New("invalid ciphertext size")

	// ErrSignatureVerificationFailed is returned when signature verification fails.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrSignatureMissing is returned when a ciphertext carries no signature.
	ErrSignatureMissing = errors.New("ciphertext is not signed")

	// ErrNotARecipient is returned when the decrypting key is not among the
	// ciphertext recipients.
	ErrNotARecipient = errors.New("key is not a recipient of this ciphertext")

	// ErrNoRecipients is returned when encrypting without any recipient.
	ErrNoRecipients = errors.New("at least one recipient is required")

	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidPayload is returned when the ciphertext envelope structure is invalid.
	// This includes malformed CBOR and missing required fields.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidAlgorithm is returned when an unrecognized or unsupported
	// algorithm suite or version is found in the envelope.
	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	// ErrEmptyPassword is returned when deriving a brain key from an empty password.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidBrainKeyParams is returned when Argon2id parameters are out of range.
	ErrInvalidBrainKeyParams = errors.New("invalid brain key parameters")
)
