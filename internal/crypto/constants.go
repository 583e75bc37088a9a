package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation
	// for domain separation.
	HKDFContext = "e3kit:v1"

	// SeedSize is the size of a private key seed in bytes. Every private key
	// handled by the SDK, including recovery credentials, is a seed of this size.
	SeedSize = 32

	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = 1184
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = 1088
	// MLKEMSharedKeySize is the size of the shared secret from ML-KEM-768 in bytes.
	MLKEMSharedKeySize = 32

	// MLDSAPublicKeySize is the size of an ML-DSA-65 public key in bytes.
	MLDSAPublicKeySize = 1952
	// MLDSASignatureSize is the size of an ML-DSA-65 signature in bytes.
	MLDSASignatureSize = 3309

	// PublicKeySize is the size of an encoded public key: the ML-KEM-768
	// key followed by the ML-DSA-65 key.
	PublicKeySize = MLKEMPublicKeySize + MLDSAPublicKeySize

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// KeyIDSize is the size of a public key identifier in bytes.
	KeyIDSize = 16

	// EnvelopeVersion is the current ciphertext envelope version.
	EnvelopeVersion = 1
)

// AlgsCiphersuite is the canonical string representation of the algorithm suite.
var AlgsCiphersuite = "ML-KEM-768:ML-DSA-65:AES-256-GCM:HKDF-SHA-512"
