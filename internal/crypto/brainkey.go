package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// BrainKeyParams are the Argon2id cost parameters for password derivation.
type BrainKeyParams struct {
	// Time is the number of passes over memory.
	Time uint32
	// Memory is the memory cost in KiB.
	Memory uint32
	// Threads is the degree of parallelism.
	Threads uint8
}

// DefaultBrainKeyParams returns the default Argon2id parameters.
func DefaultBrainKeyParams() BrainKeyParams {
	return BrainKeyParams{
		Time:    3,
		Memory:  64 * 1024,
		Threads: 4,
	}
}

// Validate reports whether the parameters are usable by Argon2id.
func (p BrainKeyParams) Validate() error {
	if p.Time < 1 || p.Threads < 1 {
		return fmt.Errorf("%w: time and threads must be positive", ErrInvalidBrainKeyParams)
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory must be at least 8 KiB per thread", ErrInvalidBrainKeyParams)
	}
	return nil
}

// DeriveSeed derives a private key seed from a password. The salt is bound
// to context (the identity), so equal passwords of different users never
// produce the same seed.
func DeriveSeed(password []byte, context string, params BrainKeyParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	salt := sha256.Sum256([]byte(HKDFContext + ":brainkey:" + context))
	return argon2.IDKey(password, salt[:], params.Time, params.Memory, params.Threads, SeedSize), nil
}

// DeriveKeyPair derives a recovery key pair from a password. It is
// deterministic for a given (password, context, params).
func DeriveKeyPair(password []byte, context string, params BrainKeyParams) (*KeyPair, error) {
	seed, err := DeriveSeed(password, context, params)
	if err != nil {
		return nil, err
	}
	defer Wipe(seed)

	return KeyPairFromSeed(seed)
}
