package crypto

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// KeyID returns the first KeyIDSize bytes of the BLAKE2b-256 hash of an
// encoded public key.
func KeyID(publicKey []byte) []byte {
	sum := blake2b.Sum256(publicKey)
	id := make([]byte, KeyIDSize)
	copy(id, sum[:KeyIDSize])
	return id
}

// CardID returns the directory card identifier for an (identity, public key)
// pair: base58 of BLAKE2b-256 over the length-prefixed identity and the key.
// Publishing the same pair twice yields the same ID.
func CardID(identity string, publicKey []byte) string {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(identity)))

	// blake2b.New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	h.Write(prefix[:])
	h.Write([]byte(identity))
	h.Write(publicKey)
	return base58.Encode(h.Sum(nil))
}
