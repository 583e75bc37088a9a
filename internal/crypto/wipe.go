package crypto

import "github.com/awnumar/memguard"

// Wipe overwrites b with zeroes. Seeds, content keys and derived keys are
// wiped as soon as they are no longer needed.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}
