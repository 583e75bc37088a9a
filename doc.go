// Package e3kit provides identity-bound end-to-end encryption.
//
// Each user owns a long-lived key pair (ML-KEM-768 for key wrapping,
// ML-DSA-65 for signatures). Public keys are published as cards in a
// directory; messages are encrypted for the listed recipients and the
// author and signed by the author. The private key can be backed up to a
// cloud store, encrypted to a key pair derived from a password, and
// restored on another device.
//
// Basic usage:
//
//	ethree, err := e3kit.Initialize("alice", tokens,
//	    e3kit.WithBaseURL("https://keys.example.com"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := ethree.Bootstrap(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Keep the key recoverable
//	if err := ethree.BackupPrivateKey(ctx, password); err != nil {
//	    log.Fatal(err)
//	}
//
//	keys, err := ethree.LookupPublicKeys(ctx, []string{"bob"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ciphertext, err := ethree.EncryptText(ctx, "hello", keys)
//
// Every operation that talks to the network takes a context and blocks.
// Use Go or Run to get a Future instead.
package e3kit
