// Package domain defines the envelope-encryption domain types: the
// composite key-string format, the Key Encryption Key, and per-user Data
// Encryption Key records (spec.md §4.1, §4.2).
package domain

// Algorithm identifies which AEAD cipher a composite key string is used with.
//
// FlexAuth's own wire format (spec.md §4.1) is pinned to AESGCM; ChaCha20 is
// kept on the same AEADManager interface for the rotate-kek tooling, grounded
// on the teacher's crypto/service package, which supports both.
type Algorithm string

const (
	AESGCM   Algorithm = "aes-gcm"
	ChaCha20 Algorithm = "chacha20-poly1305"

	// KeyBytes is the raw key size for both supported algorithms (256 bits).
	KeyBytes = 32
	// IVBytes is the nonce size for both supported algorithms (96 bits).
	IVBytes = 12
)
