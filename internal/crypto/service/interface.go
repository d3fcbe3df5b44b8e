// Package service implements FlexAuth's envelope encryption: AEAD cipher
// primitives (spec.md §4.1) plus the CryptoService that turns them into the
// composite "<hex-key>.<hex-iv>" wire format used for the server KEK and
// every per-user DEK.
package service

import (
	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
//
// Implementations: AESGCMCipher, ChaCha20Poly1305Cipher
type AEAD interface {
	// Encrypt encrypts plaintext with optional additional authenticated data (AAD).
	// A unique nonce is generated for each call; the caller stores it alongside
	// the ciphertext for later decryption.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD, verifying
	// the authentication tag before returning plaintext.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager is a factory for AEAD cipher instances, keyed by algorithm.
//
// Implementation: AEADManagerService
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	// The key must be exactly cryptoDomain.KeyBytes long.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// CryptoService implements spec.md §4.1's envelope-encryption primitives over
// the composite key-string format: generating new composite keys, and
// encrypting/decrypting hex-encoded ciphertext under a given composite key.
//
// Encryption is deterministic: the IV is the one embedded in the composite
// key string, not freshly generated per call. This is required so that
// encrypt(token, dek) can be used as an equality-searchable index (spec.md
// §4.6's session lookup by refresh token) — see SPEC_FULL.md §9 for why this
// known weakness is kept rather than redesigned away.
//
// Implementation: CryptoServiceImpl
type CryptoService interface {
	// GenerateKey returns a new random composite key string
	// "<64 hex chars>.<24 hex chars>" (32-byte key, 12-byte IV).
	GenerateKey() (string, error)

	// Encrypt hex-encodes AES-256-GCM(plaintext) under keyString's key and IV.
	Encrypt(plaintext string, keyString string) (string, error)

	// Decrypt reverses Encrypt. Returns cryptoDomain.ErrAuthenticationFailed
	// if the tag doesn't verify (wrong key, corrupted ciphertext).
	Decrypt(hexCiphertext string, keyString string) (string, error)
}
