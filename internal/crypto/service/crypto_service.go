package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
)

// CryptoServiceImpl implements CryptoService over the composite key-string
// format, using AEADManager to obtain the underlying AES-256-GCM cipher.
type CryptoServiceImpl struct {
	aeadManager AEADManager
}

// NewCryptoService creates a CryptoServiceImpl backed by the given AEADManager.
func NewCryptoService(aeadManager AEADManager) *CryptoServiceImpl {
	return &CryptoServiceImpl{aeadManager: aeadManager}
}

// GenerateKey returns a new random "<hex-key>.<hex-iv>" composite key string.
func (c *CryptoServiceImpl) GenerateKey() (string, error) {
	key := make([]byte, cryptoDomain.KeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	iv := make([]byte, cryptoDomain.IVBytes)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	return hex.EncodeToString(key) + "." + hex.EncodeToString(iv), nil
}

// Encrypt hex-encodes AES-256-GCM(plaintext) under keyString's key and IV.
// The IV is taken from keyString rather than generated fresh, so the same
// plaintext under the same key always produces the same ciphertext.
func (c *CryptoServiceImpl) Encrypt(plaintext string, keyString string) (string, error) {
	key, iv, err := splitKeyString(keyString)
	if err != nil {
		return "", err
	}

	aead, err := c.aeadManager.CreateCipher(key, cryptoDomain.AESGCM)
	if err != nil {
		return "", err
	}

	gcm, ok := aead.(*AESGCMCipher)
	if !ok {
		return "", cryptoDomain.ErrUnsupportedAlgorithm
	}

	ciphertext, err := gcm.EncryptWithNonce([]byte(plaintext), iv, nil)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (c *CryptoServiceImpl) Decrypt(hexCiphertext string, keyString string) (string, error) {
	key, iv, err := splitKeyString(keyString)
	if err != nil {
		return "", err
	}

	ciphertext, err := hex.DecodeString(hexCiphertext)
	if err != nil {
		return "", cryptoDomain.ErrInvalidKeyString
	}

	aead, err := c.aeadManager.CreateCipher(key, cryptoDomain.AESGCM)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Decrypt(ciphertext, iv, nil)
	if err != nil {
		return "", cryptoDomain.ErrAuthenticationFailed
	}

	return string(plaintext), nil
}

// splitKeyString decodes a "<64 hex>.<24 hex>" composite key string into its
// raw key and IV.
func splitKeyString(keyString string) (key, iv []byte, err error) {
	keyHex, ivHex, ok := strings.Cut(keyString, ".")
	if !ok {
		return nil, nil, cryptoDomain.ErrInvalidKeyString
	}

	key, err = hex.DecodeString(keyHex)
	if err != nil || len(key) != cryptoDomain.KeyBytes {
		return nil, nil, cryptoDomain.ErrInvalidKeyString
	}

	iv, err = hex.DecodeString(ivHex)
	if err != nil || len(iv) != cryptoDomain.IVBytes {
		return nil, nil, cryptoDomain.ErrInvalidKeyString
	}

	return key, iv, nil
}
