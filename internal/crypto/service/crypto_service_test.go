package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
)

func newTestCryptoService() *CryptoServiceImpl {
	return NewCryptoService(NewAEADManager())
}

func TestCryptoServiceImpl_GenerateKey(t *testing.T) {
	svc := newTestCryptoService()

	t.Run("returns a parseable composite key", func(t *testing.T) {
		keyString, err := svc.GenerateKey()
		require.NoError(t, err)

		kek, err := cryptoDomain.ParseKEK(keyString)
		assert.NoError(t, err)
		assert.Equal(t, keyString, kek.String())
	})

	t.Run("returns distinct keys across calls", func(t *testing.T) {
		first, err := svc.GenerateKey()
		require.NoError(t, err)
		second, err := svc.GenerateKey()
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}

func TestCryptoServiceImpl_EncryptDecrypt(t *testing.T) {
	svc := newTestCryptoService()

	t.Run("round trip", func(t *testing.T) {
		keyString, err := svc.GenerateKey()
		require.NoError(t, err)

		ciphertext, err := svc.Encrypt("hello@example.com", keyString)
		require.NoError(t, err)
		assert.NotEmpty(t, ciphertext)

		plaintext, err := svc.Decrypt(ciphertext, keyString)
		require.NoError(t, err)
		assert.Equal(t, "hello@example.com", plaintext)
	})

	t.Run("deterministic: same plaintext and key produce same ciphertext", func(t *testing.T) {
		keyString, err := svc.GenerateKey()
		require.NoError(t, err)

		first, err := svc.Encrypt("hello@example.com", keyString)
		require.NoError(t, err)
		second, err := svc.Encrypt("hello@example.com", keyString)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("wrong key fails authentication", func(t *testing.T) {
		keyString, err := svc.GenerateKey()
		require.NoError(t, err)
		otherKeyString, err := svc.GenerateKey()
		require.NoError(t, err)

		ciphertext, err := svc.Encrypt("hello@example.com", keyString)
		require.NoError(t, err)

		_, err = svc.Decrypt(ciphertext, otherKeyString)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("malformed key string", func(t *testing.T) {
		_, err := svc.Encrypt("hello@example.com", "not-a-key")
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeyString)
	})

	t.Run("malformed ciphertext hex", func(t *testing.T) {
		keyString, err := svc.GenerateKey()
		require.NoError(t, err)

		_, err = svc.Decrypt("zz-not-hex", keyString)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeyString)
	})
}
