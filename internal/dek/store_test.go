package dek

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
	apperrors "github.com/allisson/flexauth/internal/errors"
	"github.com/allisson/flexauth/internal/testutil"
)

func testCryptoService() service.CryptoService {
	return service.NewCryptoService(service.NewAEADManager())
}

func testKEK(t *testing.T, crypto service.CryptoService) cryptoDomain.KEK {
	t.Helper()
	raw, err := crypto.GenerateKey()
	require.NoError(t, err)
	kek, err := cryptoDomain.ParseKEK(raw)
	require.NoError(t, err)
	return kek
}

func TestStore_PutAndGet(t *testing.T) {
	db := testutil.SetupMongoDB(t)
	defer testutil.TeardownDB(t, db)

	crypto := testCryptoService()
	kek := testKEK(t, crypto)
	store := NewStore(db, crypto, kek, 5*time.Second)
	ctx := context.Background()

	uid := "uid-123"
	email := "user@example.com"
	dekKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, uid, email, dekKey))

	t.Run("get by uid", func(t *testing.T) {
		record, err := store.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, uid, record.Uid)
		assert.Equal(t, email, record.Email)
		assert.Equal(t, dekKey, record.Dek)
	})

	t.Run("get by email", func(t *testing.T) {
		record, err := store.Get(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, uid, record.Uid)
		assert.Equal(t, email, record.Email)
		assert.Equal(t, dekKey, record.Dek)
	})
}

func TestStore_Get_NotFound(t *testing.T) {
	db := testutil.SetupMongoDB(t)
	defer testutil.TeardownDB(t, db)

	crypto := testCryptoService()
	kek := testKEK(t, crypto)
	store := NewStore(db, crypto, kek, 5*time.Second)

	_, err := store.Get(context.Background(), "missing-uid")
	assert.True(t, apperrors.Is(err, apperrors.KindKeyNotFound))
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupMongoDB(t)
	defer testutil.TeardownDB(t, db)

	crypto := testCryptoService()
	kek := testKEK(t, crypto)
	store := NewStore(db, crypto, kek, 5*time.Second)
	ctx := context.Background()

	uid := "uid-456"
	dekKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, uid, "other@example.com", dekKey))

	require.NoError(t, store.Delete(ctx, uid))

	_, err = store.Get(ctx, uid)
	assert.True(t, apperrors.Is(err, apperrors.KindKeyNotFound))
}

func TestStore_Delete_NotFound(t *testing.T) {
	db := testutil.SetupMongoDB(t)
	defer testutil.TeardownDB(t, db)

	crypto := testCryptoService()
	kek := testKEK(t, crypto)
	store := NewStore(db, crypto, kek, 5*time.Second)

	err := store.Delete(context.Background(), "missing-uid")
	assert.True(t, apperrors.Is(err, apperrors.KindKeyNotFound))
}
