package store

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	cryptoService "github.com/allisson/flexauth/internal/crypto/service"
	"github.com/allisson/flexauth/internal/dek"
	apperrors "github.com/allisson/flexauth/internal/errors"
	"github.com/allisson/flexauth/internal/testutil"
	"github.com/allisson/flexauth/internal/token"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
)

func writeTestRSAKey(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "private_key.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

type fakeUserStore struct {
	users map[string]*userDomain.User
}

func (f *fakeUserStore) GetByUID(_ context.Context, uid string) (*userDomain.User, error) {
	u, ok := f.users[uid]
	if !ok {
		return nil, apperrors.New(apperrors.KindUserNotFound, "user not found")
	}
	return u, nil
}

func (f *fakeUserStore) GetAll(_ context.Context) ([]*userDomain.User, error) {
	out := make([]*userDomain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *dek.Store, *fakeUserStore) {
	t.Helper()

	db := testutil.SetupMongoDB(t)
	t.Cleanup(func() { testutil.TeardownDB(t, db) })

	crypto := cryptoService.NewCryptoService(cryptoService.NewAEADManager())
	rawKEK, err := crypto.GenerateKey()
	require.NoError(t, err)
	kek, err := cryptoDomain.ParseKEK(rawKEK)
	require.NoError(t, err)

	dekStore := dek.NewStore(db, crypto, kek, 5*time.Second)
	tokenSvc := testTokenService(t)
	users := &fakeUserStore{users: map[string]*userDomain.User{}}
	logger := slog.New(slog.DiscardHandler)

	s := NewStore(db, dekStore, tokenSvc, users, crypto, nil, logger, 5*time.Second)
	return s, dekStore, users
}

func testTokenService(t *testing.T) *token.Service {
	t.Helper()
	keyPath := writeTestRSAKey(t)
	svc, err := token.NewService(keyPath, "https://auth.example.com")
	require.NoError(t, err)
	return svc
}

func newTestSessionUser(t *testing.T, dekStore *dek.Store, users *fakeUserStore, email string) *userDomain.User {
	t.Helper()

	crypto := cryptoService.NewCryptoService(cryptoService.NewAEADManager())
	dekKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	uid := uuid.New().String()
	require.NoError(t, dekStore.Put(context.Background(), uid, email, dekKey))

	user := &userDomain.User{
		Uid:           uid,
		Name:          "Jane Doe",
		Email:         email,
		Role:          "member",
		IsActive:      true,
		EmailVerified: true,
	}
	users.users[uid] = user
	return user
}

func TestStore_CreateAndVerify(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-create@example.com")

	sessionID, idToken, refreshToken, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.NotEmpty(t, idToken)
	assert.NotEmpty(t, refreshToken)

	claims, fresh, err := s.Verify(context.Background(), idToken)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, user.Uid, claims.UID)
}

func TestStore_Verify_RevokedSessionFails(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-revoked@example.com")

	sessionID, idToken, _, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(context.Background(), user.Uid, sessionID))

	_, _, err = s.Verify(context.Background(), idToken)
	assert.True(t, apperrors.Is(err, apperrors.KindTokenInvalid))
}

func TestStore_RevokeAndDelete(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-crud@example.com")

	sessionID, _, _, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(context.Background(), user.Uid, sessionID))
	details, err := s.GetDetails(context.Background(), user.Uid, sessionID)
	require.NoError(t, err)
	assert.True(t, details.IsRevoked)

	require.NoError(t, s.Delete(context.Background(), user.Uid, sessionID))
	_, err = s.GetDetails(context.Background(), user.Uid, sessionID)
	assert.True(t, apperrors.Is(err, apperrors.KindSessionNotFound))
}

func TestStore_RevokeAll_Idempotent(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-revoke-all@example.com")

	_, _, _, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)
	_, _, _, err = s.Create(context.Background(), user, "ua/2")
	require.NoError(t, err)

	require.NoError(t, s.RevokeAll(context.Background(), user.Uid))
	require.NoError(t, s.RevokeAll(context.Background(), user.Uid))

	sessions, err := s.GetAllForUID(context.Background(), user.Uid)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, sess := range sessions {
		assert.True(t, sess.IsRevoked)
	}
}

func TestStore_DeleteAllForUID(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-delete-all@example.com")

	_, _, _, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)
	_, _, _, err = s.Create(context.Background(), user, "ua/2")
	require.NoError(t, err)

	require.NoError(t, s.DeleteAllForUID(context.Background(), user.Uid))

	sessions, err := s.GetAllForUID(context.Background(), user.Uid)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStore_GetAll_SortedAcrossUsers(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	userA := newTestSessionUser(t, dekStore, users, "sess-a@example.com")
	userB := newTestSessionUser(t, dekStore, users, "sess-b@example.com")

	_, _, _, err := s.Create(context.Background(), userA, "ua/1")
	require.NoError(t, err)
	_, _, _, err = s.Create(context.Background(), userB, "ua/1")
	require.NoError(t, err)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].CreatedAt.Before(all[1].CreatedAt) || all[0].CreatedAt.Equal(all[1].CreatedAt))
}

func TestStore_Refresh_RejectsFreshIDToken(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-refresh-fresh@example.com")

	sessionID, idToken, refreshToken, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)

	_, _, err = s.Refresh(context.Background(), user.Uid, sessionID, idToken, refreshToken, "ua/1")
	assert.True(t, apperrors.Is(err, apperrors.KindActiveSessionExists))
}

func TestStore_CleanExpired_SkipsUnrevoked(t *testing.T) {
	s, dekStore, users := newTestStore(t)
	user := newTestSessionUser(t, dekStore, users, "sess-clean@example.com")

	_, _, _, err := s.Create(context.Background(), user, "ua/1")
	require.NoError(t, err)

	deleted, err := s.CleanExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	sessions, err := s.GetAllForUID(context.Background(), user.Uid)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestCleanupWorker_StopsCleanlyOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := newTestStore(t)
	worker := NewCleanupWorker(s, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
