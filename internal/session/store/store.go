// Package store implements SessionManager (spec.md §4.6): the persisted
// id/refresh token pair binding a user to a device, encrypted at rest under
// the owning account's DEK, with the verify/refresh anti-replay protocol
// spec.md §4.6 and §9 describe.
package store

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
	"github.com/allisson/flexauth/internal/database"
	apperrors "github.com/allisson/flexauth/internal/errors"
	"github.com/allisson/flexauth/internal/mailer"
	sessionDomain "github.com/allisson/flexauth/internal/session/domain"
	"github.com/allisson/flexauth/internal/token"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
)

const sessionsCollection = "sessions"

// DekStore is the subset of dek.Store SessionManager depends on.
type DekStore interface {
	Get(ctx context.Context, identifier string) (cryptoDomain.DekRecord, error)
}

// TokenService is the subset of token.Service SessionManager depends on.
type TokenService interface {
	SignID(data token.IDTokenData) (string, error)
	SignRefresh(uid string) (string, error)
	VerifyID(tokenString string) (*token.Claims, bool, error)
	VerifyRefresh(tokenString string) (*token.Claims, error)
}

// UserStore is the subset of user/store.Store SessionManager depends on:
// GetByUID to mint a fresh id token on refresh, GetAll to walk every account
// when listing sessions system-wide (no session is addressable except
// through its owner's DEK, so there is no single global index to scan).
type UserStore interface {
	GetByUID(ctx context.Context, uid string) (*userDomain.User, error)
	GetAll(ctx context.Context) ([]*userDomain.User, error)
}

// document is the wire shape of a session: every field but is_revoked and
// the timestamps is encrypted under the owner's DEK (spec.md §3).
type document struct {
	UID          string    `bson:"uid"`
	SessionID    string    `bson:"session_id"`
	Email        string    `bson:"email"`
	UserAgent    string    `bson:"user_agent"`
	IDToken      string    `bson:"id_token"`
	RefreshToken string    `bson:"refresh_token"`
	IsRevoked    bool      `bson:"is_revoked"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Store implements SessionManager over a Mongo collection.
type Store struct {
	db      *mongo.Database
	dek     DekStore
	token   TokenService
	users   UserStore
	crypto  service.CryptoService
	mail    mailer.Mailer
	logger  *slog.Logger
	timeout time.Duration
}

// NewStore creates a Store.
func NewStore(
	db *mongo.Database,
	dek DekStore,
	tokenSvc TokenService,
	users UserStore,
	crypto service.CryptoService,
	mail mailer.Mailer,
	logger *slog.Logger,
	timeout time.Duration,
) *Store {
	return &Store{
		db:      db,
		dek:     dek,
		token:   tokenSvc,
		users:   users,
		crypto:  crypto,
		mail:    mail,
		logger:  logger,
		timeout: timeout,
	}
}

func (s *Store) collection() *mongo.Collection {
	return s.db.Collection(sessionsCollection)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) sendBestEffort(ctx context.Context, to, subject, body string) {
	mailer.SendBestEffort(ctx, s.logger, s.mail, to, subject, body)
}

// Create signs a new id/refresh token pair for user, mints an opaque session
// id, and inserts the session encrypted under the user's DEK (spec.md §4.7
// step 3). Returns the plaintext session id and token pair.
func (s *Store) Create(ctx context.Context, user *userDomain.User, userAgent string) (sessionID, idToken, refreshToken string, err error) {
	idToken, err = s.token.SignID(token.IDTokenData{
		UID:             user.Uid,
		DisplayName:     user.Name,
		Role:            user.Role,
		IsActive:        user.IsActive,
		IsEmailVerified: user.EmailVerified,
	})
	if err != nil {
		return "", "", "", err
	}

	refreshToken, err = s.token.SignRefresh(user.Uid)
	if err != nil {
		return "", "", "", err
	}

	sessionID = uuid.New().String()

	dekRecord, err := s.dek.Get(ctx, user.Uid)
	if err != nil {
		return "", "", "", err
	}

	now := time.Now().UTC()
	doc, err := s.encrypt(sessionDomain.Session{
		Uid:          user.Uid,
		SessionID:    sessionID,
		Email:        user.Email,
		UserAgent:    userAgent,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		IsRevoked:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, dekRecord.Dek)
	if err != nil {
		return "", "", "", err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection().InsertOne(dbCtx, doc); err != nil {
		return "", "", "", apperrors.Wrap(apperrors.KindServerError, "failed to insert session", err)
	}
	return sessionID, idToken, refreshToken, nil
}

// Verify implements spec.md §4.6's verify protocol: an expired id token
// short-circuits as stale without touching the store; a fresh one is
// re-checked against the sessions collection so a server-side revocation
// takes effect immediately, not just at the next refresh.
func (s *Store) Verify(ctx context.Context, idToken string) (*token.Claims, bool, error) {
	claims, fresh, err := s.token.VerifyID(idToken)
	if err != nil {
		return nil, false, err
	}
	if !fresh {
		return claims, false, nil
	}

	uid := claims.UID

	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return nil, false, err
	}

	encUID, encIDToken, err := s.encryptPair(uid, idToken, dekRecord.Dek)
	if err != nil {
		return nil, false, err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	count, err := s.collection().CountDocuments(dbCtx, bson.D{
		{Key: "uid", Value: encUID},
		{Key: "id_token", Value: encIDToken},
		{Key: "is_revoked", Value: false},
	})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.KindServerError, "failed to query session", err)
	}
	if count != 1 {
		return nil, false, apperrors.New(apperrors.KindTokenInvalid, "session not found or revoked")
	}
	return claims, true, nil
}

// Refresh implements spec.md §4.6's 6-step refresh protocol.
func (s *Store) Refresh(ctx context.Context, uid, sessionID, idToken, refreshToken, userAgent string) (newIDToken, newRefreshToken string, err error) {
	// 1. strict refresh token verification; failure revokes the session.
	if _, err := s.token.VerifyRefresh(refreshToken); err != nil {
		_ = s.Revoke(ctx, uid, sessionID)
		return "", "", err
	}

	// 2. a still-fresh id token means refresh was unnecessary.
	_, fresh, err := s.Verify(ctx, idToken)
	if err != nil {
		_ = s.Revoke(ctx, uid, sessionID)
		return "", "", err
	}
	if fresh {
		return "", "", apperrors.New(apperrors.KindActiveSessionExists, "id token still active")
	}

	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return "", "", err
	}

	encUID, encSessionID, err := s.encryptPair(uid, sessionID, dekRecord.Dek)
	if err != nil {
		return "", "", err
	}

	// 3. locate the session.
	dbCtx, cancel := s.withTimeout(ctx)
	var doc document
	findErr := s.collection().FindOne(dbCtx, bson.D{
		{Key: "uid", Value: encUID},
		{Key: "session_id", Value: encSessionID},
		{Key: "is_revoked", Value: false},
	}).Decode(&doc)
	cancel()
	if database.IsNotFound(findErr) {
		return "", "", apperrors.New(apperrors.KindSessionExpired, "session not found or revoked")
	}
	if findErr != nil {
		return "", "", apperrors.Wrap(apperrors.KindServerError, "failed to query session", findErr)
	}

	// 4. user agent mismatch: alert but do not revoke (spec.md §9 open
	// question, preserved as-is).
	storedUA, err := s.crypto.Decrypt(doc.UserAgent, dekRecord.Dek)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt user agent", err)
	}
	if storedUA != userAgent {
		if storedEmail, derr := s.crypto.Decrypt(doc.Email, dekRecord.Dek); derr == nil {
			s.sendBestEffort(ctx, storedEmail, "New sign-in device detected",
				"A session refresh was attempted from a device we don't recognize. If this wasn't you, revoke your sessions immediately.")
		}
		return "", "", apperrors.New(apperrors.KindInvalidUserAgent, "user agent mismatch")
	}

	storedIDToken, err := s.crypto.Decrypt(doc.IDToken, dekRecord.Dek)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt id token", err)
	}
	storedRefreshToken, err := s.crypto.Decrypt(doc.RefreshToken, dekRecord.Dek)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt refresh token", err)
	}

	// 6. replay with the right session id but stale tokens.
	if storedIDToken != idToken || storedRefreshToken != refreshToken {
		_ = s.Revoke(ctx, uid, sessionID)
		return "", "", apperrors.New(apperrors.KindTokenInvalid, "stored tokens do not match presented tokens")
	}

	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return "", "", err
	}

	newIDToken, err = s.token.SignID(token.IDTokenData{
		UID:             user.Uid,
		DisplayName:     user.Name,
		Role:            user.Role,
		IsActive:        user.IsActive,
		IsEmailVerified: user.EmailVerified,
	})
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.token.SignRefresh(uid)
	if err != nil {
		return "", "", err
	}

	encNewIDToken, encNewRefreshToken, err := s.encryptPair(newIDToken, newRefreshToken, dekRecord.Dek)
	if err != nil {
		return "", "", err
	}

	// 5. atomic rotation: match on the old encrypted tokens so a concurrent
	// refresh of the same session can only win once.
	dbCtx2, cancel2 := s.withTimeout(ctx)
	res, err := s.collection().UpdateOne(dbCtx2, bson.D{
		{Key: "uid", Value: encUID},
		{Key: "session_id", Value: encSessionID},
		{Key: "id_token", Value: doc.IDToken},
		{Key: "refresh_token", Value: doc.RefreshToken},
		{Key: "is_revoked", Value: false},
	}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "id_token", Value: encNewIDToken},
		{Key: "refresh_token", Value: encNewRefreshToken},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}})
	cancel2()
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindServerError, "failed to rotate session tokens", err)
	}
	if res.MatchedCount == 0 {
		_ = s.Revoke(ctx, uid, sessionID)
		return "", "", apperrors.New(apperrors.KindTokenInvalid, "replay detected during rotation")
	}

	return newIDToken, newRefreshToken, nil
}

// Revoke sets is_revoked=true for the session identified by (uid, sessionID).
func (s *Store) Revoke(ctx context.Context, uid, sessionID string) error {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return err
	}
	encUID, encSessionID, err := s.encryptPair(uid, sessionID, dekRecord.Dek)
	if err != nil {
		return err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.collection().UpdateOne(dbCtx,
		bson.D{{Key: "uid", Value: encUID}, {Key: "session_id", Value: encSessionID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_revoked", Value: true}, {Key: "updated_at", Value: time.Now().UTC()}}}},
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to revoke session", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.KindSessionNotFound, "session not found")
	}
	return nil
}

// Delete removes the session identified by (uid, sessionID).
func (s *Store) Delete(ctx context.Context, uid, sessionID string) error {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return err
	}
	encUID, encSessionID, err := s.encryptPair(uid, sessionID, dekRecord.Dek)
	if err != nil {
		return err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.collection().DeleteOne(dbCtx, bson.D{{Key: "uid", Value: encUID}, {Key: "session_id", Value: encSessionID}})
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to delete session", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.New(apperrors.KindSessionNotFound, "session not found")
	}
	return nil
}

// RevokeAll sets is_revoked=true for every session belonging to uid. It is
// idempotent: calling it again against an already-revoked set is a no-op on
// counts (spec.md §9 testable property).
func (s *Store) RevokeAll(ctx context.Context, uid string) error {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return err
	}
	encUID, err := s.crypto.Encrypt(uid, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection().UpdateMany(dbCtx,
		bson.D{{Key: "uid", Value: encUID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_revoked", Value: true}, {Key: "updated_at", Value: time.Now().UTC()}}}},
	); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to revoke sessions", err)
	}
	return nil
}

// DeleteAllForUID removes every session for uid. It satisfies
// user/store.SessionDeleter so UserStore can cascade a user deletion here.
// A missing DEK record surfaces as KindKeyNotFound — sessions keyed under
// that DEK can no longer be located — so the caller can fold it into a
// PartialDelete outcome rather than mistaking it for success.
func (s *Store) DeleteAllForUID(ctx context.Context, uid string) error {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return err
	}
	encUID, err := s.crypto.Encrypt(uid, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.collection().DeleteMany(dbCtx, bson.D{{Key: "uid", Value: encUID}}); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to delete sessions", err)
	}
	return nil
}

// DeleteAll is the session-admin entry point for bulk deletion (spec.md §6's
// `/api/session/delete-all`); it is DeleteAllForUID under a name that reads
// naturally from that handler.
func (s *Store) DeleteAll(ctx context.Context, uid string) error {
	return s.DeleteAllForUID(ctx, uid)
}

// GetAllForUID returns every session belonging to uid, decrypted, sorted
// ascending by created_at.
func (s *Store) GetAllForUID(ctx context.Context, uid string) ([]*sessionDomain.Session, error) {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	encUID, err := s.crypto.Encrypt(uid, dekRecord.Dek)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.collection().Find(dbCtx,
		bson.D{{Key: "uid", Value: encUID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to query sessions", err)
	}
	defer cur.Close(dbCtx)

	var docs []document
	if err := cur.All(dbCtx, &docs); err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to decode sessions", err)
	}

	sessions := make([]*sessionDomain.Session, 0, len(docs))
	for _, doc := range docs {
		sess, err := s.decrypt(doc, dekRecord.Dek)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// GetDetails returns the single session identified by (uid, sessionID).
func (s *Store) GetDetails(ctx context.Context, uid, sessionID string) (*sessionDomain.Session, error) {
	dekRecord, err := s.dek.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	encUID, encSessionID, err := s.encryptPair(uid, sessionID, dekRecord.Dek)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	err = s.collection().FindOne(dbCtx, bson.D{{Key: "uid", Value: encUID}, {Key: "session_id", Value: encSessionID}}).Decode(&doc)
	if database.IsNotFound(err) {
		return nil, apperrors.New(apperrors.KindSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to query session", err)
	}
	return s.decrypt(doc, dekRecord.Dek)
}

// GetAll returns every session system-wide, decrypted, sorted ascending by
// created_at (spec.md §4.6). No session is addressable except through its
// owner's DEK, so this walks every user and concatenates their sessions
// rather than scanning the collection directly.
func (s *Store) GetAll(ctx context.Context) ([]*sessionDomain.Session, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var all []*sessionDomain.Session
	for _, user := range users {
		sessions, err := s.GetAllForUID(ctx, user.Uid)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

// CountActive returns the number of non-revoked sessions (SPEC_FULL.md §4.10
// overview). is_revoked is stored in plaintext, so this needs no DEK lookup.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.collection().CountDocuments(dbCtx, bson.D{{Key: "is_revoked", Value: false}})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindServerError, "failed to count sessions", err)
	}
	return n, nil
}

// CleanExpired deletes every revoked session whose refresh token has
// necessarily expired — token.RefreshTokenTTL since its last token rotation
// — bounding the sessions collection's growth (SPEC_FULL.md §4.6). Only
// revoked sessions are swept: an un-revoked session, however old, is still a
// live credential and must never be garbage collected out from under it.
func (s *Store) CleanExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-token.RefreshTokenTTL)

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.collection().DeleteMany(dbCtx, bson.D{
		{Key: "is_revoked", Value: true},
		{Key: "updated_at", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindServerError, "failed to clean expired sessions", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) encryptPair(a, b, dekKey string) (string, string, error) {
	encA, err := s.crypto.Encrypt(a, dekKey)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt value", err)
	}
	encB, err := s.crypto.Encrypt(b, dekKey)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt value", err)
	}
	return encA, encB, nil
}

func (s *Store) encrypt(sess sessionDomain.Session, dekKey string) (document, error) {
	uid, err := s.crypto.Encrypt(sess.Uid, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}
	sessionID, err := s.crypto.Encrypt(sess.SessionID, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt session id", err)
	}
	email, err := s.crypto.Encrypt(sess.Email, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt email", err)
	}
	userAgent, err := s.crypto.Encrypt(sess.UserAgent, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt user agent", err)
	}
	idToken, err := s.crypto.Encrypt(sess.IDToken, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt id token", err)
	}
	refreshToken, err := s.crypto.Encrypt(sess.RefreshToken, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt refresh token", err)
	}

	return document{
		UID:          uid,
		SessionID:    sessionID,
		Email:        email,
		UserAgent:    userAgent,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		IsRevoked:    sess.IsRevoked,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
	}, nil
}

func (s *Store) decrypt(doc document, dekKey string) (*sessionDomain.Session, error) {
	uid, err := s.crypto.Decrypt(doc.UID, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt uid", err)
	}
	sessionID, err := s.crypto.Decrypt(doc.SessionID, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt session id", err)
	}
	email, err := s.crypto.Decrypt(doc.Email, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt email", err)
	}
	userAgent, err := s.crypto.Decrypt(doc.UserAgent, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt user agent", err)
	}
	idToken, err := s.crypto.Decrypt(doc.IDToken, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt id token", err)
	}
	refreshToken, err := s.crypto.Decrypt(doc.RefreshToken, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt refresh token", err)
	}

	return &sessionDomain.Session{
		Uid:          uid,
		SessionID:    sessionID,
		Email:        email,
		UserAgent:    userAgent,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		IsRevoked:    doc.IsRevoked,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}
