// Package store implements UserStore (spec.md §4.5): the user record,
// encrypted at rest under the owning account's DEK, plus the password-reset
// and email-verification request collections it owns.
package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
	"github.com/allisson/flexauth/internal/database"
	apperrors "github.com/allisson/flexauth/internal/errors"
	"github.com/allisson/flexauth/internal/mailer"
	"github.com/allisson/flexauth/internal/password"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
)

const usersCollection = "users"

// DekStore is the subset of dek.Store UserStore depends on directly.
type DekStore interface {
	Get(ctx context.Context, identifier string) (cryptoDomain.DekRecord, error)
}

// DekDeleter is the subset of dek.Store UserStore needs to cascade a user
// deletion into its DEK record.
type DekDeleter interface {
	Delete(ctx context.Context, uid string) error
}

// SessionDeleter is the subset of session management UserStore needs to
// cascade a user deletion into its sessions.
type SessionDeleter interface {
	DeleteAllForUID(ctx context.Context, uid string) error
}

// document is the wire shape of a user: name/email/role/password encrypted
// under the owner's DEK, everything else plaintext (spec.md §3).
type document struct {
	UID                 string     `bson:"uid"`
	Name                string     `bson:"name"`
	Email               string     `bson:"email"`
	Role                string     `bson:"role"`
	Password            string     `bson:"password"`
	EmailVerified       bool       `bson:"email_verified"`
	IsActive            bool       `bson:"is_active"`
	FailedLoginAttempts int        `bson:"failed_login_attempts"`
	BlockedUntil        *time.Time `bson:"blocked_until,omitempty"`
	CreatedAt           time.Time  `bson:"created_at"`
	UpdatedAt           time.Time  `bson:"updated_at"`
}

// Store implements UserStore over a Mongo collection.
type Store struct {
	db             *mongo.Database
	dek            DekStore
	dekDeleter     DekDeleter
	sessionDeleter SessionDeleter
	crypto         service.CryptoService
	password       *password.Service
	mail           mailer.Mailer
	logger         *slog.Logger
	timeout        time.Duration
	serverURL      string
}

// NewStore creates a Store. serverURL is embedded into the reset/verification
// links emailed to users.
func NewStore(
	db *mongo.Database,
	dek DekStore,
	dekDeleter DekDeleter,
	sessionDeleter SessionDeleter,
	crypto service.CryptoService,
	passwordSvc *password.Service,
	mail mailer.Mailer,
	logger *slog.Logger,
	timeout time.Duration,
	serverURL string,
) *Store {
	return &Store{
		db:             db,
		dek:            dek,
		dekDeleter:     dekDeleter,
		sessionDeleter: sessionDeleter,
		crypto:         crypto,
		password:       passwordSvc,
		mail:           mail,
		logger:         logger,
		timeout:        timeout,
		serverURL:      serverURL,
	}
}

func (s *Store) sendBestEffort(ctx context.Context, to, subject, body string) {
	mailer.SendBestEffort(ctx, s.logger, s.mail, to, subject, body)
}

func (s *Store) collection() *mongo.Collection {
	return s.db.Collection(usersCollection)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Create inserts user, encrypting name/email/role/password under dekKey
// (spec.md §4.5: "passes the user through the field-level encryption helper
// ... using the caller-provided DEK").
func (s *Store) Create(ctx context.Context, user *userDomain.User, dekKey string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.encrypt(user, dekKey)
	if err != nil {
		return err
	}

	if _, err := s.collection().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.New(apperrors.KindUserAlreadyExists, "user already exists")
		}
		return apperrors.Wrap(apperrors.KindServerError, "failed to insert user", err)
	}
	return nil
}

// GetByUID loads and decrypts the user identified by uid.
func (s *Store) GetByUID(ctx context.Context, uid string) (*userDomain.User, error) {
	return s.get(ctx, uid)
}

// GetByEmail loads and decrypts the user identified by email. The DEK lookup
// is keyed by email, but the user document itself is always found by its
// plaintext uid, per spec.md §4.5.
func (s *Store) GetByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	return s.get(ctx, email)
}

// get resolves dekIdentifier (a uid or an email) to its owner's DEK record,
// then always looks the user document up by that record's plaintext uid.
func (s *Store) get(ctx context.Context, dekIdentifier string) (*userDomain.User, error) {
	dekRecord, err := s.dek.Get(ctx, dekIdentifier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc document
	err = s.collection().FindOne(ctx, bson.D{{Key: "uid", Value: dekRecord.Uid}}).Decode(&doc)
	if database.IsNotFound(err) {
		return nil, apperrors.New(apperrors.KindUserNotFound, "user not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to query user", err)
	}

	return s.decrypt(doc, dekRecord.Dek)
}

// GetAll returns every user, decrypted. Each record is decrypted under its
// own owner's DEK, so this issues one DekStore lookup per user.
func (s *Store) GetAll(ctx context.Context) ([]*userDomain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.collection().Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to query users", err)
	}
	defer cur.Close(ctx)

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperrors.Wrap(apperrors.KindServerError, "failed to decode users", err)
	}

	users := make([]*userDomain.User, 0, len(docs))
	for _, doc := range docs {
		dekRecord, err := s.dek.Get(ctx, doc.UID)
		if err != nil {
			return nil, err
		}
		user, err := s.decrypt(doc, dekRecord.Dek)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// Count returns the total number of users (SPEC_FULL.md §4.10 overview).
func (s *Store) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.collection().CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindServerError, "failed to count users", err)
	}
	return n, nil
}

// CountPendingResets returns the number of unused, unexpired password
// reset requests (SPEC_FULL.md §4.10 overview).
func (s *Store) CountPendingResets(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.db.Collection(resetRequestsCollection).CountDocuments(ctx, bson.D{
		{Key: "is_used", Value: false},
		{Key: "valid_till", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}},
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindServerError, "failed to count pending resets", err)
	}
	return n, nil
}

// CountPendingVerifications returns the number of unexpired email
// verification requests (SPEC_FULL.md §4.10 overview).
func (s *Store) CountPendingVerifications(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.db.Collection(verificationRequestsCollection).CountDocuments(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}},
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindServerError, "failed to count pending verifications", err)
	}
	return n, nil
}

func (s *Store) encrypt(user *userDomain.User, dekKey string) (document, error) {
	name, err := s.crypto.Encrypt(user.Name, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt name", err)
	}
	email, err := s.crypto.Encrypt(user.Email, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt email", err)
	}
	role, err := s.crypto.Encrypt(user.Role, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt role", err)
	}
	pass, err := s.crypto.Encrypt(user.Password, dekKey)
	if err != nil {
		return document{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt password", err)
	}

	return document{
		UID:                 user.Uid,
		Name:                name,
		Email:               email,
		Role:                role,
		Password:            pass,
		EmailVerified:       user.EmailVerified,
		IsActive:            user.IsActive,
		FailedLoginAttempts: user.FailedLoginAttempts,
		BlockedUntil:        user.BlockedUntil,
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.UpdatedAt,
	}, nil
}

func (s *Store) decrypt(doc document, dekKey string) (*userDomain.User, error) {
	name, err := s.crypto.Decrypt(doc.Name, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt name", err)
	}
	email, err := s.crypto.Decrypt(doc.Email, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt email", err)
	}
	role, err := s.crypto.Decrypt(doc.Role, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt role", err)
	}
	pass, err := s.crypto.Decrypt(doc.Password, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt password", err)
	}

	return &userDomain.User{
		Uid:                 doc.UID,
		Name:                name,
		Email:               email,
		Role:                role,
		Password:            pass,
		EmailVerified:       doc.EmailVerified,
		IsActive:            doc.IsActive,
		FailedLoginAttempts: doc.FailedLoginAttempts,
		BlockedUntil:        doc.BlockedUntil,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}, nil
}
