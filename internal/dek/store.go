// Package dek implements DekStore (spec.md §4.2): the per-user Data
// Encryption Key record, indexed by KEK-encrypted uid and email so a user's
// key material is findable by either identity without first holding the DEK.
package dek

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/singleflight"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
	"github.com/allisson/flexauth/internal/database"
	apperrors "github.com/allisson/flexauth/internal/errors"
)

const collectionName = "deks"

// emailPattern decides whether Get's identifier argument is an email (search
// by the encrypted email field) or a uid (search by the encrypted uid
// field) — spec.md §4.2.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9_.+-]+@[A-Za-z0-9-]+\.[A-Za-z0-9-.]+$`)

// document is the wire shape of a DEK record: every field encrypted under
// the KEK.
type document struct {
	UID       string    `bson:"uid"`
	Email     string    `bson:"email"`
	Dek       string    `bson:"dek"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements DekStore over a Mongo collection. Concurrent lookups for
// the same identifier are coalesced with singleflight — a DEK never
// changes once written, so it's safe to share the result of an in-flight
// fetch across callers that asked for the same key during the same window.
type Store struct {
	db      *mongo.Database
	crypto  service.CryptoService
	kek     cryptoDomain.KEK
	timeout time.Duration
	group   singleflight.Group
}

// NewStore creates a Store backed by db, encrypting/decrypting index fields
// and the DEK itself under kek.
func NewStore(db *mongo.Database, crypto service.CryptoService, kek cryptoDomain.KEK, timeout time.Duration) *Store {
	return &Store{db: db, crypto: crypto, kek: kek, timeout: timeout}
}

func (s *Store) collection() *mongo.Collection {
	return s.db.Collection(collectionName)
}

// Put encrypts uid, email and dek under the KEK and inserts a new record.
func (s *Store) Put(ctx context.Context, uid, email, dek string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	encUID, err := s.crypto.Encrypt(uid, string(s.kek))
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}
	encEmail, err := s.crypto.Encrypt(email, string(s.kek))
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt email", err)
	}
	encDek, err := s.crypto.Encrypt(dek, string(s.kek))
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt dek", err)
	}

	now := time.Now().UTC()
	doc := document{
		UID:       encUID,
		Email:     encEmail,
		Dek:       encDek,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.collection().InsertOne(ctx, doc); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to insert dek record", err)
	}
	return nil
}

// Get locates the DEK record for identifier (a uid or an email) and returns
// it fully decrypted. Fails with KindKeyNotFound when no record matches.
func (s *Store) Get(ctx context.Context, identifier string) (cryptoDomain.DekRecord, error) {
	v, err, _ := s.group.Do(identifier, func() (any, error) {
		return s.get(ctx, identifier)
	})
	if err != nil {
		return cryptoDomain.DekRecord{}, err
	}
	return v.(cryptoDomain.DekRecord), nil
}

func (s *Store) get(ctx context.Context, identifier string) (cryptoDomain.DekRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	field := "uid"
	if emailPattern.MatchString(identifier) {
		field = "email"
	}

	encIdentifier, err := s.crypto.Encrypt(identifier, string(s.kek))
	if err != nil {
		return cryptoDomain.DekRecord{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt identifier", err)
	}

	var doc document
	err = s.collection().FindOne(ctx, bson.D{{Key: field, Value: encIdentifier}}).Decode(&doc)
	if database.IsNotFound(err) {
		return cryptoDomain.DekRecord{}, apperrors.New(apperrors.KindKeyNotFound, "dek record not found")
	}
	if err != nil {
		return cryptoDomain.DekRecord{}, apperrors.Wrap(apperrors.KindServerError, "failed to query dek record", err)
	}

	return s.decrypt(doc)
}

func (s *Store) decrypt(doc document) (cryptoDomain.DekRecord, error) {
	uid, err := s.crypto.Decrypt(doc.UID, string(s.kek))
	if err != nil {
		return cryptoDomain.DekRecord{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt uid", err)
	}
	email, err := s.crypto.Decrypt(doc.Email, string(s.kek))
	if err != nil {
		return cryptoDomain.DekRecord{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt email", err)
	}
	plainDek, err := s.crypto.Decrypt(doc.Dek, string(s.kek))
	if err != nil {
		return cryptoDomain.DekRecord{}, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to decrypt dek", err)
	}

	return cryptoDomain.DekRecord{
		Uid:       uid,
		Email:     email,
		Dek:       plainDek,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Delete removes the DEK record for uid.
func (s *Store) Delete(ctx context.Context, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	encUID, err := s.crypto.Encrypt(uid, string(s.kek))
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt uid", err)
	}

	res, err := s.collection().DeleteOne(ctx, bson.D{{Key: "uid", Value: encUID}})
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to delete dek record", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.New(apperrors.KindKeyNotFound, fmt.Sprintf("dek record not found for uid %s", uid))
	}
	return nil
}
