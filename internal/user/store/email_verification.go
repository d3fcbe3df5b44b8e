package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/allisson/flexauth/internal/database"
	apperrors "github.com/allisson/flexauth/internal/errors"
)

const (
	verificationRequestsCollection = "email_verification_requests"
	verificationRequestTTL         = 24 * time.Hour
)

// verificationRequestDocument is the wire shape of an Email-Verification
// Request (spec.md §3): uid is plaintext (it references User.uid directly),
// email is encrypted under the owner's DEK.
type verificationRequestDocument struct {
	ReqID     string    `bson:"_id"`
	UID       string    `bson:"uid"`
	Email     string    `bson:"email"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// RequestEmailVerification creates a verification request valid for 24
// hours and emails a link containing its id.
func (s *Store) RequestEmailVerification(ctx context.Context, email string) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	encEmail, err := s.crypto.Encrypt(email, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt email", err)
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	reqID := uuid.New().String()
	doc := verificationRequestDocument{
		ReqID:     reqID,
		UID:       dekRecord.Uid,
		Email:     encEmail,
		ExpiresAt: now.Add(verificationRequestTTL),
		CreatedAt: now,
	}

	if _, err := s.db.Collection(verificationRequestsCollection).InsertOne(dbCtx, doc); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to insert email verification request", err)
	}

	link := fmt.Sprintf("%s/api/user/verify-email/%s", s.serverURL, reqID)
	body := fmt.Sprintf("Use the following link to verify your email address: %s\nThis link expires in 24 hours.", link)
	s.sendBestEffort(ctx, email, "Verify your email address", body)
	return nil
}

// ConfirmEmailVerification sets email_verified = true for the request's
// owner and deletes the request. Fails with KindVerificationExpired if the
// request has already expired, KindVerificationNotFound if reqID is
// unknown.
func (s *Store) ConfirmEmailVerification(ctx context.Context, reqID string) error {
	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc verificationRequestDocument
	err := s.db.Collection(verificationRequestsCollection).FindOne(dbCtx, bson.D{{Key: "_id", Value: reqID}}).Decode(&doc)
	if database.IsNotFound(err) {
		return apperrors.New(apperrors.KindVerificationNotFound, "verification request not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to query verification request", err)
	}

	if time.Now().UTC().After(doc.ExpiresAt) {
		return apperrors.New(apperrors.KindVerificationExpired, "verification request expired")
	}

	if err := s.updateOneByUID(ctx, doc.UID, bson.D{
		{Key: "email_verified", Value: true},
		{Key: "updated_at", Value: time.Now().UTC()},
	}); err != nil {
		return err
	}

	if _, err := s.db.Collection(verificationRequestsCollection).DeleteOne(dbCtx, bson.D{{Key: "_id", Value: reqID}}); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to delete verification request", err)
	}
	return nil
}
