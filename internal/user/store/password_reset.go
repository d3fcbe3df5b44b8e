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
	resetRequestsCollection = "forget_password_requests"
	resetRequestTTL         = 10 * time.Minute
)

// resetRequestDocument is the wire shape of a ForgetPasswordRequest
// (spec.md §3): email encrypted under the owner's DEK, everything else
// plaintext.
type resetRequestDocument struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	IsUsed    bool      `bson:"is_used"`
	ValidTill time.Time `bson:"valid_till"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// RequestPasswordReset creates a reset request valid for 10 minutes and
// emails a link containing its id (spec.md §4.5).
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
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
	id := uuid.New().String()
	doc := resetRequestDocument{
		ID:        id,
		Email:     encEmail,
		IsUsed:    false,
		ValidTill: now.Add(resetRequestTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.db.Collection(resetRequestsCollection).InsertOne(dbCtx, doc); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to insert password reset request", err)
	}

	link := fmt.Sprintf("%s/api/password/forget-reset/%s", s.serverURL, id)
	body := fmt.Sprintf("Use the following link to reset your password: %s\nThis link expires in 10 minutes.", link)
	s.sendBestEffort(ctx, email, "Password reset request", body)
	return nil
}

// ApplyPasswordReset validates reqID (exists, not used, not expired), then
// rehashes newPassword and marks the request used.
func (s *Store) ApplyPasswordReset(ctx context.Context, reqID, email, newPassword string) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc resetRequestDocument
	err = s.db.Collection(resetRequestsCollection).FindOne(dbCtx, bson.D{{Key: "_id", Value: reqID}}).Decode(&doc)
	if database.IsNotFound(err) {
		return apperrors.New(apperrors.KindResetLinkNotFound, "reset request not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to query reset request", err)
	}

	now := time.Now().UTC()
	if doc.IsUsed || now.After(doc.ValidTill) {
		return apperrors.New(apperrors.KindResetLinkExpired, "reset request expired or already used")
	}

	if err := s.password.Validate(newPassword); err != nil {
		return err
	}
	hashed, err := s.password.Hash(newPassword)
	if err != nil {
		return err
	}
	encPassword, err := s.crypto.Encrypt(hashed, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt password", err)
	}

	// consume the reset request atomically: only succeeds if it is still
	// unused and unexpired at the moment of the write (spec.md §5).
	res, err := s.db.Collection(resetRequestsCollection).UpdateOne(
		dbCtx,
		bson.D{{Key: "_id", Value: reqID}, {Key: "is_used", Value: false}, {Key: "valid_till", Value: bson.D{{Key: "$gt", Value: now}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_used", Value: true}, {Key: "updated_at", Value: now}}}},
	)
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to consume reset request", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.KindResetLinkExpired, "reset request expired or already used")
	}

	if err := s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "password", Value: encPassword},
		{Key: "updated_at", Value: now},
	}); err != nil {
		return err
	}

	s.sendBestEffort(ctx, email, "Password changed", "Your password has been reset successfully.")
	return nil
}
