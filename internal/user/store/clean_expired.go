package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	apperrors "github.com/allisson/flexauth/internal/errors"
)

// CleanExpired deletes password reset and email verification requests that
// have passed their expiry, used or not (SPEC_FULL.md §2 CLI `clean-expired`).
// Unexpired requests are left untouched. Returns the number of
// documents removed from each collection.
func (s *Store) CleanExpired(ctx context.Context) (resets int64, verifications int64, err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()

	resetRes, err := s.db.Collection(resetRequestsCollection).DeleteMany(ctx, bson.D{
		{Key: "valid_till", Value: bson.D{{Key: "$lte", Value: now}}},
	})
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.KindServerError, "failed to clean expired password reset requests", err)
	}

	verificationRes, err := s.db.Collection(verificationRequestsCollection).DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}},
	})
	if err != nil {
		return resetRes.DeletedCount, 0, apperrors.Wrap(apperrors.KindServerError, "failed to clean expired email verification requests", err)
	}

	return resetRes.DeletedCount, verificationRes.DeletedCount, nil
}
