package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	apperrors "github.com/allisson/flexauth/internal/errors"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
)

// UpdateRole re-encrypts role under the user's DEK and stores it.
func (s *Store) UpdateRole(ctx context.Context, email, role string) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	encRole, err := s.crypto.Encrypt(role, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt role", err)
	}

	return s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "role", Value: encRole},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// ToggleActivation flips the plaintext is_active flag.
func (s *Store) ToggleActivation(ctx context.Context, email string, isActive bool) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	return s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "is_active", Value: isActive},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// UpdateName re-encrypts name under the user's DEK and stores it.
func (s *Store) UpdateName(ctx context.Context, email, name string) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	encName, err := s.crypto.Encrypt(name, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt name", err)
	}

	return s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "name", Value: encName},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// ChangePassword verifies oldPassword against the stored credential, then
// hashes and stores newPassword. Fails with KindInvalidPassword if
// oldPassword does not match.
func (s *Store) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !s.password.Verify(oldPassword, user.Password) {
		return apperrors.New(apperrors.KindInvalidPassword, "old password does not match")
	}

	if err := s.password.Validate(newPassword); err != nil {
		return err
	}

	hashed, err := s.password.Hash(newPassword)
	if err != nil {
		return err
	}

	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	encPassword, err := s.crypto.Encrypt(hashed, dekRecord.Dek)
	if err != nil {
		return apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt password", err)
	}

	return s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "password", Value: encPassword},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// IncreaseFailedLoginAttempts atomically increments failed_login_attempts
// and, when the new count reaches one of userDomain.FailedLoginThresholds,
// also writes blocked_until and emails a lockout warning (spec.md §4.5).
// Writing the same blocked_until twice under concurrent callers is accepted
// as idempotent (spec.md §5).
func (s *Store) IncreaseFailedLoginAttempts(ctx context.Context, email string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	newCount := user.FailedLoginAttempts + 1
	set := bson.D{
		{Key: "failed_login_attempts", Value: newCount},
		{Key: "updated_at", Value: time.Now().UTC()},
	}

	blockDuration, blocked := userDomain.FailedLoginThresholds[newCount]
	if blocked {
		set = append(set, bson.E{Key: "blocked_until", Value: time.Now().UTC().Add(blockDuration)})
	}

	_, err = s.collection().UpdateOne(dbCtx, bson.D{{Key: "uid", Value: user.Uid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to increase failed login attempts", err)
	}

	if blocked {
		s.sendLockoutWarning(ctx, user.Email, blockDuration)
	}
	return nil
}

// ResetFailedLoginAttempts sets the counter back to zero.
func (s *Store) ResetFailedLoginAttempts(ctx context.Context, email string) error {
	dekRecord, err := s.dek.Get(ctx, email)
	if err != nil {
		return err
	}

	return s.updateOneByUID(ctx, dekRecord.Uid, bson.D{
		{Key: "failed_login_attempts", Value: 0},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) updateOneByUID(ctx context.Context, uid string, set bson.D) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.collection().UpdateOne(ctx, bson.D{{Key: "uid", Value: uid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to update user", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.New(apperrors.KindUserNotFound, "user not found")
	}
	return nil
}

// Delete removes a user's sessions, then its DEK record, then the user row
// itself (spec.md §4.5). Sessions go first: session documents are matched by
// fields encrypted under the user's DEK, so they must be cleaned up while
// that DEK can still be resolved. The user is located through its DEK
// record, so when that record is already missing Delete fails with
// KindKeyNotFound and deletes nothing. If the DEK record disappears after
// that lookup (the session sweep or the DEK delete reports KindKeyNotFound),
// the deletion still proceeds and returns a KindPartialDelete rather than
// silently reporting success or a misleading UserNotFound.
func (s *Store) Delete(ctx context.Context, email string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	partial := false

	if err := s.sessionDeleter.DeleteAllForUID(ctx, user.Uid); err != nil {
		if !apperrors.Is(err, apperrors.KindKeyNotFound) {
			return apperrors.Wrap(apperrors.KindServerError, "failed to delete sessions", err)
		}
		partial = true
	}

	if err := s.dekDeleter.Delete(ctx, user.Uid); err != nil {
		if !apperrors.Is(err, apperrors.KindKeyNotFound) {
			return err
		}
		partial = true
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.collection().DeleteOne(dbCtx, bson.D{{Key: "uid", Value: user.Uid}}); err != nil {
		return apperrors.Wrap(apperrors.KindServerError, "failed to delete user", err)
	}

	if partial {
		return apperrors.New(apperrors.KindPartialDelete, "user deleted but some dependent records were already missing")
	}
	return nil
}

func (s *Store) sendLockoutWarning(ctx context.Context, email string, blockedFor time.Duration) {
	subject := "Account temporarily locked"
	body := "Your account has been temporarily locked due to repeated failed sign-in attempts. " +
		"Try again in " + blockedFor.String() + "."
	s.sendBestEffort(ctx, email, subject, body)
}
