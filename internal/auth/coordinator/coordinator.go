// Package coordinator implements AuthCoordinator (spec.md §4.7): the
// sign-up and sign-in flows that stitch together DekStore, UserStore,
// PasswordService, and SessionManager.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/flexauth/internal/auth/domain"
	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"
	"github.com/allisson/flexauth/internal/crypto/service"
	apperrors "github.com/allisson/flexauth/internal/errors"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
)

// UserStore is the subset of user/store.Store AuthCoordinator depends on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*userDomain.User, error)
	Create(ctx context.Context, user *userDomain.User, dekKey string) error
	IncreaseFailedLoginAttempts(ctx context.Context, email string) error
	ResetFailedLoginAttempts(ctx context.Context, email string) error
}

// DekStore is the subset of dek.Store AuthCoordinator depends on.
type DekStore interface {
	Get(ctx context.Context, identifier string) (cryptoDomain.DekRecord, error)
	Put(ctx context.Context, uid, email, dekKey string) error
}

// SessionManager is the subset of session/store.Store AuthCoordinator
// depends on to mint the initial session on sign-up/sign-in.
type SessionManager interface {
	Create(ctx context.Context, user *userDomain.User, userAgent string) (sessionID, idToken, refreshToken string, err error)
}

// PasswordService is the subset of password.Service AuthCoordinator
// depends on.
type PasswordService interface {
	Validate(plainPassword string) error
	Hash(plainPassword string) (string, error)
	Verify(plainPassword, storedCredential string) bool
}

// Coordinator implements AuthCoordinator.
type Coordinator struct {
	users    UserStore
	deks     DekStore
	sessions SessionManager
	password PasswordService
	crypto   service.CryptoService
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(
	users UserStore,
	deks DekStore,
	sessions SessionManager,
	passwordSvc PasswordService,
	crypto service.CryptoService,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		users:    users,
		deks:     deks,
		sessions: sessions,
		password: passwordSvc,
		crypto:   crypto,
		logger:   logger,
	}
}

// SignUp creates a new account plus its initial session (spec.md §4.7).
func (c *Coordinator) SignUp(ctx context.Context, in authDomain.SignUpInput) (*authDomain.Response, error) {
	if err := c.validateSignUp(in); err != nil {
		return nil, err
	}

	if _, err := c.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.New(apperrors.KindUserAlreadyExists, "user already exists")
	} else if !apperrors.Is(err, apperrors.KindUserNotFound) {
		return nil, err
	}

	hashed, err := c.password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	dekKey, err := c.crypto.GenerateKey()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to generate dek", err)
	}

	now := time.Now().UTC()
	user := &userDomain.User{
		Uid:       uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Password:  hashed,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Order matches spec.md §4.7: insert the encrypted user before the DEK
	// record so a write that only reaches the user collection never leaves a
	// persisted-but-unencryptable DEK behind.
	if err := c.users.Create(ctx, user, dekKey); err != nil {
		return nil, err
	}

	if err := c.deks.Put(ctx, user.Uid, user.Email, dekKey); err != nil {
		return nil, err
	}

	return c.createResponse(ctx, user, dekKey, in.UserAgent)
}

// SignIn authenticates an existing account and mints a new session
// (spec.md §4.7).
func (c *Coordinator) SignIn(ctx context.Context, in authDomain.SignInInput) (*authDomain.Response, error) {
	if err := c.validateSignIn(in); err != nil {
		return nil, err
	}

	user, err := c.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	if user.IsBlocked(time.Now().UTC()) {
		return nil, apperrors.New(apperrors.KindUserBlocked, "user is blocked")
	}

	dekRecord, err := c.deks.Get(ctx, user.Uid)
	if err != nil {
		return nil, err
	}

	if !c.password.Verify(in.Password, user.Password) {
		if err := c.users.IncreaseFailedLoginAttempts(ctx, user.Email); err != nil {
			c.logger.Error("failed to record failed login attempt", slog.Any("error", err))
		}
		return nil, apperrors.New(apperrors.KindWrongCredentials, "invalid credentials")
	}

	resp, err := c.createResponse(ctx, user, dekRecord.Dek, in.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := c.users.ResetFailedLoginAttempts(ctx, user.Email); err != nil {
		c.logger.Error("failed to reset failed login attempts", slog.Any("error", err))
	}

	return resp, nil
}

// createResponse mints a session for user and bundles it with the public
// user fields. sessionID is re-encrypted under dekKey so it is opaque to
// the client (spec.md §4.7 step 3).
func (c *Coordinator) createResponse(ctx context.Context, user *userDomain.User, dekKey, userAgent string) (*authDomain.Response, error) {
	sessionID, idToken, refreshToken, err := c.sessions.Create(ctx, user, userAgent)
	if err != nil {
		return nil, err
	}

	encryptedSessionID, err := c.crypto.Encrypt(sessionID, dekKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCryptoFailure, "failed to encrypt session id", err)
	}

	return &authDomain.Response{
		UID:           user.Uid,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		IsActive:      user.IsActive,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
		Session: authDomain.Session{
			SessionID:    encryptedSessionID,
			IDToken:      idToken,
			RefreshToken: refreshToken,
		},
	}, nil
}

func (c *Coordinator) validateSignUp(in authDomain.SignUpInput) error {
	if err := validateNotBlank("name", in.Name); err != nil {
		return err
	}
	if err := validateNotBlank("role", in.Role); err != nil {
		return err
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := c.password.Validate(in.Password); err != nil {
		return err
	}
	return validateUserAgent(in.UserAgent)
}

func (c *Coordinator) validateSignIn(in authDomain.SignInInput) error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateNotBlank("password", in.Password); err != nil {
		return err
	}
	return validateUserAgent(in.UserAgent)
}
