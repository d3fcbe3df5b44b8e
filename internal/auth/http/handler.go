// Package http provides HTTP handlers for the sign-up/sign-in/sign-out
// entry points (spec.md §6).
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	authDomain "github.com/allisson/flexauth/internal/auth/domain"
	"github.com/allisson/flexauth/internal/httputil"
	appValidation "github.com/allisson/flexauth/internal/validation"
)

// AuthCoordinator is the subset of coordinator.AuthCoordinator Handler
// depends on.
type AuthCoordinator interface {
	SignUp(ctx context.Context, in authDomain.SignUpInput) (*authDomain.Response, error)
	SignIn(ctx context.Context, in authDomain.SignInInput) (*authDomain.Response, error)
}

// SessionRevoker is the subset of session/store.Store sign-out needs.
type SessionRevoker interface {
	Revoke(ctx context.Context, uid, sessionID string) error
}

// Handler implements the /api/auth/* endpoints.
type Handler struct {
	coordinator AuthCoordinator
	sessions    SessionRevoker
	logger      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(coordinator AuthCoordinator, sessions SessionRevoker, logger *slog.Logger) *Handler {
	return &Handler{coordinator: coordinator, sessions: sessions, logger: logger}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (r *signUpRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Role, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignUpHandler creates an account plus its initial session.
// POST /api/auth/signup
func (h *Handler) SignUpHandler(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}

	resp, err := h.coordinator.SignUp(c.Request.Context(), authDomain.SignUpInput{
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Password:  req.Password,
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *signInRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Password, validation.Required, appValidation.NotBlank),
	)
}

// SignInHandler authenticates an existing account and mints a new session.
// POST /api/auth/signin
func (h *Handler) SignInHandler(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}

	resp, err := h.coordinator.SignIn(c.Request.Context(), authDomain.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type signOutRequest struct {
	UID       string `json:"uid"`
	SessionID string `json:"session_id"`
}

func (r *signOutRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UID, validation.Required, appValidation.NotBlank),
		validation.Field(&r.SessionID, validation.Required, appValidation.NotBlank),
	)
}

// SignOutHandler revokes a single session.
// POST /api/auth/signout
func (h *Handler) SignOutHandler(c *gin.Context) {
	var req signOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.sessions.Revoke(c.Request.Context(), req.UID, req.SessionID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}
