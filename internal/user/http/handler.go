// Package http provides HTTP handlers for the user-admin and
// email-verification endpoints (spec.md §6).
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/flexauth/internal/httputil"
	userDomain "github.com/allisson/flexauth/internal/user/domain"
	appValidation "github.com/allisson/flexauth/internal/validation"
)

// UserStore is the subset of user/store.Store Handler depends on.
type UserStore interface {
	GetAll(ctx context.Context) ([]*userDomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userDomain.User, error)
	GetByUID(ctx context.Context, uid string) (*userDomain.User, error)
	UpdateName(ctx context.Context, email, name string) error
	UpdateRole(ctx context.Context, email, role string) error
	ToggleActivation(ctx context.Context, email string, isActive bool) error
	Delete(ctx context.Context, email string) error
	RequestEmailVerification(ctx context.Context, email string) error
	ConfirmEmailVerification(ctx context.Context, reqID string) error
}

// Handler implements the /api/user/* endpoints.
type Handler struct {
	users  UserStore
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(users UserStore, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// response is the public projection of a user record: password never
// leaves the store.
type response struct {
	UID           string     `json:"uid"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	IsActive      bool       `json:"is_active"`
	BlockedUntil  *time.Time `json:"blocked_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toResponse(u *userDomain.User) response {
	return response{
		UID:           u.Uid,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		BlockedUntil:  u.BlockedUntil,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// GetAllHandler lists every user.
// POST /api/user/get-all
func (h *Handler) GetAllHandler(c *gin.Context) {
	users, err := h.users.GetAll(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	out := make([]response, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r *emailRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Email, validation.Required, appValidation.NotBlank))
}

// GetFromEmailHandler looks a user up by email.
// POST /api/user/get-from-email
func (h *Handler) GetFromEmailHandler(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toResponse(user))
}

type uidRequest struct {
	UID string `json:"uid"`
}

func (r *uidRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.UID, validation.Required, appValidation.NotBlank))
}

// GetFromIDHandler looks a user up by uid.
// POST /api/user/get-from-id
func (h *Handler) GetFromIDHandler(c *gin.Context) {
	var req uidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	user, err := h.users.GetByUID(c.Request.Context(), req.UID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toResponse(user))
}

type updateRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r *updateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Name, validation.Required, appValidation.NotBlank),
	)
}

// UpdateHandler changes a user's display name.
// POST /api/user/update
func (h *Handler) UpdateHandler(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.UpdateName(c.Request.Context(), req.Email, req.Name); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type updateRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r *updateRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Role, validation.Required, appValidation.NotBlank),
	)
}

// UpdateRoleHandler changes a user's role.
// POST /api/user/update-role
func (h *Handler) UpdateRoleHandler(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.UpdateRole(c.Request.Context(), req.Email, req.Role); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type toggleActiveRequest struct {
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

func (r *toggleActiveRequest) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Email, validation.Required, appValidation.NotBlank))
}

// ToggleAccountActiveStatusHandler flips a user's is_active flag.
// POST /api/user/toggle-account-active-status
func (h *Handler) ToggleAccountActiveStatusHandler(c *gin.Context) {
	var req toggleActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.ToggleActivation(c.Request.Context(), req.Email, req.IsActive); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteHandler removes a user and its dependent records.
// POST /api/user/delete
func (h *Handler) DeleteHandler(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.Delete(c.Request.Context(), req.Email); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// VerifyEmailRequestHandler sends a verification link to email.
// POST /api/user/verify-email-request
func (h *Handler) VerifyEmailRequestHandler(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.RequestEmailVerification(c.Request.Context(), req.Email); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}

// VerifyEmailHandler confirms a pending verification request.
// GET /api/user/verify-email/:id
func (h *Handler) VerifyEmailHandler(c *gin.Context) {
	if err := h.users.ConfirmEmailVerification(c.Request.Context(), c.Param("id")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}
