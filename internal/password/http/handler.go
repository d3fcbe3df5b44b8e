// Package http provides HTTP handlers for the password-credential
// endpoints (spec.md §6): change, forget-request, forget-reset, and the
// forget-form HTML page.
package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/flexauth/internal/httputil"
	appValidation "github.com/allisson/flexauth/internal/validation"
)

// UserStore is the subset of user/store.Store Handler depends on.
type UserStore interface {
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ApplyPasswordReset(ctx context.Context, reqID, email, newPassword string) error
}

// Handler implements the /api/password/* endpoints.
type Handler struct {
	users  UserStore
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(users UserStore, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

type resetRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r *resetRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// ResetHandler changes the password of an already-authenticated account.
// POST /api/password/reset
func (h *Handler) ResetHandler(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type forgetRequestBody struct {
	Email string `json:"email"`
}

func (r *forgetRequestBody) Validate() error {
	return validation.ValidateStruct(r, validation.Field(&r.Email, validation.Required, appValidation.NotBlank))
}

// ForgetRequestHandler emails a reset link for an account that forgot its
// password.
// POST /api/password/forget-request
func (h *Handler) ForgetRequestHandler(c *gin.Context) {
	var req forgetRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}

type forgetResetBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *forgetResetBody) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgetResetHandler consumes a reset link and sets a new password.
// POST /api/password/forget-reset/:id
func (h *Handler) ForgetResetHandler(c *gin.Context) {
	var req forgetResetBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.users.ApplyPasswordReset(c.Request.Context(), c.Param("id"), req.Email, req.Password); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// forgetFormTemplate is the minimal reset form spec.md §6 exempts from the
// x-api-key gateway check. It posts straight to forget-reset/:id.
var forgetFormTemplate = template.Must(template.New("forget-form").Parse(`<!DOCTYPE html>
<html>
<head><title>Reset password</title></head>
<body>
<h1>Reset your password</h1>
<form method="post" action="/api/password/forget-reset/{{.ReqID}}">
<label>Email <input type="email" name="email" required></label><br>
<label>New password <input type="password" name="password" required></label><br>
<button type="submit">Reset password</button>
</form>
</body>
</html>
`))

// ForgetFormHandler serves the password-reset HTML page. It does not
// require x-api-key (spec.md §6).
// GET /api/password/forget-form/:id
func (h *Handler) ForgetFormHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := forgetFormTemplate.Execute(c.Writer, struct{ ReqID string }{ReqID: c.Param("id")}); err != nil {
		h.logger.Error("failed to render forget-form", slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
	}
}
