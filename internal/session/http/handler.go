// Package http provides HTTP handlers for the session-admin endpoints
// (spec.md §6): verify, refresh-session, revoke, revoke-all, delete,
// delete-all.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	"github.com/allisson/flexauth/internal/httputil"
	"github.com/allisson/flexauth/internal/token"
	appValidation "github.com/allisson/flexauth/internal/validation"
)

// SessionManager is the subset of session/store.Store Handler depends on.
type SessionManager interface {
	Verify(ctx context.Context, idToken string) (*token.Claims, bool, error)
	Refresh(ctx context.Context, uid, sessionID, idToken, refreshToken, userAgent string) (string, string, error)
	Revoke(ctx context.Context, uid, sessionID string) error
	RevokeAll(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid, sessionID string) error
	DeleteAllForUID(ctx context.Context, uid string) error
}

// Handler implements the /api/session/* endpoints.
type Handler struct {
	sessions SessionManager
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sessions SessionManager, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (r *verifyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required, appValidation.NotBlank),
	)
}

// VerifyHandler validates an id token.
// POST /api/session/verify
func (h *Handler) VerifyHandler(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}

	claims, fresh, err := h.sessions.Verify(c.Request.Context(), req.Token)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims, "fresh": fresh})
}

type refreshRequest struct {
	UID          string `json:"uid"`
	SessionID    string `json:"session_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

func (r *refreshRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UID, validation.Required, appValidation.NotBlank),
		validation.Field(&r.SessionID, validation.Required, appValidation.NotBlank),
		validation.Field(&r.IDToken, validation.Required, appValidation.NotBlank),
		validation.Field(&r.RefreshToken, validation.Required, appValidation.NotBlank),
	)
}

// RefreshHandler rotates a stale session's tokens.
// POST /api/session/refresh-session
func (h *Handler) RefreshHandler(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}

	idToken, refreshToken, err := h.sessions.Refresh(
		c.Request.Context(), req.UID, req.SessionID, req.IDToken, req.RefreshToken, c.GetHeader("User-Agent"),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id_token": idToken, "refresh_token": refreshToken})
}

type sessionScopeRequest struct {
	UID       string `json:"uid"`
	SessionID string `json:"session_id"`
}

func (r *sessionScopeRequest) validateWithSession() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UID, validation.Required, appValidation.NotBlank),
		validation.Field(&r.SessionID, validation.Required, appValidation.NotBlank),
	)
}

func (r *sessionScopeRequest) validateUIDOnly() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UID, validation.Required, appValidation.NotBlank),
	)
}

// RevokeHandler revokes a single session.
// POST /api/session/revoke
func (h *Handler) RevokeHandler(c *gin.Context) {
	var req sessionScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.validateWithSession(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), req.UID, req.SessionID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// RevokeAllHandler revokes every session belonging to a user.
// POST /api/session/revoke-all
func (h *Handler) RevokeAllHandler(c *gin.Context) {
	var req sessionScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.validateUIDOnly(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.sessions.RevokeAll(c.Request.Context(), req.UID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// DeleteHandler removes a single session record.
// POST /api/session/delete
func (h *Handler) DeleteHandler(c *gin.Context) {
	var req sessionScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.validateWithSession(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), req.UID, req.SessionID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteAllHandler removes every session record belonging to a user.
// POST /api/session/delete-all
func (h *Handler) DeleteAllHandler(c *gin.Context) {
	var req sessionScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.validateUIDOnly(); err != nil {
		httputil.HandleValidationErrorGin(c, appValidation.WrapValidationError(err), h.logger)
		return
	}
	if err := h.sessions.DeleteAllForUID(c.Request.Context(), req.UID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
