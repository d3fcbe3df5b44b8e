// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/flexauth/internal/errors"
)

// errorBody is the envelope every non-2xx response carries (spec.md §7):
// {"error": {"type": <KIND>, "req_uuid": <uuid>}}.
type errorBody struct {
	Type    apperrors.Kind `json:"type"`
	ReqUUID string         `json:"req_uuid"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// HandleErrorGin maps a domain error to its spec.md §7 status code and
// writes the error envelope. Untyped errors surface as ServerError/500
// without leaking their message to the client.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	kind := apperrors.KindOf(err)
	status := apperrors.StatusFor(err)

	if logger != nil {
		logLevel := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			logLevel = slog.LevelError
		}
		logger.Log(c.Request.Context(), logLevel, "request failed",
			slog.Int("status", status),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
	}

	c.JSON(status, errorResponse{Error: errorBody{Type: kind, ReqUUID: requestid.Get(c)}})
}

// HandleValidationErrorGin writes a 400 InvalidPayload envelope for a
// request body that fails to bind (JSON bind failures) or fails its
// handler's own Validate() method.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}
	HandleErrorGin(c, apperrors.Wrap(apperrors.KindInvalidPayload, "invalid request payload", err), logger)
}
