// Package http provides the HTTP handler for the aggregated-counts
// endpoint (spec.md §6).
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/flexauth/internal/httputil"
	"github.com/allisson/flexauth/internal/overview"
)

// Rollup is the subset of overview.Service Handler depends on.
type Rollup interface {
	GetAll(ctx context.Context) (*overview.Counts, error)
}

// Handler implements /api/overview/get-all.
type Handler struct {
	overview Rollup
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(overview Rollup, logger *slog.Logger) *Handler {
	return &Handler{overview: overview, logger: logger}
}

// GetAllHandler returns the current aggregated counts.
// GET /api/overview/get-all
func (h *Handler) GetAllHandler(c *gin.Context) {
	counts, err := h.overview.GetAll(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, counts)
}
