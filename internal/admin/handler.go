// Package admin serves the organizer dashboard: totals, every registration,
// and every sponsor. Routes are mounted behind RequireRole(admin).
package admin

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/response"
)

// Reporter reads the dashboard data.
type Reporter interface {
	Summary(ctx context.Context) (*models.Summary, error)
	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	ListSponsors(ctx context.Context) ([]models.Sponsor, error)
}

// Handler handles /admin routes.
type Handler struct {
	reporter Reporter
	logger   *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(reporter Reporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reporter: reporter, logger: logger}
}

// Register mounts the routes on rg, which must already enforce the admin role.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/summary", h.Summary)
	rg.GET("/registrations", h.Registrations)
	rg.GET("/sponsors", h.Sponsors)
}

// Summary handles GET /admin/summary.
func (h *Handler) Summary(c *gin.Context) {
	s, err := h.reporter.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("admin summary failed", zap.Error(err))
		response.Internal(c, "failed to load summary")
		return
	}
	response.OK(c, s)
}

// Registrations handles GET /admin/registrations.
func (h *Handler) Registrations(c *gin.Context) {
	regs, err := h.reporter.ListRegistrations(c.Request.Context())
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, regs)
}

// Sponsors handles GET /admin/sponsors.
func (h *Handler) Sponsors(c *gin.Context) {
	list, err := h.reporter.ListSponsors(c.Request.Context())
	if err != nil {
		h.logger.Error("list sponsors failed", zap.Error(err))
		response.Internal(c, "failed to list sponsors")
		return
	}
	response.OK(c, list)
}
