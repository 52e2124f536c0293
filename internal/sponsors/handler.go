package sponsors

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/response"
)

// LogoUploadRequest is the body for POST /sponsors/logo-upload-url.
type LogoUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// Handler exposes sponsorships over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a sponsors handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/sponsors/tiers", h.Tiers)
}

// Register mounts the authenticated routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/sponsors/me", h.Get)
	rg.PUT("/sponsors/me", h.UpdateDetails)
	rg.POST("/sponsors/checkout", h.Checkout)
	rg.POST("/sponsors/upgrade", h.Upgrade)
	rg.POST("/sponsors/logo-upload-url", h.LogoUploadURL)
}

// Tiers handles GET /sponsors/tiers.
func (h *Handler) Tiers(c *gin.Context) {
	response.OK(c, h.svc.Tiers())
}

// Get handles GET /sponsors/me.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.svc.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "get sponsor", err)
		return
	}
	response.OK(c, s)
}

// UpdateDetails handles PUT /sponsors/me.
func (h *Handler) UpdateDetails(c *gin.Context) {
	var d models.SponsorDetails
	if err := c.ShouldBindJSON(&d); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.svc.UpdateDetails(c.Request.Context(), middleware.UserID(c), d)
	if err != nil {
		h.fail(c, "update sponsor", err)
		return
	}
	response.OK(c, s)
}

// Checkout handles POST /sponsors/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.CreateCheckout(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c), req)
	if err != nil {
		h.fail(c, "sponsor checkout", err)
		return
	}
	response.OK(c, res)
}

// Upgrade handles POST /sponsors/upgrade.
func (h *Handler) Upgrade(c *gin.Context) {
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.UpgradeCheckout(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c), req)
	if err != nil {
		h.fail(c, "sponsor upgrade", err)
		return
	}
	response.OK(c, res)
}

// LogoUploadURL handles POST /sponsors/logo-upload-url.
func (h *Handler) LogoUploadURL(c *gin.Context) {
	var req LogoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	up, err := h.svc.LogoUploadURL(c.Request.Context(), middleware.UserID(c), req.ContentType)
	if err != nil {
		h.fail(c, "logo upload url", err)
		return
	}
	response.OK(c, up)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindUpstream {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	response.Error(c, err)
}
