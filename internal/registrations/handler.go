package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/response"
)

// ReserveRequest is the body for POST /spots/reserve.
type ReserveRequest struct {
	Spots []models.SpotDetails `json:"spots" binding:"required,min=1,dive"`
}

// RemoveGolferRequest is the body for DELETE /registrations/:id/preferred-golfers.
type RemoveGolferRequest struct {
	Golfer string `json:"golfer" binding:"required"`
}

// Handler exposes registrations and spots over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/registrations", h.List)
	rg.POST("/registrations/free", h.RegisterFree)
	rg.POST("/registrations/checkout", h.Checkout)
	rg.PUT("/registrations/:id", h.Update)
	rg.DELETE("/registrations/:id/preferred-golfers", h.RemovePreferredGolfer)

	rg.POST("/spots/reserve", h.Reserve)
	rg.GET("/spots/mine", h.MySpots)
	rg.GET("/spots/has", h.HasSpots)
	rg.GET("/spots", h.AllSpots)
	rg.PUT("/spots/:id", h.EditSpot)
}

// List handles GET /registrations.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "list registrations", err)
		return
	}
	response.OK(c, list)
}

// RegisterFree handles POST /registrations/free.
func (h *Handler) RegisterFree(c *gin.Context) {
	var p models.RegistrationProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.RegisterFree(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		h.fail(c, "free registration", err)
		return
	}
	response.Created(c, reg)
}

// Checkout handles POST /registrations/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.CheckoutRegistration(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.fail(c, "registration checkout", err)
		return
	}
	response.OK(c, res)
}

// Update handles PUT /registrations/:id.
func (h *Handler) Update(c *gin.Context) {
	regID, ok := parseID(c)
	if !ok {
		return
	}
	var p models.RegistrationProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.UpdateRegistration(c.Request.Context(), middleware.UserID(c), regID, p)
	if err != nil {
		h.fail(c, "update registration", err)
		return
	}
	response.OK(c, reg)
}

// RemovePreferredGolfer handles DELETE /registrations/:id/preferred-golfers.
func (h *Handler) RemovePreferredGolfer(c *gin.Context) {
	regID, ok := parseID(c)
	if !ok {
		return
	}
	var req RemoveGolferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.RemovePreferredGolfer(c.Request.Context(), middleware.UserID(c), regID, req.Golfer)
	if err != nil {
		h.fail(c, "remove preferred golfer", err)
		return
	}
	response.OK(c, reg)
}

// Reserve handles POST /spots/reserve.
func (h *Handler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.ReserveSpots(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c), req.Spots)
	if err != nil {
		h.fail(c, "reserve spots", err)
		return
	}
	response.OK(c, res)
}

// MySpots handles GET /spots/mine.
func (h *Handler) MySpots(c *gin.Context) {
	spots, err := h.svc.UserSpots(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "list user spots", err)
		return
	}
	response.OK(c, spots)
}

// HasSpots handles GET /spots/has.
func (h *Handler) HasSpots(c *gin.Context) {
	has, err := h.svc.HasSpots(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "check spots", err)
		return
	}
	response.OK(c, gin.H{"has_spots": has})
}

// AllSpots handles GET /spots.
func (h *Handler) AllSpots(c *gin.Context) {
	spots, err := h.svc.AllSpots(c.Request.Context())
	if err != nil {
		h.fail(c, "list spots", err)
		return
	}
	response.OK(c, spots)
}

// EditSpot handles PUT /spots/:id.
func (h *Handler) EditSpot(c *gin.Context) {
	spotID, ok := parseID(c)
	if !ok {
		return
	}
	var d models.SpotDetails
	if err := c.ShouldBindJSON(&d); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	spot, err := h.svc.EditSpot(c.Request.Context(), middleware.UserID(c), spotID, d)
	if err != nil {
		h.fail(c, "edit spot", err)
		return
	}
	response.OK(c, spot)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindUpstream {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	response.Error(c, err)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
