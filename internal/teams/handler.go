package teams

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/response"
)

// JoinRequest is the body for POST /teams/:id/members.
type JoinRequest struct {
	SpotID uuid.UUID `json:"spot_id" binding:"required"`
}

// WhitelistRequest is the body for the whitelist endpoints.
type WhitelistRequest struct {
	Entry string `json:"entry" binding:"required"`
}

// Handler exposes the team service over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the team routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/teams", h.List)
	rg.POST("/teams", h.Create)
	rg.GET("/teams/:id", h.Get)
	rg.PATCH("/teams/:id", h.Update)
	rg.POST("/teams/:id/members", h.Join)
	rg.DELETE("/teams/:id/members/:spotId", h.Leave)
	rg.POST("/teams/:id/whitelist", h.AddWhitelist)
	rg.DELETE("/teams/:id/whitelist", h.RemoveWhitelist)
}

// List handles GET /teams.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListTeams(c.Request.Context())
	if err != nil {
		h.fail(c, "list teams", err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /teams/:id.
func (h *Handler) Get(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	team, err := h.svc.GetTeam(c.Request.Context(), teamID)
	if err != nil {
		h.fail(c, "get team", err)
		return
	}
	response.OK(c, team)
}

// Create handles POST /teams.
func (h *Handler) Create(c *gin.Context) {
	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	team, err := h.svc.CreateTeam(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.fail(c, "create team", err)
		return
	}
	response.Created(c, team)
}

// Join handles POST /teams/:id/members.
func (h *Handler) Join(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	team, err := h.svc.JoinTeam(c.Request.Context(), teamID, req.SpotID, middleware.UserID(c))
	if err != nil {
		h.fail(c, "join team", err)
		return
	}
	response.OK(c, team)
}

// Leave handles DELETE /teams/:id/members/:spotId.
func (h *Handler) Leave(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	spotID, ok := parseID(c, "spotId")
	if !ok {
		return
	}
	deleted, err := h.svc.LeaveTeam(c.Request.Context(), teamID, spotID, middleware.UserID(c))
	if err != nil {
		h.fail(c, "leave team", err)
		return
	}
	response.OK(c, gin.H{"team_id": teamID, "spot_id": spotID, "team_deleted": deleted})
}

// Update handles PATCH /teams/:id.
func (h *Handler) Update(c *gin.Context) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var upd models.TeamUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	team, err := h.svc.UpdateTeamDetails(c.Request.Context(), teamID, middleware.UserID(c), upd)
	if err != nil {
		h.fail(c, "update team", err)
		return
	}
	response.OK(c, team)
}

// AddWhitelist handles POST /teams/:id/whitelist.
func (h *Handler) AddWhitelist(c *gin.Context) {
	h.editWhitelist(c, h.svc.AddWhitelistEntry)
}

// RemoveWhitelist handles DELETE /teams/:id/whitelist.
func (h *Handler) RemoveWhitelist(c *gin.Context) {
	h.editWhitelist(c, h.svc.RemoveWhitelistEntry)
}

type whitelistOp func(ctx context.Context, teamID, userID uuid.UUID, entry string) (*models.Team, error)

func (h *Handler) editWhitelist(c *gin.Context, op whitelistOp) {
	teamID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	team, err := op(c.Request.Context(), teamID, middleware.UserID(c), req.Entry)
	if err != nil {
		h.fail(c, "edit whitelist", err)
		return
	}
	response.OK(c, team)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error(op+" failed", zap.Error(err))
	}
	response.Error(c, err)
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
