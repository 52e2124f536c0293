package payments

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/response"
)

// SessionStatus is what a payer sees after returning from checkout.
type SessionStatus struct {
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
	Paid          bool   `json:"paid"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Kind          Kind   `json:"kind"`
}

// Handler exposes checkout session lookups.
type Handler struct {
	gateway Gateway
	logger  *zap.Logger
}

// NewHandler creates a payments handler.
func NewHandler(gateway Gateway, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gateway: gateway, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/checkout/sessions/:id", h.GetSession)
}

// GetSession handles GET /checkout/sessions/:id. Sessions opened by another
// user are reported as not found.
func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("id")
	if !strings.HasPrefix(id, "cs_") {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.gateway.GetSession(c.Request.Context(), id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			h.logger.Error("session lookup failed", zap.String("session_id", id), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	if session.Metadata[keyUserID] != middleware.UserID(c).String() {
		h.logger.Warn("session lookup by non-owner", zap.String("session_id", id))
		response.Error(c, apperr.ErrSessionNotFound)
		return
	}
	response.OK(c, &SessionStatus{
		SessionID:     session.ID,
		PaymentStatus: session.PaymentStatus,
		Paid:          session.Paid(),
		AmountTotal:   session.AmountTotal,
		Currency:      session.Currency,
		Kind:          Kind(session.Metadata[keyKind]),
	})
}
