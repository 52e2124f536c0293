package reconcile

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/response"
)

const maxWebhookBody = 1 << 20

// Locker takes a short-lived exclusive lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context), acquired bool, err error)
}

// WebhookConfig holds webhook verification settings.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
	LockTTL   time.Duration
}

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	rec    *Reconciler
	locker Locker
	cfg    WebhookConfig
	logger *zap.Logger
}

// NewWebhookHandler creates a webhook handler. locker may be nil, in which
// case only the ledger guards against redelivery.
func NewWebhookHandler(rec *Reconciler, locker Locker, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = payments.DefaultTolerance
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &WebhookHandler{rec: rec, locker: locker, cfg: cfg, logger: logger}
}

// Register mounts POST /webhooks/stripe.
func (h *WebhookHandler) Register(r gin.IRoutes) {
	r.POST("/webhooks/stripe", h.Stripe)
}

// Stripe handles POST /webhooks/stripe.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "could not read request body")
		return
	}
	ev, err := payments.ConstructEvent(payload, c.GetHeader(payments.SignatureHeader), h.cfg.Secret, h.cfg.Tolerance)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidSignature {
			h.logger.Warn("webhook signature rejected", zap.String("reason", apperr.Message(err)))
		}
		response.Error(c, err)
		return
	}
	if ev.Type != payments.EventCheckoutCompleted {
		h.logger.Info("webhook event ignored", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		response.OK(c, &Outcome{Received: true, EventID: ev.ID, Ignored: true})
		return
	}
	session, err := ev.CheckoutSession()
	if err != nil {
		response.Error(c, err)
		return
	}
	if !session.Paid() {
		h.logger.Info("unpaid checkout ignored", zap.String("event_id", ev.ID), zap.String("payment_status", session.PaymentStatus))
		response.OK(c, &Outcome{Received: true, EventID: ev.ID, Ignored: true})
		return
	}

	ctx := c.Request.Context()
	if h.locker != nil {
		unlock, ok, err := h.locker.TryLock(ctx, "webhook:event:"+ev.ID, h.cfg.LockTTL)
		switch {
		case err != nil:
			h.logger.Warn("webhook lock unavailable, relying on ledger", zap.String("event_id", ev.ID), zap.Error(err))
		case !ok:
			response.Error(c, apperr.ErrEventInFlight)
			return
		default:
			defer unlock(context.WithoutCancel(ctx))
		}
	}

	out, err := h.rec.Apply(ctx, ev.ID, session)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("reconcile failed", zap.String("event_id", ev.ID), zap.Error(err))
		} else {
			h.logger.Warn("reconcile rejected", zap.String("event_id", ev.ID), zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	if out.Duplicate {
		h.logger.Info("webhook replay ignored", zap.String("event_id", ev.ID))
	}
	response.OK(c, out)
}
