package payments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/pkg/apperr"
)

// SessionParams describes one hosted checkout.
type SessionParams struct {
	AmountCents   int64
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Gateway creates and looks up hosted checkout sessions.
type Gateway interface {
	CreateSession(ctx context.Context, p SessionParams) (*CheckoutSession, error)
	GetSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// CheckoutResult is what a client needs to send the payer to Stripe.
type CheckoutResult struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amount_cents"`
}

// Redirects are the pages Stripe sends the payer back to.
type Redirects struct {
	SuccessURL string
	CancelURL  string
}

// NewRedirects builds redirect URLs under baseURL for a front-end page.
func NewRedirects(baseURL, page string) Redirects {
	base := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(page, "/")
	return Redirects{
		SuccessURL: base + "?status=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "?status=cancelled",
	}
}

// StripeClient is a Gateway backed by the Stripe REST API.
type StripeClient struct {
	http     *resty.Client
	currency string
	logger   *zap.Logger
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewStripeClient creates a client for baseURL (https://api.stripe.com in production).
func NewStripeClient(baseURL, secretKey, currency string, timeout time.Duration, logger *zap.Logger) *StripeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(secretKey).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	return &StripeClient{http: client, currency: strings.ToLower(currency), logger: logger}
}

// CreateSession creates a one-line-item payment session. Each call carries its
// own idempotency key so resty's retries cannot open a second session.
func (c *StripeClient) CreateSession(ctx context.Context, p SessionParams) (*CheckoutSession, error) {
	if p.AmountCents <= 0 {
		return nil, apperr.Validation("checkout amount must be positive")
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", c.currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.ProductName)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var session CheckoutSession
	var apiErr stripeError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", uuid.NewString()).
		SetFormDataFromValues(form).
		SetResult(&session).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		c.logger.Error("stripe request failed", zap.Error(err))
		return nil, apperr.Upstream("payment provider unavailable", err)
	}
	if resp.IsError() {
		c.logger.Error("stripe rejected checkout session",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("type", apiErr.Error.Type),
			zap.String("code", apiErr.Error.Code),
			zap.String("message", apiErr.Error.Message))
		return nil, apperr.Upstream("payment provider rejected the checkout",
			fmt.Errorf("stripe %d: %s", resp.StatusCode(), apiErr.Error.Message))
	}
	if session.URL == "" {
		return nil, apperr.Upstream("payment provider returned no checkout url", fmt.Errorf("session %s", session.ID))
	}
	c.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", p.AmountCents),
		zap.String("kind", p.Metadata[keyKind]))
	return &session, nil
}

// GetSession retrieves a checkout session by id.
func (c *StripeClient) GetSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	var apiErr stripeError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&session).
		SetError(&apiErr).
		Get("/v1/checkout/sessions/{id}")
	if err != nil {
		c.logger.Error("stripe request failed", zap.Error(err))
		return nil, apperr.Upstream("payment provider unavailable", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, apperr.ErrSessionNotFound
	}
	if resp.IsError() {
		c.logger.Error("stripe rejected session lookup",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("session_id", id),
			zap.String("code", apiErr.Error.Code),
			zap.String("message", apiErr.Error.Message))
		return nil, apperr.Upstream("payment provider rejected the lookup",
			fmt.Errorf("stripe %d: %s", resp.StatusCode(), apiErr.Error.Message))
	}
	return &session, nil
}
