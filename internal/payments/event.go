package payments

import (
	"encoding/json"
	"fmt"

	"github.com/golf-outing/backend/pkg/apperr"
)

// EventCheckoutCompleted is the only event type that changes state.
const EventCheckoutCompleted = "checkout.session.completed"

// Session payment states that mean the money is in.
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// Event is the verified envelope of a webhook delivery.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the subset of a Stripe checkout session the service reads.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// Paid reports whether the session's payment has settled.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// CheckoutSession decodes the event's object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	if e.Type != EventCheckoutCompleted {
		return nil, fmt.Errorf("event %s is %s, not a checkout completion", e.ID, e.Type)
	}
	var s CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, apperr.Validation("malformed checkout session").Wrap(err)
	}
	return &s, nil
}
