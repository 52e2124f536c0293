package payments

import (
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/golf-outing/backend/pkg/apperr"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is how old a signed timestamp may be.
const DefaultTolerance = webhook.DefaultTolerance

var signatureFailures = map[error]string{
	webhook.ErrNotSigned:        "missing signature header",
	webhook.ErrInvalidHeader:    "malformed signature header",
	webhook.ErrNoValidSignature: "signature does not match",
	webhook.ErrTooOld:           "signature timestamp outside tolerance",
}

// ConstructEvent verifies the Stripe-Signature header against the raw payload
// and decodes the event envelope. Signature failures map to
// apperr.ErrInvalidSignature; an authentic but unreadable body is a
// validation error.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if secret == "" {
		return nil, apperr.ErrInvalidSignature.WithMessage("webhook secret is not configured")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		for sentinel, msg := range signatureFailures {
			if errors.Is(err, sentinel) {
				return nil, apperr.ErrInvalidSignature.WithMessage(msg)
			}
		}
		return nil, apperr.Validation("malformed event body").Wrap(err)
	}
	if ev.ID == "" || ev.Type == "" || ev.Data == nil {
		return nil, apperr.Validation("event is missing id, type or data")
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type), Created: ev.Created}
	out.Data.Object = ev.Data.Raw
	return out, nil
}
