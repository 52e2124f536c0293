package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus of a registration.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Registration is one payer's aggregate purchase, owning 1-4 spots.
type Registration struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	Spots             []Spot        `json:"spots"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	AmountPaidCents   int64         `json:"amount_paid_cents"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	PreferredGolfers  []string      `json:"preferred_golfers"`
	PayForPreferred   []string      `json:"pay_for_preferred"`
	IsFirstYearAlumni bool          `json:"is_first_year_alumni"`
	PrimarySpotID     *uuid.UUID    `json:"primary_spot_id,omitempty"`
	StripeSessionID   string        `json:"stripe_session_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SpotCount is the number of spots the registration owns.
func (r *Registration) SpotCount() int { return len(r.Spots) }

// RegistrationProfile is the registrant's own details plus the golfers they
// would like to play with. PayForPreferred lists the preferred golfers whose
// spot the registrant is paying for.
type RegistrationProfile struct {
	Name              string   `json:"name" binding:"required"`
	Email             string   `json:"email" binding:"required,email"`
	Phone             string   `json:"phone" binding:"required,min=10"`
	PreferredGolfers  []string `json:"preferred_golfers"`
	PayForPreferred   []string `json:"pay_for_preferred"`
	IsFirstYearAlumni bool     `json:"is_first_year_alumni"`
}

// PayableSpots is how many spots the profile pays for: the registrant unless
// they are first-year alumni, plus each paid-for preferred golfer.
func (p RegistrationProfile) PayableSpots() int {
	n := len(p.PayForPreferred)
	if !p.IsFirstYearAlumni {
		n++
	}
	return n
}

// PrimarySpotDetails is the registrant's own spot.
func (p RegistrationProfile) PrimarySpotDetails() SpotDetails {
	return SpotDetails{Name: p.Name, Phone: p.Phone, Email: p.Email}
}

// RegistrationPayment is a confirmed purchase of new spots.
type RegistrationPayment struct {
	UserID      uuid.UUID
	Spots       []Spot
	AmountCents int64
	Profile     *RegistrationProfile // set only for a single-registrant checkout
	SessionID   string
	MaxSpots    int
}

// RegistrationUpdatePayment is a confirmed payment for changed registration details.
type RegistrationUpdatePayment struct {
	RegistrationID uuid.UUID
	UserID         uuid.UUID
	Profile        RegistrationProfile
	AmountCents    int64
	SessionID      string
}
