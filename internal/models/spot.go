package models

import (
	"time"

	"github.com/google/uuid"
)

// Spot is one purchased, individually named place at the outing.
type Spot struct {
	ID             uuid.UUID `json:"spot_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
}

// SpotDetails is the golfer information supplied when buying or editing a spot.
type SpotDetails struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" binding:"required,email"`
}

// OwnedSpot is a spot together with the payer who owns it.
type OwnedSpot struct {
	Spot
	UserID        uuid.UUID     `json:"user_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Completed reports whether the owning registration is paid (or free and confirmed).
func (s *OwnedSpot) Completed() bool {
	return s.PaymentStatus == PaymentStatusCompleted
}
