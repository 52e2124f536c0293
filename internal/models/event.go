package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is a ledger row for a payment webhook that has been applied.
type ProcessedEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Summary is the admin dashboard aggregate.
type Summary struct {
	Registrations        int   `json:"registrations"`
	Spots                int   `json:"spots"`
	ReservationCents     int64 `json:"reservation_cents"`
	Sponsors             int   `json:"sponsors"`
	SponsorshipCents     int64 `json:"sponsorship_cents"`
	Teams                int   `json:"teams"`
	UnassignedSpots      int   `json:"unassigned_spots"`
	FullTeams            int   `json:"full_teams"`
	PrivateTeams         int   `json:"private_teams"`
	FirstYearAlumniCount int   `json:"first_year_alumni"`
}
