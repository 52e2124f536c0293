package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TeamCapacity is the maximum number of spots on one team.
const TeamCapacity = 4

// TeamMember references a seated spot. Name and Email are filled on reads for display.
type TeamMember struct {
	SpotID         uuid.UUID `json:"spot_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Team is a group of up to four spots. Private teams admit only whitelisted golfers.
type Team struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	IsPrivate bool         `json:"is_private"`
	CreatorID uuid.UUID    `json:"creator_id"`
	Members   []TeamMember `json:"members"`
	Whitelist []string     `json:"whitelist"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HasMember reports whether spotID is seated on the team.
func (t *Team) HasMember(spotID uuid.UUID) bool {
	for _, m := range t.Members {
		if m.SpotID == spotID {
			return true
		}
	}
	return false
}

// IsFull reports whether the team is at capacity.
func (t *Team) IsFull() bool {
	return len(t.Members) >= TeamCapacity
}

// OpenSeats is the number of seats left.
func (t *Team) OpenSeats() int {
	if n := TeamCapacity - len(t.Members); n > 0 {
		return n
	}
	return 0
}

// MarshalJSON adds open_seats to the team payload.
func (t Team) MarshalJSON() ([]byte, error) {
	type team Team
	return json.Marshal(struct {
		team
		OpenSeats int `json:"open_seats"`
	}{team(t), t.OpenSeats()})
}

// TeamUpdate carries the creator-editable fields; nil means unchanged.
type TeamUpdate struct {
	Name      *string   `json:"name"`
	IsPrivate *bool     `json:"is_private"`
	Whitelist *[]string `json:"whitelist"`
}

// Empty reports whether no field was supplied.
func (u TeamUpdate) Empty() bool {
	return u.Name == nil && u.IsPrivate == nil && u.Whitelist == nil
}
