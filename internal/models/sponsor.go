package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SponsorTier is one entry of the sponsorship catalog.
type SponsorTier struct {
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	FreeGolfers int    `json:"free_golfers"`
}

// SponsorTiers is the catalog, cheapest first.
var SponsorTiers = []SponsorTier{
	{Name: "Hole Sponsor", PriceCents: 20000, FreeGolfers: 0},
	{Name: "Cart Sponsor", PriceCents: 100000, FreeGolfers: 1},
	{Name: "Beverage Sponsor", PriceCents: 100000, FreeGolfers: 1},
	{Name: "Dinner Sponsor", PriceCents: 300000, FreeGolfers: 4},
	{Name: "Title Sponsor", PriceCents: 1000000, FreeGolfers: 4},
}

// FindSponsorTier looks a tier up by name, ignoring case.
func FindSponsorTier(name string) (SponsorTier, bool) {
	name = strings.TrimSpace(name)
	for _, t := range SponsorTiers {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return SponsorTier{}, false
}

// Sponsor is a paid hole sponsorship; at most one per user.
type Sponsor struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Tier            string    `json:"tier"`
	PriceCents      int64     `json:"price_cents"`
	Logo            string    `json:"logo,omitempty"`
	Text            string    `json:"text,omitempty"`
	WebsiteLink     string    `json:"website_link,omitempty"`
	FreeGolfers     []string  `json:"free_golfers"`
	StripeSessionID string    `json:"stripe_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SponsorDetails are the display fields a sponsor supplies.
type SponsorDetails struct {
	Name        string `json:"name" binding:"required"`
	Logo        string `json:"logo"`
	Text        string `json:"text"`
	WebsiteLink string `json:"website_link"`
}

// HasContent reports whether a logo or text is present; one of them is required.
func (d SponsorDetails) HasContent() bool {
	return strings.TrimSpace(d.Logo) != "" || strings.TrimSpace(d.Text) != ""
}

// SponsorUpgrade is a confirmed move to a higher tier, optionally with new details.
type SponsorUpgrade struct {
	Tier        SponsorTier
	Details     SponsorDetails
	FreeGolfers []string
	AmountCents int64
	SessionID   string
}
