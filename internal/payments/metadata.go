// Package payments talks to Stripe Checkout: it creates hosted checkout
// sessions, verifies webhook signatures, and carries the pending change in
// session metadata tagged with an explicit kind.
package payments

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
)

// Kind says which state transition a checkout pays for.
type Kind string

const (
	KindRegistration       Kind = "registration"
	KindRegistrationUpdate Kind = "registration_update"
	KindSponsorCreate      Kind = "sponsor_create"
	KindSponsorUpgrade     Kind = "sponsor_upgrade"
)

// Metadata keys. Stripe metadata is a flat string map; lists and objects are
// JSON encoded into a single value.
const (
	keyKind             = "kind"
	keyUserID           = "userId"
	keySpotDetails      = "spotDetails"
	keyRegistrationData = "registrationData"
	keyRegistrationID   = "registrationId"
	keyName             = "name"
	keyTier             = "tier"
	keyLogo             = "logo"
	keyText             = "text"
	keyWebsiteLink      = "websiteLink"
	keyFreeGolfers      = "freeGolfers"
)

// MaxMetadataValue is Stripe's limit on one metadata value.
const MaxMetadataValue = 500

// SponsorMetadata is the sponsor part of a sponsor_create or sponsor_upgrade checkout.
type SponsorMetadata struct {
	Name        string
	Tier        string
	Logo        string
	Text        string
	WebsiteLink string
	FreeGolfers []string
}

// Details returns the display fields.
func (s *SponsorMetadata) Details() models.SponsorDetails {
	return models.SponsorDetails{Name: s.Name, Logo: s.Logo, Text: s.Text, WebsiteLink: s.WebsiteLink}
}

// CheckoutMetadata is the typed form of a checkout session's metadata.
type CheckoutMetadata struct {
	Kind           Kind
	UserID         uuid.UUID
	Spots          []models.SpotDetails        // registration
	Profile        *models.RegistrationProfile // registration (optional), registration_update
	RegistrationID uuid.UUID                   // registration_update
	Sponsor        *SponsorMetadata            // sponsor_create, sponsor_upgrade
}

// Encode flattens the metadata for a session request.
func (m *CheckoutMetadata) Encode() (map[string]string, error) {
	if m.UserID == uuid.Nil {
		return nil, apperr.ErrMissingUserID
	}
	out := map[string]string{
		keyKind:   string(m.Kind),
		keyUserID: m.UserID.String(),
	}
	switch m.Kind {
	case KindRegistration:
		if len(m.Spots) == 0 {
			return nil, apperr.ErrInvalidMetadataShape.WithMessage("registration checkout needs spot details")
		}
		if err := putJSON(out, keySpotDetails, m.Spots); err != nil {
			return nil, err
		}
		if m.Profile != nil {
			if err := putJSON(out, keyRegistrationData, m.Profile); err != nil {
				return nil, err
			}
		}
	case KindRegistrationUpdate:
		if m.Profile == nil || m.RegistrationID == uuid.Nil {
			return nil, apperr.ErrInvalidMetadataShape.WithMessage("registration update needs a registration id and details")
		}
		out[keyRegistrationID] = m.RegistrationID.String()
		if err := putJSON(out, keyRegistrationData, m.Profile); err != nil {
			return nil, err
		}
	case KindSponsorCreate, KindSponsorUpgrade:
		if m.Sponsor == nil {
			return nil, apperr.ErrInvalidMetadataShape.WithMessage("sponsor checkout needs sponsor details")
		}
		s := m.Sponsor
		for k, v := range map[string]string{keyName: s.Name, keyTier: s.Tier, keyLogo: s.Logo, keyText: s.Text, keyWebsiteLink: s.WebsiteLink} {
			if v != "" {
				out[k] = v
			}
		}
		if len(s.FreeGolfers) > 0 {
			if err := putJSON(out, keyFreeGolfers, s.FreeGolfers); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apperr.ErrInvalidMetadataShape
	}
	for k, v := range out {
		if len(v) > MaxMetadataValue {
			return nil, apperr.Validationf("%s is too long for the payment provider (%d characters, max %d)", k, len(v), MaxMetadataValue)
		}
	}
	return out, nil
}

// DecodeMetadata parses metadata written by Encode. A missing or malformed
// userId is ErrMissingUserID; anything else that does not match one of the
// known kinds is ErrInvalidMetadataShape.
func DecodeMetadata(md map[string]string) (*CheckoutMetadata, error) {
	userID, err := uuid.Parse(strings.TrimSpace(md[keyUserID]))
	if err != nil || userID == uuid.Nil {
		return nil, apperr.ErrMissingUserID
	}
	m := &CheckoutMetadata{Kind: Kind(md[keyKind]), UserID: userID}

	switch m.Kind {
	case KindRegistration:
		if err := getJSON(md, keySpotDetails, &m.Spots); err != nil {
			return nil, err
		}
		if len(m.Spots) == 0 {
			return nil, shapeError("registration metadata has no spot details")
		}
		if md[keyRegistrationData] != "" {
			m.Profile = &models.RegistrationProfile{}
			if err := getJSON(md, keyRegistrationData, m.Profile); err != nil {
				return nil, err
			}
		}
	case KindRegistrationUpdate:
		m.RegistrationID, err = uuid.Parse(md[keyRegistrationID])
		if err != nil {
			return nil, shapeError("registration update metadata has no valid registrationId")
		}
		m.Profile = &models.RegistrationProfile{}
		if err := getJSON(md, keyRegistrationData, m.Profile); err != nil {
			return nil, err
		}
	case KindSponsorCreate, KindSponsorUpgrade:
		s := &SponsorMetadata{
			Name:        md[keyName],
			Tier:        md[keyTier],
			Logo:        md[keyLogo],
			Text:        md[keyText],
			WebsiteLink: md[keyWebsiteLink],
		}
		if strings.TrimSpace(s.Tier) == "" || (m.Kind == KindSponsorCreate && strings.TrimSpace(s.Name) == "") {
			return nil, shapeError("sponsor metadata needs name and tier")
		}
		if md[keyFreeGolfers] != "" {
			if err := getJSON(md, keyFreeGolfers, &s.FreeGolfers); err != nil {
				return nil, err
			}
		}
		m.Sponsor = s
	default:
		return nil, shapeError(fmt.Sprintf("unknown checkout kind %q", md[keyKind]))
	}
	return m, nil
}

func putJSON(out map[string]string, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	out[key] = string(raw)
	return nil
}

func getJSON(md map[string]string, key string, v any) error {
	raw, ok := md[key]
	if !ok || raw == "" {
		return shapeError(key + " is missing")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return apperr.ErrInvalidMetadataShape.WithMessage(key + " is not valid JSON").Wrap(err)
	}
	return nil
}

func shapeError(msg string) error {
	return apperr.ErrInvalidMetadataShape.WithMessage(msg)
}
