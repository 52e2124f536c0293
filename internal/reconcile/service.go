// Package reconcile applies confirmed Stripe checkouts to registrations and
// sponsors. Each checkout is applied at most once: the event id goes into the
// processed_events ledger in the same transaction as the change it causes.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/internal/registrations"
	"github.com/golf-outing/backend/internal/sponsors"
	"github.com/golf-outing/backend/pkg/apperr"
)

// Store applies paid changes. Every method records ev in the ledger and
// returns apperr.ErrEventAlreadyProcessed when it is already there.
type Store interface {
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	ApplyRegistration(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationPayment) (*models.Registration, error)
	ApplyRegistrationUpdate(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationUpdatePayment) (*models.Registration, error)
	InsertSponsor(ctx context.Context, ev models.ProcessedEvent, s *models.Sponsor) error
	UpgradeSponsor(ctx context.Context, ev models.ProcessedEvent, userID uuid.UUID, up models.SponsorUpgrade) (*models.Sponsor, error)
}

// Outcome is what happened to one delivery.
type Outcome struct {
	Received  bool          `json:"received"`
	EventID   string        `json:"event_id"`
	Kind      payments.Kind `json:"kind,omitempty"`
	Duplicate bool          `json:"duplicate"`
	Ignored   bool          `json:"ignored,omitempty"`
}

// Reconciler turns checkout sessions into state changes.
type Reconciler struct {
	store    Store
	cleanup  sponsors.CleanupQueue
	maxSpots int
	logger   *zap.Logger
}

// NewReconciler creates a reconciler. cleanup may be nil.
func NewReconciler(store Store, cleanup sponsors.CleanupQueue, maxSpots int, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSpots <= 0 {
		maxSpots = models.TeamCapacity
	}
	return &Reconciler{store: store, cleanup: cleanup, maxSpots: maxSpots, logger: logger}
}

// Apply reconciles a completed checkout session delivered as eventID.
func (r *Reconciler) Apply(ctx context.Context, eventID string, session *payments.CheckoutSession) (*Outcome, error) {
	md, err := payments.DecodeMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Received: true, EventID: eventID, Kind: md.Kind}

	done, err := r.store.EventProcessed(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("check event ledger: %w", err)
	}
	if done {
		out.Duplicate = true
		return out, nil
	}

	ev := models.ProcessedEvent{
		EventID:     eventID,
		SessionID:   session.ID,
		Kind:        string(md.Kind),
		UserID:      md.UserID,
		AmountCents: session.AmountTotal,
	}
	switch md.Kind {
	case payments.KindRegistration:
		err = r.applyRegistration(ctx, ev, md)
	case payments.KindRegistrationUpdate:
		err = r.applyRegistrationUpdate(ctx, ev, md)
	case payments.KindSponsorCreate:
		err = r.applySponsorCreate(ctx, ev, md)
	case payments.KindSponsorUpgrade:
		err = r.applySponsorUpgrade(ctx, ev, md)
	default:
		err = apperr.ErrInvalidMetadataShape.WithMessage(fmt.Sprintf("unknown checkout kind %q", md.Kind))
	}
	if errors.Is(err, apperr.ErrEventAlreadyProcessed) {
		out.Duplicate = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("checkout reconciled",
		zap.String("event_id", eventID),
		zap.String("session_id", session.ID),
		zap.String("kind", string(md.Kind)),
		zap.String("user_id", md.UserID.String()),
		zap.Int64("amount_cents", session.AmountTotal))
	return out, nil
}

func (r *Reconciler) applyRegistration(ctx context.Context, ev models.ProcessedEvent, md *payments.CheckoutMetadata) error {
	details, err := registrations.CleanSpots(md.Spots)
	if err != nil {
		return err
	}
	spots := make([]models.Spot, len(details))
	for i, d := range details {
		spots[i] = models.Spot{ID: uuid.New(), Name: d.Name, Phone: d.Phone, Email: d.Email}
	}
	reg, err := r.store.ApplyRegistration(ctx, ev, models.RegistrationPayment{
		UserID:      md.UserID,
		Spots:       spots,
		AmountCents: ev.AmountCents,
		Profile:     md.Profile,
		SessionID:   ev.SessionID,
		MaxSpots:    r.maxSpots,
	})
	if err != nil {
		return err
	}
	r.logger.Debug("spots added", zap.String("registration_id", reg.ID.String()), zap.Int("spots", reg.SpotCount()))
	return nil
}

func (r *Reconciler) applyRegistrationUpdate(ctx context.Context, ev models.ProcessedEvent, md *payments.CheckoutMetadata) error {
	_, err := r.store.ApplyRegistrationUpdate(ctx, ev, models.RegistrationUpdatePayment{
		RegistrationID: md.RegistrationID,
		UserID:         md.UserID,
		Profile:        *md.Profile,
		AmountCents:    ev.AmountCents,
		SessionID:      ev.SessionID,
	})
	return err
}

func (r *Reconciler) applySponsorCreate(ctx context.Context, ev models.ProcessedEvent, md *payments.CheckoutMetadata) error {
	tier, ok := models.FindSponsorTier(md.Sponsor.Tier)
	if !ok {
		return apperr.Validationf("unknown sponsor tier %q", md.Sponsor.Tier)
	}
	d, err := sponsors.CleanDetails(md.Sponsor.Details())
	if err != nil {
		return err
	}
	golfers, err := sponsors.CleanFreeGolfers(md.Sponsor.FreeGolfers, tier)
	if err != nil {
		return err
	}
	return r.store.InsertSponsor(ctx, ev, &models.Sponsor{
		UserID:          md.UserID,
		Name:            d.Name,
		Tier:            tier.Name,
		PriceCents:      tier.PriceCents,
		Logo:            d.Logo,
		Text:            d.Text,
		WebsiteLink:     d.WebsiteLink,
		FreeGolfers:     golfers,
		StripeSessionID: ev.SessionID,
	})
}

func (r *Reconciler) applySponsorUpgrade(ctx context.Context, ev models.ProcessedEvent, md *payments.CheckoutMetadata) error {
	tier, ok := models.FindSponsorTier(md.Sponsor.Tier)
	if !ok {
		return apperr.Validationf("unknown sponsor tier %q", md.Sponsor.Tier)
	}
	up := models.SponsorUpgrade{Tier: tier, AmountCents: ev.AmountCents, SessionID: ev.SessionID}
	if md.Sponsor.Name != "" {
		d, err := sponsors.CleanDetails(md.Sponsor.Details())
		if err != nil {
			return err
		}
		up.Details = d
	}
	if md.Sponsor.FreeGolfers != nil {
		golfers, err := sponsors.CleanFreeGolfers(md.Sponsor.FreeGolfers, tier)
		if err != nil {
			return err
		}
		up.FreeGolfers = golfers
	}
	prev, err := r.store.UpgradeSponsor(ctx, ev, md.UserID, up)
	if err != nil {
		return err
	}
	logo := prev.Logo
	if up.Details.Name != "" {
		logo = up.Details.Logo
	}
	sponsors.EnqueueReplacedLogo(ctx, r.cleanup, r.logger, prev, logo, "tier_upgraded")
	return nil
}
