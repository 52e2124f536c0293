// Package registrations handles spot reservations: paid checkouts, the free
// first-year alumni path, and edits to registrations and spots.
package registrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/utils"
)

// Store persists registrations and spots.
type Store interface {
	CompletedRegistration(ctx context.Context, userID uuid.UUID) (*models.Registration, error)
	RegistrationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	GetRegistration(ctx context.Context, regID, userID uuid.UUID) (*models.Registration, error)
	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistrationProfile(ctx context.Context, regID, userID uuid.UUID, p models.RegistrationProfile) (*models.Registration, error)

	GetSpot(ctx context.Context, spotID uuid.UUID) (*models.OwnedSpot, error)
	TakenEmails(ctx context.Context, emails []string, exclude uuid.UUID) ([]string, error)
	UpdateSpot(ctx context.Context, spotID uuid.UUID, d models.SpotDetails) (*models.Spot, error)
	SpotsForUser(ctx context.Context, userID uuid.UUID) ([]models.Spot, error)
	AllSpots(ctx context.Context) ([]models.Spot, error)
}

// Config holds pricing and checkout settings.
type Config struct {
	EventName        string
	SpotPriceCents   int64
	MaxSpotsPerPayer int
	Redirects        payments.Redirects
}

// CheckoutRequest starts a registrant checkout. RegistrationID is set when an
// existing registration is being changed.
type CheckoutRequest struct {
	Profile        models.RegistrationProfile `json:"profile" binding:"required"`
	RegistrationID *uuid.UUID                 `json:"registration_id"`
}

// Service implements reservation rules.
type Service struct {
	store   Store
	gateway payments.Gateway
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a registrations service.
func NewService(store Store, gateway payments.Gateway, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSpotsPerPayer <= 0 {
		cfg.MaxSpotsPerPayer = models.TeamCapacity
	}
	return &Service{store: store, gateway: gateway, cfg: cfg, logger: logger, now: time.Now}
}

// ReserveSpots opens a checkout for 1 to MaxSpotsPerPayer new spots. The spots
// exist only once the payment webhook lands.
func (s *Service) ReserveSpots(ctx context.Context, userID uuid.UUID, payerEmail string, spots []models.SpotDetails) (*payments.CheckoutResult, error) {
	if len(spots) == 0 {
		return nil, apperr.Validation("at least one spot is required")
	}
	if len(spots) > s.cfg.MaxSpotsPerPayer {
		return nil, apperr.Validationf("at most %d spots can be reserved", s.cfg.MaxSpotsPerPayer)
	}
	cleaned, err := CleanSpots(spots)
	if err != nil {
		return nil, err
	}

	owned, err := s.store.SpotsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}
	if len(owned)+len(cleaned) > s.cfg.MaxSpotsPerPayer {
		return nil, apperr.ErrSpotLimitExceeded.WithMessage(fmt.Sprintf(
			"you already hold %d spots; at most %d are allowed", len(owned), s.cfg.MaxSpotsPerPayer))
	}
	if err := s.ensureEmailsFree(ctx, uuid.Nil, emailsOf(cleaned)...); err != nil {
		return nil, err
	}

	md := &payments.CheckoutMetadata{Kind: payments.KindRegistration, UserID: userID, Spots: cleaned}
	amount := int64(len(cleaned)) * s.cfg.SpotPriceCents
	return s.checkout(ctx, md, amount, fmt.Sprintf("%s: %d golf spot(s)", s.cfg.EventName, len(cleaned)), payerEmail)
}

// CheckoutRegistration opens a checkout for the registrant's own entry plus any
// preferred golfers they pay for. For an existing registration only the
// difference to what was already paid is charged.
func (s *Service) CheckoutRegistration(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*payments.CheckoutResult, error) {
	p, err := cleanProfile(req.Profile)
	if err != nil {
		return nil, err
	}
	required := int64(p.PayableSpots()) * s.cfg.SpotPriceCents

	if req.RegistrationID == nil {
		if required <= 0 {
			return nil, apperr.Validation("nothing to pay for; use the free registration")
		}
		if _, err := s.store.CompletedRegistration(ctx, userID); err == nil {
			return nil, apperr.ErrRegistrationExists
		} else if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, fmt.Errorf("load registration: %w", err)
		}
		if err := s.ensureEmailsFree(ctx, uuid.Nil, p.Email); err != nil {
			return nil, err
		}
		md := &payments.CheckoutMetadata{
			Kind:    payments.KindRegistration,
			UserID:  userID,
			Spots:   []models.SpotDetails{p.PrimarySpotDetails()},
			Profile: &p,
		}
		return s.checkout(ctx, md, required, s.cfg.EventName+": registration", p.Email)
	}

	reg, err := s.store.GetRegistration(ctx, *req.RegistrationID, userID)
	if err != nil {
		return nil, err
	}
	due := required - reg.AmountPaidCents
	if due <= 0 {
		return nil, apperr.Validation("these changes need no payment; save them directly")
	}
	exclude := uuid.Nil
	if reg.PrimarySpotID != nil {
		exclude = *reg.PrimarySpotID
	}
	if err := s.ensureEmailsFree(ctx, exclude, p.Email); err != nil {
		return nil, err
	}
	md := &payments.CheckoutMetadata{
		Kind:           payments.KindRegistrationUpdate,
		UserID:         userID,
		RegistrationID: reg.ID,
		Profile:        &p,
	}
	return s.checkout(ctx, md, due, s.cfg.EventName+": registration update", p.Email)
}

// RegisterFree records a first-year alumni registration without payment.
func (s *Service) RegisterFree(ctx context.Context, userID uuid.UUID, profile models.RegistrationProfile) (*models.Registration, error) {
	p, err := cleanProfile(profile)
	if err != nil {
		return nil, err
	}
	if !p.IsFirstYearAlumni {
		return nil, apperr.Validation("free registration is only available to first-year alumni")
	}
	if len(p.PayForPreferred) > 0 {
		return nil, apperr.Validation("paying for preferred golfers requires checkout")
	}
	if _, err := s.store.CompletedRegistration(ctx, userID); err == nil {
		return nil, apperr.ErrRegistrationExists
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if err := s.ensureEmailsFree(ctx, uuid.Nil, p.Email); err != nil {
		return nil, err
	}

	now := s.now()
	reg := &models.Registration{
		ID:                uuid.New(),
		UserID:            userID,
		PaymentStatus:     models.PaymentStatusCompleted,
		Name:              p.Name,
		Email:             p.Email,
		Phone:             p.Phone,
		PreferredGolfers:  p.PreferredGolfers,
		PayForPreferred:   []string{},
		IsFirstYearAlumni: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	spot := models.Spot{ID: uuid.New(), RegistrationID: reg.ID, Name: p.Name, Phone: p.Phone, Email: p.Email, CreatedAt: now}
	reg.Spots = []models.Spot{spot}
	reg.PrimarySpotID = &spot.ID
	if err := s.store.InsertRegistration(ctx, reg); err != nil {
		return nil, err
	}
	s.logger.Info("free registration recorded", zap.String("registration_id", reg.ID.String()), zap.String("user_id", userID.String()))
	return reg, nil
}

// UpdateRegistration saves changed details that need no further payment.
func (s *Service) UpdateRegistration(ctx context.Context, userID, regID uuid.UUID, profile models.RegistrationProfile) (*models.Registration, error) {
	p, err := cleanProfile(profile)
	if err != nil {
		return nil, err
	}
	reg, err := s.store.GetRegistration(ctx, regID, userID)
	if err != nil {
		return nil, err
	}
	if required := int64(p.PayableSpots()) * s.cfg.SpotPriceCents; required > reg.AmountPaidCents {
		return nil, apperr.Validationf("these changes cost %d cents more; use checkout", required-reg.AmountPaidCents)
	}
	if reg.PrimarySpotID != nil {
		if err := s.ensureEmailsFree(ctx, *reg.PrimarySpotID, p.Email); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateRegistrationProfile(ctx, regID, userID, p)
}

// RemovePreferredGolfer drops a golfer from the preferred list. A golfer who
// was paid for cannot be removed.
func (s *Service) RemovePreferredGolfer(ctx context.Context, userID, regID uuid.UUID, golfer string) (*models.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, regID, userID)
	if err != nil {
		return nil, err
	}
	if utils.ContainsFold(reg.PayForPreferred, golfer) {
		return nil, apperr.Validation("a golfer who was paid for cannot be removed")
	}
	remaining, removed := utils.RemoveFold(reg.PreferredGolfers, golfer)
	if !removed {
		return nil, apperr.ErrGolferNotFound
	}
	p := models.RegistrationProfile{
		Name:              reg.Name,
		Email:             reg.Email,
		Phone:             reg.Phone,
		PreferredGolfers:  remaining,
		PayForPreferred:   reg.PayForPreferred,
		IsFirstYearAlumni: reg.IsFirstYearAlumni,
	}
	return s.store.UpdateRegistrationProfile(ctx, regID, userID, p)
}

// EditSpot changes a spot's golfer details. Only the spot's payer may do so.
func (s *Service) EditSpot(ctx context.Context, userID, spotID uuid.UUID, d models.SpotDetails) (*models.Spot, error) {
	d, err := cleanSpot(d)
	if err != nil {
		return nil, err
	}
	spot, err := s.store.GetSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if spot.UserID != userID {
		return nil, apperr.ErrSpotNotOwned
	}
	if err := s.ensureEmailsFree(ctx, spotID, d.Email); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateSpot(ctx, spotID, d)
	if err != nil {
		return nil, err
	}
	s.logger.Info("spot updated", zap.String("spot_id", spotID.String()))
	return updated, nil
}

// ListForUser returns the user's registrations.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return s.store.RegistrationsForUser(ctx, userID)
}

// UserSpots returns the spots the user has paid for.
func (s *Service) UserSpots(ctx context.Context, userID uuid.UUID) ([]models.Spot, error) {
	return s.store.SpotsForUser(ctx, userID)
}

// AllSpots returns every confirmed spot.
func (s *Service) AllSpots(ctx context.Context) ([]models.Spot, error) {
	return s.store.AllSpots(ctx)
}

// HasSpots reports whether the user holds any confirmed spot.
func (s *Service) HasSpots(ctx context.Context, userID uuid.UUID) (bool, error) {
	spots, err := s.store.SpotsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(spots) > 0, nil
}

func (s *Service) checkout(ctx context.Context, md *payments.CheckoutMetadata, amount int64, product, email string) (*payments.CheckoutResult, error) {
	encoded, err := md.Encode()
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateSession(ctx, payments.SessionParams{
		AmountCents:   amount,
		ProductName:   product,
		CustomerEmail: email,
		SuccessURL:    s.cfg.Redirects.SuccessURL,
		CancelURL:     s.cfg.Redirects.CancelURL,
		Metadata:      encoded,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration checkout started",
		zap.String("user_id", md.UserID.String()),
		zap.String("kind", string(md.Kind)),
		zap.String("session_id", session.ID),
		zap.Int64("amount_cents", amount))
	return &payments.CheckoutResult{SessionID: session.ID, URL: session.URL, AmountCents: amount}, nil
}

func (s *Service) ensureEmailsFree(ctx context.Context, exclude uuid.UUID, emails ...string) error {
	taken, err := s.store.TakenEmails(ctx, emails, exclude)
	if err != nil {
		return fmt.Errorf("check emails: %w", err)
	}
	if len(taken) > 0 {
		return apperr.DuplicateEmail(taken[0])
	}
	return nil
}

// CleanSpots trims and validates a batch of spot details. Emails must be
// unique within the batch, ignoring case.
func CleanSpots(spots []models.SpotDetails) ([]models.SpotDetails, error) {
	cleaned := make([]models.SpotDetails, len(spots))
	for i, d := range spots {
		c, err := cleanSpot(d)
		if err != nil {
			return nil, err
		}
		cleaned[i] = c
	}
	if err := checkBatchEmails(cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

func cleanSpot(d models.SpotDetails) (models.SpotDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	if d.Name == "" {
		return d, apperr.Validation("golfer name is required")
	}
	if !utils.ValidEmail(d.Email) {
		return d, apperr.Validationf("invalid email %q", d.Email)
	}
	return d, nil
}

func cleanProfile(p models.RegistrationProfile) (models.RegistrationProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Name == "" {
		return p, apperr.Validation("name is required")
	}
	if !utils.ValidEmail(p.Email) {
		return p, apperr.Validationf("invalid email %q", p.Email)
	}
	if !utils.ValidPhone(p.Phone) {
		return p, apperr.Validationf("phone number must have at least %d characters", utils.MinPhoneLength)
	}
	p.PreferredGolfers = utils.CleanList(p.PreferredGolfers)
	p.PayForPreferred = utils.CleanList(p.PayForPreferred)
	if len(p.PreferredGolfers) > models.TeamCapacity-1 {
		return p, apperr.Validationf("at most %d preferred golfers", models.TeamCapacity-1)
	}
	for _, g := range p.PayForPreferred {
		if !utils.ContainsFold(p.PreferredGolfers, g) {
			return p, apperr.Validationf("%s is paid for but not a preferred golfer", g)
		}
	}
	return p, nil
}

func checkBatchEmails(spots []models.SpotDetails) error {
	seen := make(map[string]struct{}, len(spots))
	for _, d := range spots {
		k := utils.NormalizeKey(d.Email)
		if _, dup := seen[k]; dup {
			return apperr.DuplicateEmail(d.Email)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func emailsOf(spots []models.SpotDetails) []string {
	out := make([]string, len(spots))
	for i, d := range spots {
		out[i] = d.Email
	}
	return out
}
