// Package sponsors sells hole sponsorships: tier checkout, upgrades, detail
// edits, and presigned logo uploads.
package sponsors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/queue"
	"github.com/golf-outing/backend/pkg/storage"
	"github.com/golf-outing/backend/pkg/utils"
)

// Store persists sponsors.
type Store interface {
	SponsorForUser(ctx context.Context, userID uuid.UUID) (*models.Sponsor, error)
	UpdateSponsorDetails(ctx context.Context, userID uuid.UUID, d models.SponsorDetails) (prev, updated *models.Sponsor, err error)
}

// LogoStorage issues presigned logo uploads.
type LogoStorage interface {
	PresignLogoUpload(ctx context.Context, key, contentType string) (uploadURL, publicURL string, err error)
}

// CleanupQueue schedules deletion of replaced logos.
type CleanupQueue interface {
	EnqueueLogoCleanup(ctx context.Context, payload queue.LogoCleanupPayload) error
}

// Config holds checkout settings.
type Config struct {
	EventName string
	Redirects payments.Redirects
}

// CheckoutRequest is the body for POST /sponsors/checkout.
type CheckoutRequest struct {
	Details     models.SponsorDetails `json:"details" binding:"required"`
	Tier        string                `json:"tier" binding:"required"`
	FreeGolfers []string              `json:"free_golfers"`
}

// UpgradeRequest is the body for POST /sponsors/upgrade. Details and
// FreeGolfers are optional; when absent the current values stay.
type UpgradeRequest struct {
	Tier        string                 `json:"tier" binding:"required"`
	Details     *models.SponsorDetails `json:"details"`
	FreeGolfers []string               `json:"free_golfers"`
}

// LogoUpload is a presigned upload target.
type LogoUpload struct {
	UploadURL string `json:"upload_url"`
	LogoURL   string `json:"logo_url"`
}

// Service implements sponsorship rules.
type Service struct {
	store   Store
	gateway payments.Gateway
	logos   LogoStorage
	cleanup CleanupQueue
	cfg     Config
	logger  *zap.Logger
}

// NewService creates a sponsors service. logos and cleanup may be nil when
// object storage is not configured.
func NewService(store Store, gateway payments.Gateway, logos LogoStorage, cleanup CleanupQueue, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, gateway: gateway, logos: logos, cleanup: cleanup, cfg: cfg, logger: logger}
}

// Tiers returns the catalog.
func (s *Service) Tiers() []models.SponsorTier {
	return models.SponsorTiers
}

// Get returns the user's sponsorship.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*models.Sponsor, error) {
	return s.store.SponsorForUser(ctx, userID)
}

// CreateCheckout opens a checkout for a new sponsorship.
func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID, payerEmail string, req CheckoutRequest) (*payments.CheckoutResult, error) {
	if _, err := s.store.SponsorForUser(ctx, userID); err == nil {
		return nil, apperr.ErrSponsorExists
	} else if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, fmt.Errorf("load sponsor: %w", err)
	}
	tier, ok := models.FindSponsorTier(req.Tier)
	if !ok {
		return nil, apperr.Validationf("unknown sponsor tier %q", req.Tier)
	}
	d, err := CleanDetails(req.Details)
	if err != nil {
		return nil, err
	}
	golfers, err := CleanFreeGolfers(req.FreeGolfers, tier)
	if err != nil {
		return nil, err
	}
	md := &payments.CheckoutMetadata{
		Kind:   payments.KindSponsorCreate,
		UserID: userID,
		Sponsor: &payments.SponsorMetadata{
			Name: d.Name, Tier: tier.Name, Logo: d.Logo, Text: d.Text, WebsiteLink: d.WebsiteLink, FreeGolfers: golfers,
		},
	}
	return s.checkout(ctx, md, tier.PriceCents, fmt.Sprintf("%s: %s", s.cfg.EventName, tier.Name), payerEmail)
}

// UpgradeCheckout opens a checkout for moving to a more expensive tier; only
// the price difference is charged.
func (s *Service) UpgradeCheckout(ctx context.Context, userID uuid.UUID, payerEmail string, req UpgradeRequest) (*payments.CheckoutResult, error) {
	current, err := s.store.SponsorForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier, ok := models.FindSponsorTier(req.Tier)
	if !ok {
		return nil, apperr.Validationf("unknown sponsor tier %q", req.Tier)
	}
	due := tier.PriceCents - current.PriceCents
	if due <= 0 {
		return nil, apperr.Validationf("%s is not an upgrade from %s", tier.Name, current.Tier)
	}

	sm := &payments.SponsorMetadata{Tier: tier.Name}
	if req.Details != nil {
		d, err := CleanDetails(*req.Details)
		if err != nil {
			return nil, err
		}
		sm.Name, sm.Logo, sm.Text, sm.WebsiteLink = d.Name, d.Logo, d.Text, d.WebsiteLink
	}
	if req.FreeGolfers != nil {
		if sm.FreeGolfers, err = CleanFreeGolfers(req.FreeGolfers, tier); err != nil {
			return nil, err
		}
	}
	md := &payments.CheckoutMetadata{Kind: payments.KindSponsorUpgrade, UserID: userID, Sponsor: sm}
	return s.checkout(ctx, md, due, fmt.Sprintf("%s: upgrade to %s", s.cfg.EventName, tier.Name), payerEmail)
}

// UpdateDetails edits the display fields. A replaced logo is queued for deletion.
func (s *Service) UpdateDetails(ctx context.Context, userID uuid.UUID, details models.SponsorDetails) (*models.Sponsor, error) {
	d, err := CleanDetails(details)
	if err != nil {
		return nil, err
	}
	prev, updated, err := s.store.UpdateSponsorDetails(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	EnqueueReplacedLogo(ctx, s.cleanup, s.logger, prev, updated.Logo, "details_updated")
	return updated, nil
}

// LogoUploadURL presigns an upload for a new logo. The image goes straight to
// the bucket; the returned logo URL is then saved with the sponsor details.
func (s *Service) LogoUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (*LogoUpload, error) {
	if s.logos == nil {
		return nil, apperr.Upstream("logo storage is not configured", nil)
	}
	ext, ok := storage.LogoExtension(contentType)
	if !ok {
		return nil, apperr.Validationf("unsupported logo type %q", contentType)
	}
	uploadURL, publicURL, err := s.logos.PresignLogoUpload(ctx, storage.LogoKey(userID, ext), contentType)
	if err != nil {
		return nil, apperr.Upstream("could not prepare logo upload", err)
	}
	return &LogoUpload{UploadURL: uploadURL, LogoURL: publicURL}, nil
}

// EnqueueReplacedLogo queues prev's logo for deletion when it differs from
// newLogo. Queue failures are logged; the orphaned object is harmless.
func EnqueueReplacedLogo(ctx context.Context, q CleanupQueue, logger *zap.Logger, prev *models.Sponsor, newLogo, reason string) {
	if q == nil || prev == nil || prev.Logo == "" || prev.Logo == newLogo {
		return
	}
	err := q.EnqueueLogoCleanup(ctx, queue.LogoCleanupPayload{SponsorID: prev.ID, LogoURL: prev.Logo, Reason: reason})
	if err != nil {
		logger.Warn("enqueue logo cleanup failed", zap.String("sponsor_id", prev.ID.String()), zap.Error(err))
	}
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
	s.logger.Info("sponsor checkout started",
		zap.String("user_id", md.UserID.String()),
		zap.String("kind", string(md.Kind)),
		zap.String("tier", md.Sponsor.Tier),
		zap.Int64("amount_cents", amount))
	return &payments.CheckoutResult{SessionID: session.ID, URL: session.URL, AmountCents: amount}, nil
}

// CleanDetails trims the display fields and checks that a name and either a
// logo or text are present.
func CleanDetails(d models.SponsorDetails) (models.SponsorDetails, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Logo = strings.TrimSpace(d.Logo)
	d.Text = strings.TrimSpace(d.Text)
	d.WebsiteLink = strings.TrimSpace(d.WebsiteLink)
	if d.Name == "" {
		return d, apperr.Validation("sponsor name is required")
	}
	if !d.HasContent() {
		return d, apperr.Validation("a logo or sponsor text is required")
	}
	if d.WebsiteLink != "" {
		if !utils.ValidWebsite(d.WebsiteLink) {
			return d, apperr.Validationf("invalid website link %q", d.WebsiteLink)
		}
	}
	return d, nil
}

// CleanFreeGolfers dedupes the names and enforces the tier allowance.
func CleanFreeGolfers(in []string, tier models.SponsorTier) ([]string, error) {
	golfers := utils.CleanList(in)
	if len(golfers) > tier.FreeGolfers {
		return nil, apperr.Validationf("%s includes %d free golfer(s)", tier.Name, tier.FreeGolfers)
	}
	return golfers, nil
}
