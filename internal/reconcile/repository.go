package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/registrations"
	"github.com/golf-outing/backend/internal/sponsors"
	"github.com/golf-outing/backend/pkg/database"
)

// Repository is the PostgreSQL Store, assembled from the registrations and
// sponsors repositories which own the tables involved.
type Repository struct {
	pool          *pgxpool.Pool
	registrations *registrations.Repository
	sponsors      *sponsors.Repository
}

// NewRepository creates a reconcile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:          pool,
		registrations: registrations.NewRepository(pool),
		sponsors:      sponsors.NewRepository(pool),
	}
}

// EventProcessed reports whether eventID is in the ledger.
func (r *Repository) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	return database.EventProcessed(ctx, r.pool, eventID)
}

func (r *Repository) ApplyRegistration(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationPayment) (*models.Registration, error) {
	return r.registrations.ApplyRegistration(ctx, ev, p)
}

func (r *Repository) ApplyRegistrationUpdate(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationUpdatePayment) (*models.Registration, error) {
	return r.registrations.ApplyRegistrationUpdate(ctx, ev, p)
}

func (r *Repository) InsertSponsor(ctx context.Context, ev models.ProcessedEvent, s *models.Sponsor) error {
	return r.sponsors.InsertSponsor(ctx, ev, s)
}

func (r *Repository) UpgradeSponsor(ctx context.Context, ev models.ProcessedEvent, userID uuid.UUID, up models.SponsorUpgrade) (*models.Sponsor, error) {
	return r.sponsors.UpgradeSponsor(ctx, ev, userID, up)
}
