package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/registrations"
	"github.com/golf-outing/backend/internal/sponsors"
)

// Repository is the PostgreSQL Reporter.
type Repository struct {
	pool          *pgxpool.Pool
	registrations *registrations.Repository
	sponsors      *sponsors.Repository
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:          pool,
		registrations: registrations.NewRepository(pool),
		sponsors:      sponsors.NewRepository(pool),
	}
}

const summarySQL = `
WITH regs AS (
	SELECT id, amount_paid_cents, is_first_year_alumni FROM registrations WHERE payment_status = 'completed'
), paid_spots AS (
	SELECT s.id FROM spots s JOIN regs r ON r.id = s.registration_id
)
SELECT
	(SELECT COUNT(*) FROM regs),
	(SELECT COUNT(*) FROM paid_spots),
	(SELECT COALESCE(SUM(amount_paid_cents), 0) FROM regs),
	(SELECT COUNT(*) FROM regs WHERE is_first_year_alumni),
	(SELECT COUNT(*) FROM sponsors),
	(SELECT COALESCE(SUM(price_cents), 0) FROM sponsors),
	(SELECT COUNT(*) FROM teams),
	(SELECT COUNT(*) FROM teams WHERE member_count >= $1),
	(SELECT COUNT(*) FROM teams WHERE is_private),
	(SELECT COUNT(*) FROM paid_spots p WHERE NOT EXISTS (SELECT 1 FROM team_members m WHERE m.spot_id = p.id))`

// Summary aggregates the dashboard figures in one round trip.
func (r *Repository) Summary(ctx context.Context) (*models.Summary, error) {
	var s models.Summary
	err := r.pool.QueryRow(ctx, summarySQL, models.TeamCapacity).Scan(
		&s.Registrations, &s.Spots, &s.ReservationCents, &s.FirstYearAlumniCount,
		&s.Sponsors, &s.SponsorshipCents,
		&s.Teams, &s.FullTeams, &s.PrivateTeams, &s.UnassignedSpots,
	)
	if err != nil {
		return nil, fmt.Errorf("admin summary: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	return r.registrations.ListRegistrations(ctx)
}

func (r *Repository) ListSponsors(ctx context.Context) ([]models.Sponsor, error) {
	return r.sponsors.ListSponsors(ctx)
}
