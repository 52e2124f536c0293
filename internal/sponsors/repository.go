package sponsors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/database"
)

const sponsorColumns = `id, user_id, name, tier, price_cents, logo, sponsor_text, website_link, free_golfers,
	stripe_session_id, created_at, updated_at`

// Repository is the PostgreSQL Store. It also applies confirmed sponsor payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sponsors repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SponsorForUser returns the user's sponsor.
func (r *Repository) SponsorForUser(ctx context.Context, userID uuid.UUID) (*models.Sponsor, error) {
	return scanSponsor(r.pool.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE user_id = $1`, userID))
}

// ListSponsors returns every sponsor, oldest first.
func (r *Repository) ListSponsors(ctx context.Context) ([]models.Sponsor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sponsorColumns+` FROM sponsors ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sponsors: %w", err)
	}
	defer rows.Close()
	out := []models.Sponsor{}
	for rows.Next() {
		s, err := scanSponsor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpdateSponsorDetails overwrites the display fields and returns the sponsor
// before and after the change.
func (r *Repository) UpdateSponsorDetails(ctx context.Context, userID uuid.UUID, d models.SponsorDetails) (prev, updated *models.Sponsor, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		prev, err = scanSponsor(tx.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		const q = `UPDATE sponsors SET name = $2, logo = $3, sponsor_text = $4, website_link = $5, updated_at = NOW()
			WHERE user_id = $1 RETURNING ` + sponsorColumns
		updated, err = scanSponsor(tx.QueryRow(ctx, q, userID, d.Name, d.Logo, d.Text, d.WebsiteLink))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return prev, updated, nil
}

// InsertSponsor records the event and inserts the sponsor. The unique key on
// user_id turns a second sponsorship into apperr.ErrSponsorExists.
func (r *Repository) InsertSponsor(ctx context.Context, ev models.ProcessedEvent, s *models.Sponsor) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.RecordEvent(ctx, tx, ev.EventID, ev.SessionID, ev.Kind, ev.UserID, ev.AmountCents); err != nil {
			return err
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		golfers := s.FreeGolfers
		if golfers == nil {
			golfers = []string{}
		}
		const q = `INSERT INTO sponsors (id, user_id, name, tier, price_cents, logo, sponsor_text, website_link,
				free_golfers, stripe_session_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`
		err := tx.QueryRow(ctx, q, s.ID, s.UserID, s.Name, s.Tier, s.PriceCents, s.Logo, s.Text, s.WebsiteLink,
			golfers, s.StripeSessionID).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			if _, ok := database.UniqueViolation(err); ok {
				return apperr.ErrSponsorExists
			}
			return fmt.Errorf("insert sponsor: %w", err)
		}
		return nil
	})
}

// UpgradeSponsor records the event and moves the user's sponsor to the new
// tier in place. Details replace the current ones only when a name is given;
// free golfers only when non-nil. The sponsor as it was before is returned.
func (r *Repository) UpgradeSponsor(ctx context.Context, ev models.ProcessedEvent, userID uuid.UUID, up models.SponsorUpgrade) (*models.Sponsor, error) {
	var prev *models.Sponsor
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.RecordEvent(ctx, tx, ev.EventID, ev.SessionID, ev.Kind, ev.UserID, ev.AmountCents); err != nil {
			return err
		}
		var err error
		prev, err = scanSponsor(tx.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		next := *prev
		next.Tier, next.PriceCents = up.Tier.Name, up.Tier.PriceCents
		if up.Details.Name != "" {
			next.Name, next.Logo, next.Text, next.WebsiteLink = up.Details.Name, up.Details.Logo, up.Details.Text, up.Details.WebsiteLink
		}
		if up.FreeGolfers != nil {
			next.FreeGolfers = up.FreeGolfers
		}
		const q = `UPDATE sponsors SET tier = $2, price_cents = $3, name = $4, logo = $5, sponsor_text = $6,
				website_link = $7, free_golfers = $8, stripe_session_id = $9, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.Exec(ctx, q, prev.ID, next.Tier, next.PriceCents, next.Name, next.Logo, next.Text,
			next.WebsiteLink, next.FreeGolfers, up.SessionID); err != nil {
			return fmt.Errorf("upgrade sponsor: %w", err)
		}
		return nil
	})
	return prev, err
}

func scanSponsor(row pgx.Row) (*models.Sponsor, error) {
	var s models.Sponsor
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Tier, &s.PriceCents, &s.Logo, &s.Text, &s.WebsiteLink,
		&s.FreeGolfers, &s.StripeSessionID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrSponsorNotFound
		}
		return nil, fmt.Errorf("scan sponsor: %w", err)
	}
	return &s, nil
}
