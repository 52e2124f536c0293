package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/database"
)

const registrationColumns = `id, user_id, payment_status, amount_paid_cents, name, email, phone,
	preferred_golfers, pay_for_preferred, is_first_year_alumni, primary_spot_id, stripe_session_id,
	created_at, updated_at`

const (
	constraintCompletedUser = "registrations_completed_user_key"
	constraintSpotEmail     = "spots_email_key"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL Store. It also applies confirmed payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CompletedRegistration returns the user's completed registration with its spots.
func (r *Repository) CompletedRegistration(ctx context.Context, userID uuid.UUID) (*models.Registration, error) {
	return r.one(ctx, r.pool, `SELECT `+registrationColumns+` FROM registrations
		WHERE user_id = $1 AND payment_status = 'completed'`, userID)
}

// GetRegistration returns a registration owned by userID.
func (r *Repository) GetRegistration(ctx context.Context, regID, userID uuid.UUID) (*models.Registration, error) {
	return r.one(ctx, r.pool, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 AND user_id = $2`, regID, userID)
}

// RegistrationsForUser lists the user's registrations, oldest first.
func (r *Repository) RegistrationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.many(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

// ListRegistrations returns every registration, oldest first.
func (r *Repository) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	return r.many(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY created_at, id`)
}

// InsertRegistration stores a registration and its spots in one transaction.
func (r *Repository) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO registrations (id, user_id, payment_status, amount_paid_cents, name, email, phone,
				preferred_golfers, pay_for_preferred, is_first_year_alumni, primary_spot_id, stripe_session_id,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`
		_, err := tx.Exec(ctx, q, reg.ID, reg.UserID, string(reg.PaymentStatus), reg.AmountPaidCents,
			reg.Name, reg.Email, reg.Phone, nonNil(reg.PreferredGolfers), nonNil(reg.PayForPreferred),
			reg.IsFirstYearAlumni, reg.PrimarySpotID, reg.StripeSessionID, reg.CreatedAt)
		if err != nil {
			return translate(err, "insert registration", "")
		}
		return insertSpots(ctx, tx, reg.ID, reg.Spots)
	})
}

// UpdateRegistrationProfile overwrites the editable fields and keeps the
// primary spot's contact details in step.
func (r *Repository) UpdateRegistrationProfile(ctx context.Context, regID, userID uuid.UUID, p models.RegistrationProfile) (*models.Registration, error) {
	var out *models.Registration
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `UPDATE registrations SET name = $3, email = $4, phone = $5, preferred_golfers = $6,
				pay_for_preferred = $7, is_first_year_alumni = $8, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING primary_spot_id`
		var primary *uuid.UUID
		err := tx.QueryRow(ctx, q, regID, userID, p.Name, p.Email, p.Phone,
			nonNil(p.PreferredGolfers), nonNil(p.PayForPreferred), p.IsFirstYearAlumni).Scan(&primary)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.ErrRegistrationNotFound
			}
			return fmt.Errorf("update registration: %w", err)
		}
		if err := syncPrimarySpot(ctx, tx, primary, p); err != nil {
			return err
		}
		out, err = r.one(ctx, tx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, regID)
		return err
	})
	return out, err
}

// GetSpot returns a spot joined with its payer.
func (r *Repository) GetSpot(ctx context.Context, spotID uuid.UUID) (*models.OwnedSpot, error) {
	const q = `SELECT s.id, s.registration_id, s.name, s.phone, s.email, s.created_at, r.user_id, r.payment_status
		FROM spots s JOIN registrations r ON r.id = s.registration_id
		WHERE s.id = $1`
	var o models.OwnedSpot
	var status string
	err := r.pool.QueryRow(ctx, q, spotID).Scan(&o.ID, &o.RegistrationID, &o.Name, &o.Phone, &o.Email, &o.CreatedAt, &o.UserID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrSpotNotFound
		}
		return nil, fmt.Errorf("get spot: %w", err)
	}
	o.PaymentStatus = models.PaymentStatus(status)
	return &o, nil
}

// TakenEmails returns the stored spellings of emails already used by a spot
// other than exclude.
func (r *Repository) TakenEmails(ctx context.Context, emails []string, exclude uuid.UUID) ([]string, error) {
	keys := make([]string, len(emails))
	for i, e := range emails {
		keys[i] = strings.ToLower(strings.TrimSpace(e))
	}
	rows, err := r.pool.Query(ctx, `SELECT email FROM spots WHERE lower(email) = ANY($1) AND id <> $2`, keys, exclude)
	if err != nil {
		return nil, fmt.Errorf("taken emails: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpdateSpot overwrites a spot's golfer details.
func (r *Repository) UpdateSpot(ctx context.Context, spotID uuid.UUID, d models.SpotDetails) (*models.Spot, error) {
	const q = `UPDATE spots SET name = $2, phone = $3, email = $4 WHERE id = $1
		RETURNING id, registration_id, name, phone, email, created_at`
	var s models.Spot
	err := r.pool.QueryRow(ctx, q, spotID, d.Name, d.Phone, d.Email).
		Scan(&s.ID, &s.RegistrationID, &s.Name, &s.Phone, &s.Email, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrSpotNotFound
		}
		return nil, translate(err, "update spot", d.Email)
	}
	return &s, nil
}

// SpotsForUser lists the spots of the user's completed registration.
func (r *Repository) SpotsForUser(ctx context.Context, userID uuid.UUID) ([]models.Spot, error) {
	return r.spots(ctx, `SELECT s.id, s.registration_id, s.name, s.phone, s.email, s.created_at
		FROM spots s JOIN registrations r ON r.id = s.registration_id
		WHERE r.user_id = $1 AND r.payment_status = 'completed'
		ORDER BY s.created_at, s.id`, userID)
}

// AllSpots lists every spot of a completed registration.
func (r *Repository) AllSpots(ctx context.Context) ([]models.Spot, error) {
	return r.spots(ctx, `SELECT s.id, s.registration_id, s.name, s.phone, s.email, s.created_at
		FROM spots s JOIN registrations r ON r.id = s.registration_id
		WHERE r.payment_status = 'completed'
		ORDER BY s.created_at, s.id`)
}

// ApplyRegistration records the event and merges the paid spots into the
// payer's completed registration, creating it on the first payment. The row
// lock on the existing registration serializes concurrent payments by one payer.
func (r *Repository) ApplyRegistration(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationPayment) (*models.Registration, error) {
	var out *models.Registration
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.RecordEvent(ctx, tx, ev.EventID, ev.SessionID, ev.Kind, ev.UserID, ev.AmountCents); err != nil {
			return err
		}

		var regID uuid.UUID
		var held int
		err := tx.QueryRow(ctx, `SELECT r.id, (SELECT COUNT(*) FROM spots s WHERE s.registration_id = r.id)
			FROM registrations r WHERE r.user_id = $1 AND r.payment_status = 'completed' FOR UPDATE`, p.UserID).Scan(&regID, &held)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			held = 0
			regID, err = insertPaidRegistration(ctx, tx, p)
			if err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("lock registration: %w", err)
		default:
			const merge = `UPDATE registrations SET amount_paid_cents = amount_paid_cents + $2,
					stripe_session_id = $3, updated_at = NOW() WHERE id = $1`
			if _, err := tx.Exec(ctx, merge, regID, p.AmountCents, p.SessionID); err != nil {
				return fmt.Errorf("merge registration: %w", err)
			}
		}
		if p.MaxSpots > 0 && held+len(p.Spots) > p.MaxSpots {
			return apperr.ErrSpotLimitExceeded
		}
		if err := insertSpots(ctx, tx, regID, p.Spots); err != nil {
			return err
		}
		out, err = r.one(ctx, tx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, regID)
		return err
	})
	return out, err
}

// ApplyRegistrationUpdate records the event and overwrites the registration's
// details, marking it completed and adding the payment.
func (r *Repository) ApplyRegistrationUpdate(ctx context.Context, ev models.ProcessedEvent, p models.RegistrationUpdatePayment) (*models.Registration, error) {
	var out *models.Registration
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.RecordEvent(ctx, tx, ev.EventID, ev.SessionID, ev.Kind, ev.UserID, ev.AmountCents); err != nil {
			return err
		}
		const q = `UPDATE registrations SET name = $3, email = $4, phone = $5, preferred_golfers = $6,
				pay_for_preferred = $7, is_first_year_alumni = $8, payment_status = 'completed',
				amount_paid_cents = amount_paid_cents + $9, stripe_session_id = $10, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING primary_spot_id`
		pr := p.Profile
		var primary *uuid.UUID
		err := tx.QueryRow(ctx, q, p.RegistrationID, p.UserID, pr.Name, pr.Email, pr.Phone,
			nonNil(pr.PreferredGolfers), nonNil(pr.PayForPreferred), pr.IsFirstYearAlumni,
			p.AmountCents, p.SessionID).Scan(&primary)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.ErrRegistrationNotFound
			}
			return translate(err, "apply registration update", "")
		}
		if err := syncPrimarySpot(ctx, tx, primary, pr); err != nil {
			return err
		}
		out, err = r.one(ctx, tx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, p.RegistrationID)
		return err
	})
	return out, err
}

func insertPaidRegistration(ctx context.Context, tx pgx.Tx, p models.RegistrationPayment) (uuid.UUID, error) {
	id := uuid.New()
	var name, email, phone string
	preferred, payFor := []string{}, []string{}
	alumni := false
	var primary *uuid.UUID
	if p.Profile != nil {
		name, email, phone = p.Profile.Name, p.Profile.Email, p.Profile.Phone
		preferred, payFor = nonNil(p.Profile.PreferredGolfers), nonNil(p.Profile.PayForPreferred)
		alumni = p.Profile.IsFirstYearAlumni
		if len(p.Spots) > 0 {
			first := p.Spots[0].ID
			primary = &first
		}
	} else if len(p.Spots) > 0 {
		name, email, phone = p.Spots[0].Name, p.Spots[0].Email, p.Spots[0].Phone
	}
	const q = `INSERT INTO registrations (id, user_id, payment_status, amount_paid_cents, name, email, phone,
			preferred_golfers, pay_for_preferred, is_first_year_alumni, primary_spot_id, stripe_session_id)
		VALUES ($1, $2, 'completed', $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.Exec(ctx, q, id, p.UserID, p.AmountCents, name, email, phone, preferred, payFor, alumni, primary, p.SessionID); err != nil {
		return uuid.Nil, translate(err, "insert registration", "")
	}
	return id, nil
}

func insertSpots(ctx context.Context, tx pgx.Tx, regID uuid.UUID, spots []models.Spot) error {
	const q = `INSERT INTO spots (id, registration_id, name, phone, email) VALUES ($1, $2, $3, $4, $5)`
	for _, s := range spots {
		if _, err := tx.Exec(ctx, q, s.ID, regID, s.Name, s.Phone, s.Email); err != nil {
			return translate(err, "insert spot", s.Email)
		}
	}
	return nil
}

func syncPrimarySpot(ctx context.Context, tx pgx.Tx, primary *uuid.UUID, p models.RegistrationProfile) error {
	if primary == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE spots SET name = $2, email = $3, phone = $4 WHERE id = $1`,
		*primary, p.Name, p.Email, p.Phone); err != nil {
		return translate(err, "sync primary spot", p.Email)
	}
	return nil
}

// translate maps unique violations to domain conflicts.
func translate(err error, op, email string) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case constraintSpotEmail:
			return apperr.DuplicateEmail(email)
		case constraintCompletedUser:
			return apperr.ErrRegistrationExists
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Repository) one(ctx context.Context, q querier, sql string, args ...any) (*models.Registration, error) {
	reg, err := scanRegistration(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	bySpot, err := spotsOf(ctx, q, []uuid.UUID{reg.ID})
	if err != nil {
		return nil, err
	}
	reg.Spots = nonNilSpots(bySpot[reg.ID])
	return reg, nil
}

func (r *Repository) many(ctx context.Context, sql string, args ...any) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	list := []models.Registration{}
	var ids []uuid.UUID
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		list = append(list, *reg)
		ids = append(ids, reg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return list, nil
	}
	byReg, err := spotsOf(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Spots = nonNilSpots(byReg[list[i].ID])
	}
	return list, nil
}

func (r *Repository) spots(ctx context.Context, sql string, args ...any) ([]models.Spot, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	defer rows.Close()
	out := []models.Spot{}
	for rows.Next() {
		var s models.Spot
		if err := rows.Scan(&s.ID, &s.RegistrationID, &s.Name, &s.Phone, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func spotsOf(ctx context.Context, q querier, regIDs []uuid.UUID) (map[uuid.UUID][]models.Spot, error) {
	rows, err := q.Query(ctx, `SELECT id, registration_id, name, phone, email, created_at
		FROM spots WHERE registration_id = ANY($1) ORDER BY created_at, id`, regIDs)
	if err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.Spot, len(regIDs))
	for rows.Next() {
		var s models.Spot
		if err := rows.Scan(&s.ID, &s.RegistrationID, &s.Name, &s.Phone, &s.Email, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		out[s.RegistrationID] = append(out[s.RegistrationID], s)
	}
	return out, rows.Err()
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	err := row.Scan(&reg.ID, &reg.UserID, &status, &reg.AmountPaidCents, &reg.Name, &reg.Email, &reg.Phone,
		&reg.PreferredGolfers, &reg.PayForPreferred, &reg.IsFirstYearAlumni, &reg.PrimarySpotID,
		&reg.StripeSessionID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.PaymentStatus = models.PaymentStatus(status)
	return &reg, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSpots(s []models.Spot) []models.Spot {
	if s == nil {
		return []models.Spot{}
	}
	return s
}
