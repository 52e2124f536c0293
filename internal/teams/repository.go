package teams

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

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTeam inserts the team and its initial members in one transaction. A
// member spot that is already seated elsewhere fails the whole insert.
func (r *Repository) CreateTeam(ctx context.Context, team *models.Team) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertTeam = `INSERT INTO teams (id, name, is_private, creator_id, whitelist, member_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
		if _, err := tx.Exec(ctx, insertTeam, team.ID, team.Name, team.IsPrivate, team.CreatorID,
			team.Whitelist, len(team.Members), team.CreatedAt); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		for _, m := range team.Members {
			if err := insertMember(ctx, tx, team.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, apperr.ErrSpotAlreadyAssigned) {
		return apperr.ErrInsufficientSpots
	}
	return err
}

// GetTeam loads a team with its members.
func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	const q = `SELECT id, name, is_private, creator_id, whitelist, created_at, updated_at FROM teams WHERE id = $1`
	var t models.Team
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.IsPrivate, &t.CreatorID, &t.Whitelist, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrTeamNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	byTeam, err := r.membersOf(ctx, []uuid.UUID{t.ID})
	if err != nil {
		return nil, err
	}
	t.Members = byTeam[t.ID]
	if t.Members == nil {
		t.Members = []models.TeamMember{}
	}
	return &t, nil
}

// ListTeams returns all teams ordered by creation time.
func (r *Repository) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_private, creator_id, whitelist, created_at, updated_at
		FROM teams ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()
	list := []models.Team{}
	var ids []uuid.UUID
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.IsPrivate, &t.CreatorID, &t.Whitelist, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		list = append(list, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return list, nil
	}
	byTeam, err := r.membersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Members = byTeam[list[i].ID]
		if list[i].Members == nil {
			list[i].Members = []models.TeamMember{}
		}
	}
	return list, nil
}

// TeamForSpot returns the team the spot is seated on, if any.
func (r *Repository) TeamForSpot(ctx context.Context, spotID uuid.UUID) (uuid.UUID, bool, error) {
	var teamID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT team_id FROM team_members WHERE spot_id = $1`, spotID).Scan(&teamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("team for spot: %w", err)
	}
	return teamID, true, nil
}

// AddTeamMember takes a seat with a conditional increment. The UPDATE holds the
// team row lock until commit, so concurrent joins serialize and the count can
// never pass capacity.
func (r *Repository) AddTeamMember(ctx context.Context, teamID uuid.UUID, member models.TeamMember, capacity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const claimSeat = `UPDATE teams SET member_count = member_count + 1, updated_at = NOW()
			WHERE id = $1 AND member_count < $2`
		tag, err := tx.Exec(ctx, claimSeat, teamID, capacity)
		if err != nil {
			return fmt.Errorf("claim seat: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)`, teamID).Scan(&exists); err != nil {
				return fmt.Errorf("check team: %w", err)
			}
			if !exists {
				return apperr.ErrTeamNotFound
			}
			return apperr.ErrTeamFull
		}
		return insertMember(ctx, tx, teamID, member)
	})
}

// RemoveTeamMember deletes the membership and, when it was the last one, the
// team itself, in one transaction.
func (r *Repository) RemoveTeamMember(ctx context.Context, teamID, spotID uuid.UUID) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1 AND spot_id = $2`, teamID, spotID)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrMemberNotFound
		}
		var remaining int
		const release = `UPDATE teams SET member_count = member_count - 1, updated_at = NOW()
			WHERE id = $1 RETURNING member_count`
		if err := tx.QueryRow(ctx, release, teamID).Scan(&remaining); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		if remaining > 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, teamID); err != nil {
			return fmt.Errorf("delete empty team: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// UpdateTeam applies the supplied fields and returns the updated team.
func (r *Repository) UpdateTeam(ctx context.Context, teamID uuid.UUID, upd models.TeamUpdate) (*models.Team, error) {
	var whitelist []string
	if upd.Whitelist != nil {
		whitelist = *upd.Whitelist
		if whitelist == nil {
			whitelist = []string{}
		}
	}
	const q = `UPDATE teams SET
			name = COALESCE($2, name),
			is_private = COALESCE($3, is_private),
			whitelist = CASE WHEN $4 THEN $5::text[] ELSE whitelist END,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, teamID, upd.Name, upd.IsPrivate, upd.Whitelist != nil, whitelist)
	if err != nil {
		return nil, fmt.Errorf("update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.ErrTeamNotFound
	}
	return r.GetTeam(ctx, teamID)
}

func (r *Repository) membersOf(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID][]models.TeamMember, error) {
	const q = `SELECT tm.team_id, tm.spot_id, tm.registration_id, s.name, s.email, tm.joined_at
		FROM team_members tm JOIN spots s ON s.id = tm.spot_id
		WHERE tm.team_id = ANY($1) ORDER BY tm.joined_at, tm.spot_id`
	rows, err := r.pool.Query(ctx, q, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.TeamMember, len(teamIDs))
	for rows.Next() {
		var teamID uuid.UUID
		var m models.TeamMember
		if err := rows.Scan(&teamID, &m.SpotID, &m.RegistrationID, &m.Name, &m.Email, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out[teamID] = append(out[teamID], m)
	}
	return out, rows.Err()
}

func insertMember(ctx context.Context, tx pgx.Tx, teamID uuid.UUID, m models.TeamMember) error {
	const q = `INSERT INTO team_members (spot_id, team_id, registration_id, joined_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, q, m.SpotID, teamID, m.RegistrationID, m.JoinedAt); err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return apperr.ErrSpotAlreadyAssigned
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}
