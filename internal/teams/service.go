// Package teams enforces team membership: the four-seat capacity, global
// spot exclusivity, private-team whitelists, and deletion of emptied teams.
package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/utils"
)

// Team board events.
const (
	EventTeamCreated  = "team_created"
	EventTeamUpdated  = "team_updated"
	EventTeamDeleted  = "team_deleted"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
)

const maxTeamNameLength = 80

// Store persists teams. Implementations must make AddMember atomic: the seat is
// taken only while the team holds fewer than capacity members, and a spot
// already seated anywhere is rejected with apperr.ErrSpotAlreadyAssigned.
type Store interface {
	CreateTeam(ctx context.Context, team *models.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	TeamForSpot(ctx context.Context, spotID uuid.UUID) (uuid.UUID, bool, error)
	AddTeamMember(ctx context.Context, teamID uuid.UUID, member models.TeamMember, capacity int) error
	RemoveTeamMember(ctx context.Context, teamID, spotID uuid.UUID) (teamDeleted bool, err error)
	UpdateTeam(ctx context.Context, teamID uuid.UUID, upd models.TeamUpdate) (*models.Team, error)
}

// SpotDirectory resolves a spot and its owner.
type SpotDirectory interface {
	GetSpot(ctx context.Context, spotID uuid.UUID) (*models.OwnedSpot, error)
}

// Notifier receives team board events.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) {}

// CreateTeamRequest is the input of CreateTeam.
type CreateTeamRequest struct {
	Name      string      `json:"name" binding:"required"`
	IsPrivate bool        `json:"is_private"`
	SpotIDs   []uuid.UUID `json:"spot_ids" binding:"required,min=1"`
	Whitelist []string    `json:"whitelist"`
}

// MemberEvent is the payload of member_joined and member_left.
type MemberEvent struct {
	TeamID      uuid.UUID `json:"team_id"`
	SpotID      uuid.UUID `json:"spot_id"`
	TeamDeleted bool      `json:"team_deleted,omitempty"`
}

// Service implements the team rules on top of a Store.
type Service struct {
	store    Store
	spots    SpotDirectory
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a team service. notifier may be nil.
func NewService(store Store, spots SpotDirectory, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{store: store, spots: spots, notifier: notifier, logger: logger, now: time.Now}
}

// CreateTeam creates a team seeded with spots the creator owns.
func (s *Service) CreateTeam(ctx context.Context, creatorID uuid.UUID, req CreateTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}
	if len(name) > maxTeamNameLength {
		return nil, apperr.Validationf("team name must be at most %d characters", maxTeamNameLength)
	}
	if len(req.SpotIDs) == 0 {
		return nil, apperr.Validation("at least one spot is required")
	}
	if len(req.SpotIDs) > models.TeamCapacity {
		return nil, apperr.Validationf("a team holds at most %d spots", models.TeamCapacity)
	}

	whitelist := utils.CleanList(req.Whitelist)
	if req.IsPrivate {
		if err := checkPrivateCapacity(len(req.SpotIDs), len(whitelist), len(req.Whitelist)-len(whitelist)); err != nil {
			return nil, err
		}
	} else {
		whitelist = []string{}
	}

	now := s.now()
	members := make([]models.TeamMember, 0, len(req.SpotIDs))
	seen := make(map[uuid.UUID]struct{}, len(req.SpotIDs))
	for _, spotID := range req.SpotIDs {
		if _, dup := seen[spotID]; dup {
			return nil, apperr.Validation("duplicate spot in request")
		}
		seen[spotID] = struct{}{}

		spot, err := s.ownedSpot(ctx, spotID)
		if err != nil {
			return nil, err
		}
		if err := checkOwnership(spot, creatorID); err != nil {
			return nil, err
		}
		if _, assigned, err := s.store.TeamForSpot(ctx, spotID); err != nil {
			return nil, fmt.Errorf("look up team for spot: %w", err)
		} else if assigned {
			return nil, apperr.ErrInsufficientSpots
		}
		members = append(members, models.TeamMember{
			SpotID:         spot.ID,
			RegistrationID: spot.RegistrationID,
			Name:           spot.Name,
			Email:          spot.Email,
			JoinedAt:       now,
		})
	}

	team := &models.Team{
		ID:        uuid.New(),
		Name:      name,
		IsPrivate: req.IsPrivate,
		CreatorID: creatorID,
		Members:   members,
		Whitelist: whitelist,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created",
		zap.String("team_id", team.ID.String()),
		zap.Bool("private", team.IsPrivate),
		zap.Int("members", len(team.Members)))
	s.notifier.Notify(ctx, EventTeamCreated, team)
	return team, nil
}

// JoinTeam seats spotID on the team. The spot's owner re-adding a spot that is
// already seated on this team succeeds without change.
func (s *Service) JoinTeam(ctx context.Context, teamID, spotID, userID uuid.UUID) (*models.Team, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	spot, err := s.ownedSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(spot, userID); err != nil {
		return nil, err
	}
	if team.HasMember(spotID) {
		return team, nil
	}
	if team.IsFull() {
		return nil, apperr.ErrTeamFull
	}
	if current, assigned, err := s.store.TeamForSpot(ctx, spotID); err != nil {
		return nil, fmt.Errorf("look up team for spot: %w", err)
	} else if assigned && current != teamID {
		return nil, apperr.ErrSpotAlreadyAssigned
	}
	if err := checkAdmission(team, spot.Spot); err != nil {
		return nil, err
	}

	member := models.TeamMember{
		SpotID:         spot.ID,
		RegistrationID: spot.RegistrationID,
		Name:           spot.Name,
		Email:          spot.Email,
		JoinedAt:       s.now(),
	}
	if err := s.store.AddTeamMember(ctx, teamID, member, models.TeamCapacity); err != nil {
		return nil, err
	}
	s.logger.Info("spot joined team", zap.String("team_id", teamID.String()), zap.String("spot_id", spotID.String()))
	s.notifier.Notify(ctx, EventMemberJoined, MemberEvent{TeamID: teamID, SpotID: spotID})
	return s.store.GetTeam(ctx, teamID)
}

// LeaveTeam removes spotID from the team. The spot's owner or the team creator
// may do this. The team is deleted when its last member leaves; teamDeleted
// reports that.
func (s *Service) LeaveTeam(ctx context.Context, teamID, spotID, userID uuid.UUID) (teamDeleted bool, err error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	if !team.HasMember(spotID) {
		return false, apperr.ErrMemberNotFound
	}
	if team.CreatorID != userID {
		spot, err := s.ownedSpot(ctx, spotID)
		if err != nil {
			return false, err
		}
		if spot.UserID != userID {
			return false, apperr.ErrForbidden
		}
	}

	deleted, err := s.store.RemoveTeamMember(ctx, teamID, spotID)
	if err != nil {
		return false, err
	}
	s.logger.Info("spot left team",
		zap.String("team_id", teamID.String()),
		zap.String("spot_id", spotID.String()),
		zap.Bool("team_deleted", deleted))
	s.notifier.Notify(ctx, EventMemberLeft, MemberEvent{TeamID: teamID, SpotID: spotID, TeamDeleted: deleted})
	if deleted {
		s.notifier.Notify(ctx, EventTeamDeleted, map[string]uuid.UUID{"team_id": teamID})
	}
	return deleted, nil
}

// UpdateTeamDetails changes name, privacy, or whitelist. Creator only. Seated
// members are never re-checked against the new settings.
func (s *Service) UpdateTeamDetails(ctx context.Context, teamID, userID uuid.UUID, upd models.TeamUpdate) (*models.Team, error) {
	if upd.Empty() {
		return nil, apperr.Validation("nothing to update")
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.CreatorID != userID {
		return nil, apperr.ErrForbidden
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("team name cannot be empty")
		}
		if len(name) > maxTeamNameLength {
			return nil, apperr.Validationf("team name must be at most %d characters", maxTeamNameLength)
		}
		upd.Name = &name
	}
	if upd.Whitelist != nil {
		cleaned := utils.CleanList(*upd.Whitelist)
		upd.Whitelist = &cleaned
	}
	return s.applyUpdate(ctx, teamID, upd)
}

// AddWhitelistEntry authorizes another golfer for a team. Creator only; adding
// an entry that is already present is a no-op.
func (s *Service) AddWhitelistEntry(ctx context.Context, teamID, userID uuid.UUID, entry string) (*models.Team, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, apperr.Validation("whitelist entry is required")
	}
	team, err := s.creatorTeam(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if utils.ContainsFold(team.Whitelist, entry) {
		return team, nil
	}
	wl := append(append([]string{}, team.Whitelist...), entry)
	return s.applyUpdate(ctx, teamID, models.TeamUpdate{Whitelist: &wl})
}

// RemoveWhitelistEntry withdraws an authorization. Creator only. Members
// already seated stay seated.
func (s *Service) RemoveWhitelistEntry(ctx context.Context, teamID, userID uuid.UUID, entry string) (*models.Team, error) {
	team, err := s.creatorTeam(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	wl, removed := utils.RemoveFold(team.Whitelist, entry)
	if !removed {
		return nil, apperr.ErrWhitelistEntryMissing
	}
	return s.applyUpdate(ctx, teamID, models.TeamUpdate{Whitelist: &wl})
}

// ListTeams returns every team, oldest first.
func (s *Service) ListTeams(ctx context.Context) ([]models.Team, error) {
	return s.store.ListTeams(ctx)
}

// GetTeam returns one team.
func (s *Service) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	return s.store.GetTeam(ctx, teamID)
}

func (s *Service) creatorTeam(ctx context.Context, teamID, userID uuid.UUID) (*models.Team, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.CreatorID != userID {
		return nil, apperr.ErrForbidden
	}
	return team, nil
}

func (s *Service) applyUpdate(ctx context.Context, teamID uuid.UUID, upd models.TeamUpdate) (*models.Team, error) {
	team, err := s.store.UpdateTeam(ctx, teamID, upd)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, EventTeamUpdated, team)
	return team, nil
}

func (s *Service) ownedSpot(ctx context.Context, spotID uuid.UUID) (*models.OwnedSpot, error) {
	spot, err := s.spots.GetSpot(ctx, spotID)
	if err != nil {
		if errors.Is(err, apperr.ErrSpotNotFound) {
			return nil, apperr.ErrSpotNotOwned
		}
		return nil, fmt.Errorf("load spot: %w", err)
	}
	return spot, nil
}
