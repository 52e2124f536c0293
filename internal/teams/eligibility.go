package teams

import (
	"github.com/google/uuid"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/utils"
)

// IsWhitelisted reports whether the spot's email or name matches a whitelist
// entry, ignoring case. Organizers often know a golfer's name but not the
// address they registered with, so either key admits.
func IsWhitelisted(whitelist []string, spot models.Spot) bool {
	return utils.ContainsFold(whitelist, spot.Email) || utils.ContainsFold(whitelist, spot.Name)
}

// checkOwnership requires spot to belong to a completed registration paid by userID.
func checkOwnership(spot *models.OwnedSpot, userID uuid.UUID) error {
	if spot == nil || !spot.Completed() || spot.UserID != userID {
		return apperr.ErrSpotNotOwned
	}
	return nil
}

// checkAdmission applies the private-team whitelist. Public teams admit anyone.
func checkAdmission(team *models.Team, spot models.Spot) error {
	if team.IsPrivate && !IsWhitelisted(team.Whitelist, spot) {
		return apperr.ErrNotWhitelisted
	}
	return nil
}

// checkPrivateCapacity enforces that a private team reserves all of its seats
// between initial members and whitelisted joiners. whitelist counts entries
// after blanks and case-insensitive duplicates are dropped; ignored is how
// many were dropped.
func checkPrivateCapacity(members, whitelist, ignored int) error {
	if members+whitelist == models.TeamCapacity {
		return nil
	}
	if ignored > 0 {
		return apperr.Validationf("a private team needs initial spots plus distinct whitelist entries to equal %d (got %d + %d; %d duplicate or blank entries ignored)",
			models.TeamCapacity, members, whitelist, ignored)
	}
	return apperr.Validationf("a private team needs initial spots plus whitelist entries to equal %d (got %d + %d)",
		models.TeamCapacity, members, whitelist)
}
