package teams

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
)

func TestIsWhitelisted(t *testing.T) {
	wl := []string{"C@X.com", "Pat Doyle"}
	tests := []struct {
		name string
		spot models.Spot
		want bool
	}{
		{"email match ignores case", models.Spot{Name: "Someone", Email: "c@x.COM"}, true},
		{"name match ignores case", models.Spot{Name: "pat doyle", Email: "pd@y.com"}, true},
		{"surrounding space ignored", models.Spot{Name: "  Pat Doyle ", Email: "z@z.com"}, true},
		{"no match", models.Spot{Name: "Dana", Email: "d@x.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWhitelisted(wl, tt.spot))
		})
	}
	assert.False(t, IsWhitelisted(nil, models.Spot{Email: "a@x.com"}))
}

func TestCheckOwnership(t *testing.T) {
	owner := uuid.New()
	paid := &models.OwnedSpot{UserID: owner, PaymentStatus: models.PaymentStatusCompleted}
	assert.NoError(t, checkOwnership(paid, owner))
	assert.ErrorIs(t, checkOwnership(paid, uuid.New()), apperr.ErrSpotNotOwned)

	pending := &models.OwnedSpot{UserID: owner, PaymentStatus: models.PaymentStatusPending}
	assert.ErrorIs(t, checkOwnership(pending, owner), apperr.ErrSpotNotOwned)
	assert.ErrorIs(t, checkOwnership(nil, owner), apperr.ErrSpotNotOwned)
}

func TestCheckAdmission(t *testing.T) {
	spot := models.Spot{Name: "Dana", Email: "d@x.com"}
	assert.NoError(t, checkAdmission(&models.Team{}, spot))
	assert.ErrorIs(t, checkAdmission(&models.Team{IsPrivate: true, Whitelist: []string{"c@x.com"}}, spot), apperr.ErrNotWhitelisted)
	assert.NoError(t, checkAdmission(&models.Team{IsPrivate: true, Whitelist: []string{"dana"}}, spot))
}

func TestCheckPrivateCapacity(t *testing.T) {
	assert.NoError(t, checkPrivateCapacity(3, 1, 0))
	assert.NoError(t, checkPrivateCapacity(1, 3, 2))
	err := checkPrivateCapacity(2, 1, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.NotContains(t, apperr.Message(err), "ignored")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(checkPrivateCapacity(4, 1, 0)))

	err = checkPrivateCapacity(2, 1, 1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "1 duplicate or blank entries ignored")
}
