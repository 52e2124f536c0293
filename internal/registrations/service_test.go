package registrations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/internal/testutil"
	"github.com/golf-outing/backend/pkg/apperr"
)

const (
	price = 15000
	phone = "555-010-0199"
)

func newTestService() (*Service, *testutil.MemStore, *testutil.FakeGateway) {
	store := testutil.NewMemStore()
	gw := &testutil.FakeGateway{}
	svc := NewService(store, gw, Config{
		EventName:        "Charity Classic",
		SpotPriceCents:   price,
		MaxSpotsPerPayer: 4,
		Redirects:        payments.NewRedirects("https://outing.test", "registration"),
	}, nil)
	return svc, store, gw
}

func TestReserveSpotsOpensCheckout(t *testing.T) {
	svc, _, gw := newTestService()
	user := uuid.New()
	res, err := svc.ReserveSpots(context.Background(), user, "payer@x.com", []models.SpotDetails{
		{Name: " Alex ", Email: "a@x.com"},
		{Name: "Blair", Email: "b@x.com", Phone: "555"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2*price), res.AmountCents)
	assert.NotEmpty(t, res.URL)

	p := gw.Last()
	assert.Equal(t, int64(2*price), p.AmountCents)
	assert.Equal(t, "payer@x.com", p.CustomerEmail)
	md, err := payments.DecodeMetadata(p.Metadata)
	require.NoError(t, err)
	assert.Equal(t, payments.KindRegistration, md.Kind)
	assert.Equal(t, user, md.UserID)
	require.Len(t, md.Spots, 2)
	assert.Equal(t, "Alex", md.Spots[0].Name)
}

func TestReserveSpotsValidation(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	user := uuid.New()
	store.SeedRegistration(user, models.SpotDetails{Name: "A", Email: "a@x.com"}, models.SpotDetails{Name: "B", Email: "b@x.com"}, models.SpotDetails{Name: "C", Email: "c@x.com"})

	_, err := svc.ReserveSpots(ctx, user, "", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.ReserveSpots(ctx, user, "", []models.SpotDetails{{Name: "D", Email: "d@x.com"}, {Name: "E", Email: "e@x.com"}})
	assert.ErrorIs(t, err, apperr.ErrSpotLimitExceeded)

	other := uuid.New()
	_, err = svc.ReserveSpots(ctx, other, "", []models.SpotDetails{{Name: "Dup", Email: "A@X.com"}})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	_, err = svc.ReserveSpots(ctx, other, "", []models.SpotDetails{{Name: "D", Email: "d@x.com"}, {Name: "D2", Email: "D@x.com"}})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail, "duplicates within the batch")

	_, err = svc.ReserveSpots(ctx, other, "", []models.SpotDetails{{Name: "", Email: "d@x.com"}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	for _, bad := range []string{"not-an-email", "d@@x.com", "d@x"} {
		_, err = svc.ReserveSpots(ctx, other, "", []models.SpotDetails{{Name: "D", Email: bad}})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), bad)
	}

	assert.Empty(t, gw.Sessions)
}

func TestCheckoutRegistrationNew(t *testing.T) {
	svc, _, gw := newTestService()
	user := uuid.New()
	profile := models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone,
		PreferredGolfers: []string{"Blair", "Casey"},
		PayForPreferred:  []string{"blair"},
	}
	res, err := svc.CheckoutRegistration(context.Background(), user, CheckoutRequest{Profile: profile})
	require.NoError(t, err)
	assert.Equal(t, int64(2*price), res.AmountCents)

	md, err := payments.DecodeMetadata(gw.Last().Metadata)
	require.NoError(t, err)
	assert.Equal(t, payments.KindRegistration, md.Kind)
	require.Len(t, md.Spots, 1)
	assert.Equal(t, "a@x.com", md.Spots[0].Email)
	require.NotNil(t, md.Profile)
	assert.Equal(t, []string{"blair"}, md.Profile.PayForPreferred)
}

func TestCheckoutRegistrationRules(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.CheckoutRegistration(ctx, user, CheckoutRequest{Profile: models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone, PayForPreferred: []string{"Stranger"},
	}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "paid golfer must be preferred")

	_, err = svc.CheckoutRegistration(ctx, user, CheckoutRequest{Profile: models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true,
	}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "nothing to pay")

	store.SeedRegistration(user, models.SpotDetails{Name: "Alex", Email: "a@x.com"})
	_, err = svc.CheckoutRegistration(ctx, user, CheckoutRequest{Profile: models.RegistrationProfile{Name: "Alex", Email: "new@x.com", Phone: phone}})
	assert.ErrorIs(t, err, apperr.ErrRegistrationExists)

	_, err = svc.CheckoutRegistration(ctx, uuid.New(), CheckoutRequest{Profile: models.RegistrationProfile{Name: "Copy", Email: "A@x.com", Phone: phone}})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	missing := uuid.New()
	_, err = svc.CheckoutRegistration(ctx, user, CheckoutRequest{RegistrationID: &missing, Profile: models.RegistrationProfile{Name: "Alex", Email: "a@x.com", Phone: phone}})
	assert.ErrorIs(t, err, apperr.ErrRegistrationNotFound)
}

func TestRegistrantRules(t *testing.T) {
	svc, store, gw := newTestService()
	ctx := context.Background()
	user := uuid.New()

	tests := []struct {
		name    string
		profile models.RegistrationProfile
	}{
		{"no phone", models.RegistrationProfile{Name: "Alex", Email: "a@x.com", IsFirstYearAlumni: true}},
		{"short phone", models.RegistrationProfile{Name: "Alex", Email: "a@x.com", Phone: "555-0199", IsFirstYearAlumni: true}},
		{"too many preferred", models.RegistrationProfile{
			Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true,
			PreferredGolfers: []string{"B", "C", "D", "E", "F", "G"},
		}},
		{"malformed email", models.RegistrationProfile{Name: "Alex", Email: "a@@x.com", Phone: phone, IsFirstYearAlumni: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterFree(ctx, user, tt.profile)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

			paid := tt.profile
			paid.IsFirstYearAlumni = false
			_, err = svc.CheckoutRegistration(ctx, user, CheckoutRequest{Profile: paid})
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	regs, err := store.RegistrationsForUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.Empty(t, gw.Sessions)

	reg, err := svc.RegisterFree(ctx, user, models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true,
		PreferredGolfers: []string{"B", "C", "D", "c"},
	})
	require.NoError(t, err, "case-insensitive duplicates collapse to three")
	assert.Equal(t, []string{"B", "C", "D"}, reg.PreferredGolfers)
}

func TestFreeRegistrationThenPaidUpdate(t *testing.T) {
	svc, _, gw := newTestService()
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.RegisterFree(ctx, user, models.RegistrationProfile{Name: "Alex", Email: "a@x.com", Phone: phone})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "alumni only")

	reg, err := svc.RegisterFree(ctx, user, models.RegistrationProfile{Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true, PreferredGolfers: []string{"Blair"}})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, reg.PaymentStatus)
	assert.Zero(t, reg.AmountPaidCents)
	require.Len(t, reg.Spots, 1)
	require.NotNil(t, reg.PrimarySpotID)

	has, err := svc.HasSpots(ctx, user)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = svc.RegisterFree(ctx, user, models.RegistrationProfile{Name: "Alex", Email: "a2@x.com", Phone: phone, IsFirstYearAlumni: true})
	assert.ErrorIs(t, err, apperr.ErrRegistrationExists)

	// Paying for Blair now costs one spot.
	res, err := svc.CheckoutRegistration(ctx, user, CheckoutRequest{
		RegistrationID: &reg.ID,
		Profile: models.RegistrationProfile{
			Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true,
			PreferredGolfers: []string{"Blair"}, PayForPreferred: []string{"Blair"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(price), res.AmountCents)
	md, err := payments.DecodeMetadata(gw.Last().Metadata)
	require.NoError(t, err)
	assert.Equal(t, payments.KindRegistrationUpdate, md.Kind)
	assert.Equal(t, reg.ID, md.RegistrationID)

	_, err = svc.UpdateRegistration(ctx, user, reg.ID, models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true,
		PreferredGolfers: []string{"Blair"}, PayForPreferred: []string{"Blair"},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "unpaid change must go through checkout")
}

func TestUpdateRegistrationSyncsPrimarySpot(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	user := uuid.New()
	reg, err := svc.RegisterFree(ctx, user, models.RegistrationProfile{Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true})
	require.NoError(t, err)

	got, err := svc.UpdateRegistration(ctx, user, reg.ID, models.RegistrationProfile{
		Name: "Alex Smith", Email: "alex@x.com", Phone: "555-010-0142", IsFirstYearAlumni: true, PreferredGolfers: []string{"Pat"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alex Smith", got.Name)
	assert.Equal(t, []string{"Pat"}, got.PreferredGolfers)
	require.Len(t, got.Spots, 1)
	assert.Equal(t, "alex@x.com", got.Spots[0].Email)

	_, err = svc.UpdateRegistration(ctx, uuid.New(), reg.ID, models.RegistrationProfile{Name: "X", Email: "x@x.com", Phone: phone, IsFirstYearAlumni: true})
	assert.ErrorIs(t, err, apperr.ErrRegistrationNotFound)
}

func TestRemovePreferredGolfer(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	user := uuid.New()
	reg, err := svc.RegisterFree(ctx, user, models.RegistrationProfile{
		Name: "Alex", Email: "a@x.com", Phone: phone, IsFirstYearAlumni: true, PreferredGolfers: []string{"Blair", "Casey"},
	})
	require.NoError(t, err)

	got, err := svc.RemovePreferredGolfer(ctx, user, reg.ID, "casey")
	require.NoError(t, err)
	assert.Equal(t, []string{"Blair"}, got.PreferredGolfers)

	_, err = svc.RemovePreferredGolfer(ctx, user, reg.ID, "Nobody")
	assert.ErrorIs(t, err, apperr.ErrGolferNotFound)

	paid := store.SeedRegistration(uuid.New(), models.SpotDetails{Name: "P", Email: "p@x.com"})
	_, err = store.UpdateRegistrationProfile(ctx, paid.ID, paid.UserID, models.RegistrationProfile{
		Name: "P", Email: "p@x.com", PreferredGolfers: []string{"Q"}, PayForPreferred: []string{"Q"},
	})
	require.NoError(t, err)
	_, err = svc.RemovePreferredGolfer(ctx, paid.UserID, paid.ID, "q")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestEditSpot(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	user := uuid.New()
	reg := store.SeedRegistration(user, models.SpotDetails{Name: "A", Email: "a@x.com"}, models.SpotDetails{Name: "B", Email: "b@x.com"})
	spotA := reg.Spots[0].ID

	got, err := svc.EditSpot(ctx, user, spotA, models.SpotDetails{Name: "Alex", Email: "A@x.com"})
	require.NoError(t, err, "a spot may keep its own email in a different case")
	assert.Equal(t, "Alex", got.Name)

	_, err = svc.EditSpot(ctx, user, spotA, models.SpotDetails{Name: "Alex", Email: "b@x.com"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)

	_, err = svc.EditSpot(ctx, uuid.New(), spotA, models.SpotDetails{Name: "Thief", Email: "t@x.com"})
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned)

	_, err = svc.EditSpot(ctx, user, uuid.New(), models.SpotDetails{Name: "Ghost", Email: "g@x.com"})
	assert.ErrorIs(t, err, apperr.ErrSpotNotFound)

	all, err := svc.AllSpots(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGatewayFailureSurfacesAsUpstream(t *testing.T) {
	svc, _, gw := newTestService()
	gw.Err = apperr.Upstream("payment provider unavailable", assert.AnError)
	_, err := svc.ReserveSpots(context.Background(), uuid.New(), "", []models.SpotDetails{{Name: "A", Email: "a@x.com"}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
