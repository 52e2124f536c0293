package teams

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/testutil"
	"github.com/golf-outing/backend/pkg/apperr"
)

type recordedEvent struct {
	name    string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event, payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.name
	}
	return out
}

type fixture struct {
	store    *testutil.MemStore
	svc      *Service
	notifier *recordingNotifier
}

func newFixture() *fixture {
	store := testutil.NewMemStore()
	n := &recordingNotifier{}
	return &fixture{store: store, svc: NewService(store, store, n, nil), notifier: n}
}

// golfer seeds a completed registration with one spot and returns the payer and spot.
func (f *fixture) golfer(name, email string) (uuid.UUID, uuid.UUID) {
	user := uuid.New()
	reg := f.store.SeedRegistration(user, models.SpotDetails{Name: name, Email: email})
	return user, reg.Spots[0].ID
}

func (f *fixture) spots(user uuid.UUID, emails ...string) []uuid.UUID {
	details := make([]models.SpotDetails, len(emails))
	for i, e := range emails {
		details[i] = models.SpotDetails{Name: "Golfer " + e, Email: e}
	}
	reg := f.store.SeedRegistration(user, details...)
	ids := make([]uuid.UUID, len(reg.Spots))
	for i, s := range reg.Spots {
		ids[i] = s.ID
	}
	return ids
}

func TestCreateAndJoinPublicTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1, s1 := f.golfer("Alex", "a@x.com")
	u2, s2 := f.golfer("Blair", "b@x.com")

	team, err := f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Eagles", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)
	assert.Len(t, team.Members, 1)
	assert.Empty(t, team.Whitelist)

	team, err = f.svc.JoinTeam(ctx, team.ID, s2, u2)
	require.NoError(t, err)
	assert.Len(t, team.Members, 2)

	team, err = f.svc.JoinTeam(ctx, team.ID, s1, u1)
	require.NoError(t, err, "re-adding a seated spot is a no-op")
	assert.Len(t, team.Members, 2)

	assert.Equal(t, []string{EventTeamCreated, EventMemberJoined}, f.notifier.names())
}

func TestPublicTeamDropsWhitelist(t *testing.T) {
	f := newFixture()
	u1, s1 := f.golfer("Alex", "a@x.com")
	team, err := f.svc.CreateTeam(context.Background(), u1, CreateTeamRequest{
		Name: "Eagles", SpotIDs: []uuid.UUID{s1}, Whitelist: []string{"z@x.com"},
	})
	require.NoError(t, err)
	assert.Empty(t, team.Whitelist)
}

func TestCreatePrivateTeamCapacityEquation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	ids := f.spots(owner, "s1@x.com", "s2@x.com", "s3@x.com")

	_, err := f.svc.CreateTeam(ctx, owner, CreateTeamRequest{
		Name: "Birdies", IsPrivate: true, SpotIDs: ids[:2], Whitelist: []string{"c@x.com"},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.CreateTeam(ctx, owner, CreateTeamRequest{
		Name: "Birdies", IsPrivate: true, SpotIDs: ids[:2], Whitelist: []string{"c@x.com", " C@X.com ", ""},
	})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err), "repeated and blank entries do not reserve seats")
	assert.Contains(t, apperr.Message(err), "2 duplicate or blank entries ignored")

	team, err := f.svc.CreateTeam(ctx, owner, CreateTeamRequest{
		Name: "Birdies", IsPrivate: true, SpotIDs: ids, Whitelist: []string{"c@x.com", "C@x.com"},
	})
	require.NoError(t, err)
	assert.Len(t, team.Members, 3)
	assert.Equal(t, []string{"c@x.com"}, team.Whitelist)
}

func TestPrivateTeamAdmission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	wl := []string{"c@x.com", "Pat Doyle"}
	ids := f.spots(owner, "s1@x.com", "s2@x.com")
	team, err := f.svc.CreateTeam(ctx, owner, CreateTeamRequest{Name: "Birdies", IsPrivate: true, SpotIDs: ids, Whitelist: wl})
	require.NoError(t, err)

	uD, sD := f.golfer("Dana", "d@x.com")
	_, err = f.svc.JoinTeam(ctx, team.ID, sD, uD)
	assert.ErrorIs(t, err, apperr.ErrNotWhitelisted)
	got, err := f.svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2, "rejected join leaves members unchanged")

	uC, sC := f.golfer("Casey", "C@X.com")
	got, err = f.svc.JoinTeam(ctx, team.ID, sC, uC)
	require.NoError(t, err)
	assert.Len(t, got.Members, 3)

	uP, sP := f.golfer("pat doyle", "pat@elsewhere.com")
	got, err = f.svc.JoinTeam(ctx, team.ID, sP, uP)
	require.NoError(t, err, "name match admits")
	assert.True(t, got.IsFull())
}

func TestJoinTeamFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	ids := f.spots(owner, "s1@x.com", "s2@x.com", "s3@x.com", "s4@x.com")
	full, err := f.svc.CreateTeam(ctx, owner, CreateTeamRequest{Name: "Full", SpotIDs: ids})
	require.NoError(t, err)

	u1, s1 := f.golfer("Alex", "a@x.com")
	open, err := f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Open", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)

	u2, s2 := f.golfer("Blair", "b@x.com")

	_, err = f.svc.JoinTeam(ctx, uuid.New(), s2, u2)
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound)

	_, err = f.svc.JoinTeam(ctx, full.ID, s2, u2)
	assert.ErrorIs(t, err, apperr.ErrTeamFull)

	_, err = f.svc.JoinTeam(ctx, open.ID, s2, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned, "someone else's spot")

	_, err = f.svc.JoinTeam(ctx, open.ID, uuid.New(), u2)
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned, "unknown spot")

	_, err = f.svc.JoinTeam(ctx, open.ID, s1, u2)
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned, "seated spot re-added by a stranger")
	_, err = f.svc.JoinTeam(ctx, full.ID, ids[0], u2)
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned, "stranger on a full team")
	again, err := f.svc.JoinTeam(ctx, open.ID, s1, u1)
	require.NoError(t, err, "owner re-adding a seated spot")
	assert.Len(t, again.Members, 1)

	other, err := f.svc.CreateTeam(ctx, u2, CreateTeamRequest{Name: "Other", SpotIDs: []uuid.UUID{s2}})
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, open.ID, s2, u2)
	assert.ErrorIs(t, err, apperr.ErrSpotAlreadyAssigned)
	assert.NotEqual(t, open.ID, other.ID)
}

func TestCreateTeamRejectsAssignedSpot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1, s1 := f.golfer("Alex", "a@x.com")
	_, err := f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "One", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)

	_, err = f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Two", SpotIDs: []uuid.UUID{s1}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientSpots)

	teams, err := f.svc.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestCreateTeamValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1, s1 := f.golfer("Alex", "a@x.com")

	cases := map[string]CreateTeamRequest{
		"blank name":     {Name: "  ", SpotIDs: []uuid.UUID{s1}},
		"no spots":       {Name: "Eagles"},
		"duplicate spot": {Name: "Eagles", SpotIDs: []uuid.UUID{s1, s1}},
		"too many spots": {Name: "Eagles", SpotIDs: []uuid.UUID{s1, uuid.New(), uuid.New(), uuid.New(), uuid.New()}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateTeam(ctx, u1, req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	_, err := f.svc.CreateTeam(ctx, uuid.New(), CreateTeamRequest{Name: "Eagles", SpotIDs: []uuid.UUID{s1}})
	assert.ErrorIs(t, err, apperr.ErrSpotNotOwned)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u0, s0 := f.golfer("Host", "host@x.com")
	team, err := f.svc.CreateTeam(ctx, u0, CreateTeamRequest{Name: "Race", SpotIDs: []uuid.UUID{s0}})
	require.NoError(t, err)

	const joiners = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	joined, full := 0, 0
	for i := 0; i < joiners; i++ {
		u, s := f.golfer("Golfer", uuid.NewString()+"@x.com")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.JoinTeam(ctx, team.ID, s, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, apperr.ErrTeamFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, models.TeamCapacity-1, joined)
	assert.Equal(t, joiners-joined, full)
	got, err := f.svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, models.TeamCapacity)
}

func TestLeaveTeamDeletesEmptiedTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1, s1 := f.golfer("Alex", "a@x.com")
	team, err := f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Solo", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)

	deleted, err := f.svc.LeaveTeam(ctx, team.ID, s1, u1)
	require.NoError(t, err)
	assert.True(t, deleted)

	teams, err := f.svc.ListTeams(ctx)
	require.NoError(t, err)
	for _, tm := range teams {
		assert.NotEqual(t, team.ID, tm.ID)
	}
	_, err = f.svc.GetTeam(ctx, team.ID)
	assert.ErrorIs(t, err, apperr.ErrTeamNotFound)
	assert.Contains(t, f.notifier.names(), EventTeamDeleted)

	// The freed spot can seed a new team.
	_, err = f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Again", SpotIDs: []uuid.UUID{s1}})
	assert.NoError(t, err)
}

func TestLeaveTeamPermissions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator, s1 := f.golfer("Alex", "a@x.com")
	u2, s2 := f.golfer("Blair", "b@x.com")
	u3, s3 := f.golfer("Casey", "c@x.com")
	team, err := f.svc.CreateTeam(ctx, creator, CreateTeamRequest{Name: "Eagles", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, team.ID, s2, u2)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, team.ID, s3, u3)
	require.NoError(t, err)

	_, err = f.svc.LeaveTeam(ctx, team.ID, s2, u3)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	deleted, err := f.svc.LeaveTeam(ctx, team.ID, s2, u2)
	require.NoError(t, err, "owner may remove their spot")
	assert.False(t, deleted)

	_, err = f.svc.LeaveTeam(ctx, team.ID, s3, creator)
	require.NoError(t, err, "creator may remove any member")

	_, err = f.svc.LeaveTeam(ctx, team.ID, s3, creator)
	assert.ErrorIs(t, err, apperr.ErrMemberNotFound)

	got, err := f.svc.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 1)
}

func TestUpdateTeamDetails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creator, s1 := f.golfer("Alex", "a@x.com")
	u2, s2 := f.golfer("Blair", "b@x.com")
	team, err := f.svc.CreateTeam(ctx, creator, CreateTeamRequest{Name: "Eagles", SpotIDs: []uuid.UUID{s1}})
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, team.ID, s2, u2)
	require.NoError(t, err)

	_, err = f.svc.UpdateTeamDetails(ctx, team.ID, creator, models.TeamUpdate{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	name := "Albatross"
	_, err = f.svc.UpdateTeamDetails(ctx, team.ID, u2, models.TeamUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := f.svc.UpdateTeamDetails(ctx, team.ID, creator, models.TeamUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Albatross", got.Name)
	assert.False(t, got.IsPrivate, "rename leaves privacy alone")

	private := true
	wl := []string{" z@x.com ", "Z@x.com", ""}
	got, err = f.svc.UpdateTeamDetails(ctx, team.ID, creator, models.TeamUpdate{IsPrivate: &private, Whitelist: &wl})
	require.NoError(t, err)
	assert.True(t, got.IsPrivate)
	assert.Equal(t, []string{"z@x.com"}, got.Whitelist)
	assert.True(t, got.HasMember(s2), "seated members are not re-checked")

	blank := " "
	_, err = f.svc.UpdateTeamDetails(ctx, team.ID, creator, models.TeamUpdate{Name: &blank})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestWhitelistEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.New()
	ids := f.spots(owner, "s1@x.com", "s2@x.com", "s3@x.com")
	team, err := f.svc.CreateTeam(ctx, owner, CreateTeamRequest{Name: "Birdies", IsPrivate: true, SpotIDs: ids, Whitelist: []string{"c@x.com"}})
	require.NoError(t, err)

	got, err := f.svc.AddWhitelistEntry(ctx, team.ID, owner, "d@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"c@x.com", "d@x.com"}, got.Whitelist)

	got, err = f.svc.AddWhitelistEntry(ctx, team.ID, owner, "D@X.COM")
	require.NoError(t, err)
	assert.Len(t, got.Whitelist, 2)

	_, err = f.svc.AddWhitelistEntry(ctx, team.ID, uuid.New(), "e@x.com")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err = f.svc.RemoveWhitelistEntry(ctx, team.ID, owner, "C@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"d@x.com"}, got.Whitelist)

	_, err = f.svc.RemoveWhitelistEntry(ctx, team.ID, owner, "c@x.com")
	assert.ErrorIs(t, err, apperr.ErrWhitelistEntryMissing)

	uC, sC := f.golfer("Casey", "c@x.com")
	_, err = f.svc.JoinTeam(ctx, team.ID, sC, uC)
	assert.ErrorIs(t, err, apperr.ErrNotWhitelisted, "removed entries no longer admit")
}

func TestStoreFailurePropagates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u1, s1 := f.golfer("Alex", "a@x.com")
	boom := errors.New("connection reset")
	f.store.FailNext(boom)
	_, err := f.svc.CreateTeam(ctx, u1, CreateTeamRequest{Name: "Eagles", SpotIDs: []uuid.UUID{s1}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
