// Package testutil provides an in-memory implementation of every store
// interface so service tests can run without PostgreSQL. It mirrors the
// constraints the schema enforces: unique spot emails, one completed
// registration and one sponsor per user, one team per spot, the team
// capacity check, and the processed-event ledger.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/pkg/apperr"
	"github.com/golf-outing/backend/pkg/utils"
)

// MemStore is safe for concurrent use.
type MemStore struct {
	mu sync.Mutex

	registrations map[uuid.UUID]*models.Registration
	spotReg       map[uuid.UUID]uuid.UUID // spot -> registration
	teams         map[uuid.UUID]*models.Team
	spotTeam      map[uuid.UUID]uuid.UUID // spot -> team
	sponsors      map[uuid.UUID]*models.Sponsor
	events        map[string]models.ProcessedEvent

	failNext error
	now      func() time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		registrations: map[uuid.UUID]*models.Registration{},
		spotReg:       map[uuid.UUID]uuid.UUID{},
		teams:         map[uuid.UUID]*models.Team{},
		spotTeam:      map[uuid.UUID]uuid.UUID{},
		sponsors:      map[uuid.UUID]*models.Sponsor{},
		events:        map[string]models.ProcessedEvent{},
		now:           time.Now,
	}
}

// FailNext makes the next mutating call return err without changing state.
func (m *MemStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// SeedRegistration stores a completed registration for userID with one spot per
// details entry and returns a copy.
func (m *MemStore) SeedRegistration(userID uuid.UUID, details ...models.SpotDetails) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	reg := &models.Registration{
		ID:            uuid.New(),
		UserID:        userID,
		PaymentStatus: models.PaymentStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, d := range details {
		spot := models.Spot{ID: uuid.New(), RegistrationID: reg.ID, Name: d.Name, Phone: d.Phone, Email: d.Email, CreatedAt: now}
		reg.Spots = append(reg.Spots, spot)
		m.spotReg[spot.ID] = reg.ID
	}
	if len(details) > 0 {
		reg.Name, reg.Email, reg.Phone = details[0].Name, details[0].Email, details[0].Phone
	}
	m.registrations[reg.ID] = reg
	return copyRegistration(reg)
}

// ---- spots ----

// GetSpot returns a spot with its owner.
func (m *MemStore) GetSpot(_ context.Context, spotID uuid.UUID) (*models.OwnedSpot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	regID, ok := m.spotReg[spotID]
	if !ok {
		return nil, apperr.ErrSpotNotFound
	}
	reg := m.registrations[regID]
	for _, s := range reg.Spots {
		if s.ID == spotID {
			return &models.OwnedSpot{Spot: s, UserID: reg.UserID, PaymentStatus: reg.PaymentStatus}, nil
		}
	}
	return nil, apperr.ErrSpotNotFound
}

// TakenEmails returns the entries of emails already used by a spot other than exclude.
func (m *MemStore) TakenEmails(_ context.Context, emails []string, exclude uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range emails {
		if m.emailTakenLocked(e, exclude) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) emailTakenLocked(email string, exclude uuid.UUID) bool {
	k := utils.NormalizeKey(email)
	for _, reg := range m.registrations {
		for _, s := range reg.Spots {
			if s.ID != exclude && utils.NormalizeKey(s.Email) == k {
				return true
			}
		}
	}
	return false
}

// SpotsForUser lists the spots of the user's completed registration.
func (m *MemStore) SpotsForUser(_ context.Context, userID uuid.UUID) ([]models.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Spot{}
	if reg := m.completedLocked(userID); reg != nil {
		out = append(out, reg.Spots...)
	}
	return out, nil
}

// AllSpots lists every spot of every completed registration.
func (m *MemStore) AllSpots(_ context.Context) ([]models.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Spot{}
	for _, reg := range m.sortedRegistrationsLocked() {
		if reg.PaymentStatus == models.PaymentStatusCompleted {
			out = append(out, reg.Spots...)
		}
	}
	return out, nil
}

// UpdateSpot overwrites a spot's details.
func (m *MemStore) UpdateSpot(_ context.Context, spotID uuid.UUID, d models.SpotDetails) (*models.Spot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	regID, ok := m.spotReg[spotID]
	if !ok {
		return nil, apperr.ErrSpotNotFound
	}
	if m.emailTakenLocked(d.Email, spotID) {
		return nil, apperr.DuplicateEmail(d.Email)
	}
	reg := m.registrations[regID]
	for i := range reg.Spots {
		if reg.Spots[i].ID == spotID {
			reg.Spots[i].Name, reg.Spots[i].Phone, reg.Spots[i].Email = d.Name, d.Phone, d.Email
			s := reg.Spots[i]
			return &s, nil
		}
	}
	return nil, apperr.ErrSpotNotFound
}

// ---- registrations ----

// CompletedRegistration returns the user's completed registration.
func (m *MemStore) CompletedRegistration(_ context.Context, userID uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg := m.completedLocked(userID)
	if reg == nil {
		return nil, apperr.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

// RegistrationsForUser lists the user's registrations, oldest first.
func (m *MemStore) RegistrationsForUser(_ context.Context, userID uuid.UUID) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Registration{}
	for _, reg := range m.sortedRegistrationsLocked() {
		if reg.UserID == userID {
			out = append(out, *copyRegistration(reg))
		}
	}
	return out, nil
}

// GetRegistration returns a registration owned by userID.
func (m *MemStore) GetRegistration(_ context.Context, regID, userID uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.registrations[regID]
	if !ok || reg.UserID != userID {
		return nil, apperr.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

// InsertRegistration stores a new registration together with its spots.
func (m *MemStore) InsertRegistration(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if reg.PaymentStatus == models.PaymentStatusCompleted && m.completedLocked(reg.UserID) != nil {
		return apperr.ErrRegistrationExists
	}
	if err := m.checkNewSpotsLocked(reg.Spots); err != nil {
		return err
	}
	cp := copyRegistration(reg)
	m.registrations[cp.ID] = cp
	for _, s := range cp.Spots {
		m.spotReg[s.ID] = cp.ID
	}
	return nil
}

// UpdateRegistrationProfile overwrites the editable registration fields.
func (m *MemStore) UpdateRegistrationProfile(_ context.Context, regID, userID uuid.UUID, p models.RegistrationProfile) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	reg, ok := m.registrations[regID]
	if !ok || reg.UserID != userID {
		return nil, apperr.ErrRegistrationNotFound
	}
	if err := m.syncPrimarySpotLocked(reg, p); err != nil {
		return nil, err
	}
	applyProfile(reg, p)
	reg.UpdatedAt = m.now()
	return copyRegistration(reg), nil
}

// ListRegistrations returns every registration, oldest first.
func (m *MemStore) ListRegistrations(_ context.Context) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Registration{}
	for _, reg := range m.sortedRegistrationsLocked() {
		out = append(out, *copyRegistration(reg))
	}
	return out, nil
}

// ---- webhook ledger ----

// EventProcessed reports whether the event id is in the ledger.
func (m *MemStore) EventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

// ApplyRegistration merges paid spots into the payer's completed registration,
// or creates one.
func (m *MemStore) ApplyRegistration(_ context.Context, ev models.ProcessedEvent, p models.RegistrationPayment) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginEventLocked(ev); err != nil {
		return nil, err
	}
	if err := m.checkNewSpotsLocked(p.Spots); err != nil {
		return nil, err
	}
	now := m.now()
	reg := m.completedLocked(p.UserID)
	if reg != nil {
		if p.MaxSpots > 0 && len(reg.Spots)+len(p.Spots) > p.MaxSpots {
			return nil, apperr.ErrSpotLimitExceeded
		}
	} else {
		if p.MaxSpots > 0 && len(p.Spots) > p.MaxSpots {
			return nil, apperr.ErrSpotLimitExceeded
		}
		reg = &models.Registration{
			ID:            uuid.New(),
			UserID:        p.UserID,
			PaymentStatus: models.PaymentStatusCompleted,
			CreatedAt:     now,
		}
		if p.Profile != nil {
			applyProfile(reg, *p.Profile)
			if len(p.Spots) > 0 {
				id := p.Spots[0].ID
				reg.PrimarySpotID = &id
			}
		} else if len(p.Spots) > 0 {
			reg.Name, reg.Email, reg.Phone = p.Spots[0].Name, p.Spots[0].Email, p.Spots[0].Phone
		}
		m.registrations[reg.ID] = reg
	}
	for _, s := range p.Spots {
		s.RegistrationID = reg.ID
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		reg.Spots = append(reg.Spots, s)
		m.spotReg[s.ID] = reg.ID
	}
	reg.AmountPaidCents += p.AmountCents
	reg.StripeSessionID = p.SessionID
	reg.UpdatedAt = now
	m.recordEventLocked(ev)
	return copyRegistration(reg), nil
}

// ApplyRegistrationUpdate overwrites a registration's details after payment.
func (m *MemStore) ApplyRegistrationUpdate(_ context.Context, ev models.ProcessedEvent, p models.RegistrationUpdatePayment) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginEventLocked(ev); err != nil {
		return nil, err
	}
	reg, ok := m.registrations[p.RegistrationID]
	if !ok || reg.UserID != p.UserID {
		return nil, apperr.ErrRegistrationNotFound
	}
	if reg.PaymentStatus != models.PaymentStatusCompleted {
		if other := m.completedLocked(p.UserID); other != nil && other.ID != reg.ID {
			return nil, apperr.ErrRegistrationExists
		}
	}
	if err := m.syncPrimarySpotLocked(reg, p.Profile); err != nil {
		return nil, err
	}
	applyProfile(reg, p.Profile)
	reg.PaymentStatus = models.PaymentStatusCompleted
	reg.AmountPaidCents += p.AmountCents
	reg.StripeSessionID = p.SessionID
	reg.UpdatedAt = m.now()
	m.recordEventLocked(ev)
	return copyRegistration(reg), nil
}

// InsertSponsor stores a new sponsor; a second one for the same user conflicts.
func (m *MemStore) InsertSponsor(_ context.Context, ev models.ProcessedEvent, s *models.Sponsor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginEventLocked(ev); err != nil {
		return err
	}
	if _, ok := m.sponsors[s.UserID]; ok {
		return apperr.ErrSponsorExists
	}
	cp := copySponsor(s)
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	now := m.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.sponsors[s.UserID] = cp
	s.ID, s.CreatedAt, s.UpdatedAt = cp.ID, now, now
	m.recordEventLocked(ev)
	return nil
}

// UpgradeSponsor moves the user's sponsor to a new tier and returns the previous state.
func (m *MemStore) UpgradeSponsor(_ context.Context, ev models.ProcessedEvent, userID uuid.UUID, up models.SponsorUpgrade) (*models.Sponsor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginEventLocked(ev); err != nil {
		return nil, err
	}
	s, ok := m.sponsors[userID]
	if !ok {
		return nil, apperr.ErrSponsorNotFound
	}
	prev := copySponsor(s)
	s.Tier = up.Tier.Name
	s.PriceCents = up.Tier.PriceCents
	if strings.TrimSpace(up.Details.Name) != "" {
		s.Name, s.Logo, s.Text, s.WebsiteLink = up.Details.Name, up.Details.Logo, up.Details.Text, up.Details.WebsiteLink
	}
	if up.FreeGolfers != nil {
		s.FreeGolfers = append([]string{}, up.FreeGolfers...)
	}
	s.StripeSessionID = up.SessionID
	s.UpdatedAt = m.now()
	m.recordEventLocked(ev)
	return prev, nil
}

// ---- sponsors ----

// SponsorForUser returns the user's sponsor.
func (m *MemStore) SponsorForUser(_ context.Context, userID uuid.UUID) (*models.Sponsor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sponsors[userID]
	if !ok {
		return nil, apperr.ErrSponsorNotFound
	}
	return copySponsor(s), nil
}

// UpdateSponsorDetails overwrites the display fields and returns the state before and after.
func (m *MemStore) UpdateSponsorDetails(_ context.Context, userID uuid.UUID, d models.SponsorDetails) (prev, updated *models.Sponsor, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, nil, err
	}
	s, ok := m.sponsors[userID]
	if !ok {
		return nil, nil, apperr.ErrSponsorNotFound
	}
	prev = copySponsor(s)
	s.Name, s.Logo, s.Text, s.WebsiteLink = d.Name, d.Logo, d.Text, d.WebsiteLink
	s.UpdatedAt = m.now()
	return prev, copySponsor(s), nil
}

// ListSponsors returns every sponsor, oldest first.
func (m *MemStore) ListSponsors(_ context.Context) ([]models.Sponsor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Sponsor, 0, len(m.sponsors))
	for _, s := range m.sponsors {
		out = append(out, *copySponsor(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- teams ----

// CreateTeam stores a team with its initial members.
func (m *MemStore) CreateTeam(_ context.Context, team *models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if len(team.Members) > models.TeamCapacity {
		return apperr.ErrTeamFull
	}
	for _, mem := range team.Members {
		if _, ok := m.spotTeam[mem.SpotID]; ok {
			return apperr.ErrInsufficientSpots
		}
	}
	cp := copyTeam(team)
	m.teams[cp.ID] = cp
	for _, mem := range cp.Members {
		m.spotTeam[mem.SpotID] = cp.ID
	}
	return nil
}

// GetTeam returns one team.
func (m *MemStore) GetTeam(_ context.Context, id uuid.UUID) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, apperr.ErrTeamNotFound
	}
	return copyTeam(t), nil
}

// ListTeams returns every team, oldest first.
func (m *MemStore) ListTeams(_ context.Context) ([]models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, *copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TeamForSpot returns the team the spot is seated on.
func (m *MemStore) TeamForSpot(_ context.Context, spotID uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.spotTeam[spotID]
	return id, ok, nil
}

// AddTeamMember seats a member if the team has room and the spot is free.
func (m *MemStore) AddTeamMember(_ context.Context, teamID uuid.UUID, member models.TeamMember, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	t, ok := m.teams[teamID]
	if !ok {
		return apperr.ErrTeamNotFound
	}
	if len(t.Members) >= capacity {
		return apperr.ErrTeamFull
	}
	if _, ok := m.spotTeam[member.SpotID]; ok {
		return apperr.ErrSpotAlreadyAssigned
	}
	t.Members = append(t.Members, member)
	t.UpdatedAt = m.now()
	m.spotTeam[member.SpotID] = teamID
	return nil
}

// RemoveTeamMember unseats a member and deletes the team when it empties.
func (m *MemStore) RemoveTeamMember(_ context.Context, teamID, spotID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}
	t, ok := m.teams[teamID]
	if !ok {
		return false, apperr.ErrTeamNotFound
	}
	idx := -1
	for i, mem := range t.Members {
		if mem.SpotID == spotID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, apperr.ErrMemberNotFound
	}
	t.Members = append(t.Members[:idx], t.Members[idx+1:]...)
	delete(m.spotTeam, spotID)
	if len(t.Members) == 0 {
		delete(m.teams, teamID)
		return true, nil
	}
	t.UpdatedAt = m.now()
	return false, nil
}

// UpdateTeam applies the supplied fields.
func (m *MemStore) UpdateTeam(_ context.Context, teamID uuid.UUID, upd models.TeamUpdate) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := m.teams[teamID]
	if !ok {
		return nil, apperr.ErrTeamNotFound
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.IsPrivate != nil {
		t.IsPrivate = *upd.IsPrivate
	}
	if upd.Whitelist != nil {
		t.Whitelist = append([]string{}, (*upd.Whitelist)...)
	}
	t.UpdatedAt = m.now()
	return copyTeam(t), nil
}

// ---- admin ----

// Summary aggregates registrations, sponsors, and teams.
func (m *MemStore) Summary(_ context.Context) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.Summary
	for _, reg := range m.registrations {
		if reg.PaymentStatus != models.PaymentStatusCompleted {
			continue
		}
		s.Registrations++
		s.Spots += len(reg.Spots)
		s.ReservationCents += reg.AmountPaidCents
		if reg.IsFirstYearAlumni {
			s.FirstYearAlumniCount++
		}
		for _, sp := range reg.Spots {
			if _, ok := m.spotTeam[sp.ID]; !ok {
				s.UnassignedSpots++
			}
		}
	}
	for _, sp := range m.sponsors {
		s.Sponsors++
		s.SponsorshipCents += sp.PriceCents
	}
	for _, t := range m.teams {
		s.Teams++
		if len(t.Members) >= models.TeamCapacity {
			s.FullTeams++
		}
		if t.IsPrivate {
			s.PrivateTeams++
		}
	}
	return &s, nil
}

// ---- helpers ----

func (m *MemStore) completedLocked(userID uuid.UUID) *models.Registration {
	for _, reg := range m.registrations {
		if reg.UserID == userID && reg.PaymentStatus == models.PaymentStatusCompleted {
			return reg
		}
	}
	return nil
}

func (m *MemStore) sortedRegistrationsLocked() []*models.Registration {
	out := make([]*models.Registration, 0, len(m.registrations))
	for _, reg := range m.registrations {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemStore) checkNewSpotsLocked(spots []models.Spot) error {
	seen := map[string]struct{}{}
	for _, s := range spots {
		k := utils.NormalizeKey(s.Email)
		if _, dup := seen[k]; dup || m.emailTakenLocked(s.Email, uuid.Nil) {
			return apperr.DuplicateEmail(s.Email)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (m *MemStore) syncPrimarySpotLocked(reg *models.Registration, p models.RegistrationProfile) error {
	if reg.PrimarySpotID == nil {
		return nil
	}
	if m.emailTakenLocked(p.Email, *reg.PrimarySpotID) {
		return apperr.DuplicateEmail(p.Email)
	}
	for i := range reg.Spots {
		if reg.Spots[i].ID == *reg.PrimarySpotID {
			reg.Spots[i].Name, reg.Spots[i].Email, reg.Spots[i].Phone = p.Name, p.Email, p.Phone
		}
	}
	return nil
}

func (m *MemStore) beginEventLocked(ev models.ProcessedEvent) error {
	if err := m.takeFailure(); err != nil {
		return err
	}
	if ev.EventID == "" {
		return nil
	}
	if _, ok := m.events[ev.EventID]; ok {
		return apperr.ErrEventAlreadyProcessed
	}
	return nil
}

func (m *MemStore) recordEventLocked(ev models.ProcessedEvent) {
	if ev.EventID == "" {
		return
	}
	ev.ProcessedAt = m.now()
	m.events[ev.EventID] = ev
}

func applyProfile(reg *models.Registration, p models.RegistrationProfile) {
	reg.Name, reg.Email, reg.Phone = p.Name, p.Email, p.Phone
	reg.PreferredGolfers = append([]string{}, p.PreferredGolfers...)
	reg.PayForPreferred = append([]string{}, p.PayForPreferred...)
	reg.IsFirstYearAlumni = p.IsFirstYearAlumni
}

func copyRegistration(r *models.Registration) *models.Registration {
	cp := *r
	cp.Spots = append([]models.Spot{}, r.Spots...)
	cp.PreferredGolfers = append([]string{}, r.PreferredGolfers...)
	cp.PayForPreferred = append([]string{}, r.PayForPreferred...)
	if r.PrimarySpotID != nil {
		id := *r.PrimarySpotID
		cp.PrimarySpotID = &id
	}
	return &cp
}

func copyTeam(t *models.Team) *models.Team {
	cp := *t
	cp.Members = append([]models.TeamMember{}, t.Members...)
	cp.Whitelist = append([]string{}, t.Whitelist...)
	return &cp
}

func copySponsor(s *models.Sponsor) *models.Sponsor {
	cp := *s
	cp.FreeGolfers = append([]string{}, s.FreeGolfers...)
	return &cp
}
