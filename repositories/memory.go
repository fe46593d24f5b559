package repositories

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/lanparty/models"
)

type registrationKey struct {
	userID  int
	eventID int
}

type memoryData struct {
	users         map[int]models.User
	events        map[int]models.Event
	registrations map[registrationKey]models.Registration
	tournaments   map[int]models.Tournament
	teams         map[int]models.Team

	nextUserID       int
	nextEventID      int
	nextTournamentID int
	nextTeamID       int
}

func (d *memoryData) clone() memoryData {
	c := memoryData{
		users:            make(map[int]models.User, len(d.users)),
		events:           make(map[int]models.Event, len(d.events)),
		registrations:    make(map[registrationKey]models.Registration, len(d.registrations)),
		tournaments:      make(map[int]models.Tournament, len(d.tournaments)),
		teams:            make(map[int]models.Team, len(d.teams)),
		nextUserID:       d.nextUserID,
		nextEventID:      d.nextEventID,
		nextTournamentID: d.nextTournamentID,
		nextTeamID:       d.nextTeamID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.registrations {
		c.registrations[k] = v
	}
	for k, v := range d.tournaments {
		c.tournaments[k] = v
	}
	for k, v := range d.teams {
		v.Members = slices.Clone(v.Members)
		c.teams[k] = v
	}
	return c
}

// MemoryStore keeps every entity in process memory. It backs the test suites and the
// "memory" storage mode used for local runs without PostgreSQL. Transactions are serialized
// and roll back by restoring a snapshot taken when they began.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data memoryData
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memoryData{
			users:         make(map[int]models.User),
			events:        make(map[int]models.Event),
			registrations: make(map[registrationKey]models.Registration),
			tournaments:   make(map[int]models.Tournament),
			teams:         make(map[int]models.Team),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		p := recover()
		if err != nil || p != nil {
			s.mu.Lock()
			s.data = snapshot
			s.mu.Unlock()
		}
		if p != nil {
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(nil)
}

func (s *MemoryStore) Users() UserRepository                 { return memoryUsers{s} }
func (s *MemoryStore) Events() EventRepository               { return memoryEvents{s} }
func (s *MemoryStore) Registrations() RegistrationRepository { return memoryRegistrations{s} }
func (s *MemoryStore) Tournaments() TournamentRepository     { return memoryTournaments{s} }
func (s *MemoryStore) Teams() TeamRepository                 { return memoryTeams{s} }

// --- users ---

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) usernameTaken(username string, exceptID int) bool {
	for _, u := range r.s.data.users {
		if u.ID != exceptID && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func (r memoryUsers) Create(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.usernameTaken(u.Username, 0) {
		return ErrUsernameConflict
	}
	r.s.data.nextUserID++
	u.ID = r.s.data.nextUserID
	u.CreatedAt = r.s.now()
	r.s.data.users[u.ID] = *u
	return nil
}

func (r memoryUsers) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r memoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.data.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r memoryUsers) List(ctx context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]models.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

func (r memoryUsers) Update(ctx context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.data.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	if r.usernameTaken(u.Username, u.ID) {
		return ErrUsernameConflict
	}
	current.Username = u.Username
	current.DisplayName = u.DisplayName
	current.PasswordHash = u.PasswordHash
	current.IsAdmin = u.IsAdmin
	r.s.data.users[u.ID] = current
	return nil
}

func (r memoryUsers) UpdatePictureKey(ctx context.Context, id int, key *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PictureKey = key
	r.s.data.users[id] = u
	return nil
}

func (r memoryUsers) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.users[id]; !ok {
		return ErrUserNotFound
	}
	for k := range r.s.data.registrations {
		if k.userID == id {
			return ErrUserInUse
		}
	}
	delete(r.s.data.users, id)
	return nil
}

func (r memoryUsers) CountAdmins(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, u := range r.s.data.users {
		if u.IsAdmin {
			n++
		}
	}
	return n, nil
}

// --- events ---

type memoryEvents struct{ s *MemoryStore }

func (r memoryEvents) shortNameTaken(shortName string, exceptID int) bool {
	for _, e := range r.s.data.events {
		if e.ID != exceptID && e.ShortName == shortName {
			return true
		}
	}
	return false
}

func (r memoryEvents) Create(ctx context.Context, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.shortNameTaken(e.ShortName, 0) {
		return ErrEventShortNameTaken
	}
	r.s.data.nextEventID++
	e.ID = r.s.data.nextEventID
	e.CreatedAt = r.s.now()
	r.s.data.events[e.ID] = *e
	return nil
}

func (r memoryEvents) GetByID(ctx context.Context, id int) (*models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.data.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (r memoryEvents) List(ctx context.Context) ([]models.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	events := make([]models.Event, 0, len(r.s.data.events))
	for _, e := range r.s.data.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartAt.After(events[j].StartAt) })
	return events, nil
}

func (r memoryEvents) Update(ctx context.Context, e *models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.data.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	if r.shortNameTaken(e.ShortName, e.ID) {
		return ErrEventShortNameTaken
	}
	current.Name = e.Name
	current.ShortName = e.ShortName
	current.StartAt = e.StartAt
	current.EndAt = e.EndAt
	r.s.data.events[e.ID] = current
	return nil
}

func (r memoryEvents) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.s.data.events, id)
	for k := range r.s.data.registrations {
		if k.eventID == id {
			delete(r.s.data.registrations, k)
		}
	}
	for tid, t := range r.s.data.tournaments {
		if t.EventID == id {
			r.s.deleteTournamentLocked(tid)
		}
	}
	return nil
}

// --- registrations ---

type memoryRegistrations struct{ s *MemoryStore }

func (r memoryRegistrations) Get(ctx context.Context, exec SQLExecutor, userID, eventID int) (*models.Registration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reg, ok := r.s.data.registrations[registrationKey{userID, eventID}]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return &reg, nil
}

func (r memoryRegistrations) list(keep func(models.Registration) bool, less func(a, b models.Registration) bool) []models.Registration {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	regs := make([]models.Registration, 0)
	for _, reg := range r.s.data.registrations {
		if keep(reg) {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return less(regs[i], regs[j]) })
	return regs
}

func (r memoryRegistrations) ListByEvent(ctx context.Context, eventID int) ([]models.Registration, error) {
	return r.list(
		func(reg models.Registration) bool { return reg.EventID == eventID },
		func(a, b models.Registration) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.UserID < b.UserID
		},
	), nil
}

func (r memoryRegistrations) ListByUser(ctx context.Context, userID int) ([]models.Registration, error) {
	return r.list(
		func(reg models.Registration) bool { return reg.UserID == userID },
		func(a, b models.Registration) bool { return a.EventID < b.EventID },
	), nil
}

func (r memoryRegistrations) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.users[reg.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := r.s.data.events[reg.EventID]; !ok {
		return ErrEventNotFound
	}
	key := registrationKey{reg.UserID, reg.EventID}
	if _, ok := r.s.data.registrations[key]; ok {
		return ErrRegistrationConflict
	}
	reg.CreatedAt = r.s.now()
	r.s.data.registrations[key] = *reg
	return nil
}

func (r memoryRegistrations) Update(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := registrationKey{reg.UserID, reg.EventID}
	current, ok := r.s.data.registrations[key]
	if !ok {
		return ErrRegistrationNotFound
	}
	current.Role = reg.Role
	current.ArrivalAt = reg.ArrivalAt
	current.DepartureAt = reg.DepartureAt
	current.Score = reg.Score
	r.s.data.registrations[key] = current
	return nil
}

func (r memoryRegistrations) Delete(ctx context.Context, exec SQLExecutor, userID, eventID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := registrationKey{userID, eventID}
	if _, ok := r.s.data.registrations[key]; !ok {
		return ErrRegistrationNotFound
	}
	delete(r.s.data.registrations, key)

	for id, team := range r.s.data.teams {
		t, ok := r.s.data.tournaments[team.TournamentID]
		if !ok || t.EventID != eventID {
			continue
		}
		if i := slices.Index(team.Members, userID); i >= 0 {
			team.Members = slices.Delete(slices.Clone(team.Members), i, i+1)
			r.s.data.teams[id] = team
		}
	}
	return nil
}

func (r memoryRegistrations) AddScore(ctx context.Context, exec SQLExecutor, userID, eventID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := registrationKey{userID, eventID}
	reg, ok := r.s.data.registrations[key]
	if !ok {
		return ErrRegistrationNotFound
	}
	reg.Score += delta
	r.s.data.registrations[key] = reg
	return nil
}

// --- tournaments ---

type memoryTournaments struct{ s *MemoryStore }

func (r memoryTournaments) shortNameTaken(eventID int, shortName string, exceptID int) bool {
	for _, t := range r.s.data.tournaments {
		if t.ID != exceptID && t.EventID == eventID && t.ShortName == shortName {
			return true
		}
	}
	return false
}

func (r memoryTournaments) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.events[t.EventID]; !ok {
		return ErrTournamentEventInvalid
	}
	if r.shortNameTaken(t.EventID, t.ShortName, 0) {
		return ErrTournamentShortNameTaken
	}
	r.s.data.nextTournamentID++
	t.ID = r.s.data.nextTournamentID
	t.CreatedAt = r.s.now()

	stored := *t
	stored.Teams = nil
	stored.TeamCount = 0
	stored.BackgroundURL = nil
	r.s.data.tournaments[t.ID] = stored
	return nil
}

func (r memoryTournaments) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.data.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return &t, nil
}

func (r memoryTournaments) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memoryTournaments) ListByEvent(ctx context.Context, eventID int) ([]models.Tournament, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tournaments := make([]models.Tournament, 0)
	for _, t := range r.s.data.tournaments {
		if t.EventID == eventID {
			tournaments = append(tournaments, t)
		}
	}
	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].Date.Equal(tournaments[j].Date) {
			return tournaments[i].Date.Before(tournaments[j].Date)
		}
		return tournaments[i].ID < tournaments[j].ID
	})
	return tournaments, nil
}

func (r memoryTournaments) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.data.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	if r.shortNameTaken(current.EventID, t.ShortName, t.ID) {
		return ErrTournamentShortNameTaken
	}
	current.Name = t.Name
	current.ShortName = t.ShortName
	current.Date = t.Date
	current.Duration = t.Duration
	current.Rules = t.Rules
	current.TeamSizeMin = t.TeamSizeMin
	current.TeamSizeMax = t.TeamSizeMax
	current.TeamCountMin = t.TeamCountMin
	current.TeamCountMax = t.TeamCountMax
	current.Status = t.Status
	current.PointsPerPlayer = t.PointsPerPlayer
	current.PointsDistribution = t.PointsDistribution
	r.s.data.tournaments[t.ID] = current
	return nil
}

func (r memoryTournaments) UpdateBackgroundKey(ctx context.Context, id int, key *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.data.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.BackgroundKey = key
	r.s.data.tournaments[id] = t
	return nil
}

func (r memoryTournaments) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.tournaments[id]; !ok {
		return ErrTournamentNotFound
	}
	r.s.deleteTournamentLocked(id)
	return nil
}

func (s *MemoryStore) deleteTournamentLocked(id int) {
	delete(s.data.tournaments, id)
	for teamID, team := range s.data.teams {
		if team.TournamentID == id {
			delete(s.data.teams, teamID)
		}
	}
}

// --- teams ---

type memoryTeams struct{ s *MemoryStore }

func copyTeam(t models.Team) models.Team {
	t.Members = slices.Clone(t.Members)
	if t.Members == nil {
		t.Members = []int{}
	}
	return t
}

func (r memoryTeams) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.tournaments[team.TournamentID]; !ok {
		return ErrTeamTournamentInvalid
	}
	r.s.data.nextTeamID++
	team.ID = r.s.data.nextTeamID
	team.CreatedAt = r.s.now()
	team.Members = []int{}
	r.s.data.teams[team.ID] = copyTeam(*team)
	return nil
}

func (r memoryTeams) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.data.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}
	t = copyTeam(t)
	return &t, nil
}

func (r memoryTeams) filter(keep func(models.Team) bool) []models.Team {
	teams := make([]models.Team, 0)
	for _, t := range r.s.data.teams {
		if keep(t) {
			teams = append(teams, copyTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams
}

func (r memoryTeams) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.filter(func(t models.Team) bool { return t.TournamentID == tournamentID }), nil
}

func (r memoryTeams) FindByMember(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (*models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	teams := r.filter(func(t models.Team) bool {
		return t.TournamentID == tournamentID && slices.Contains(t.Members, userID)
	})
	if len(teams) == 0 {
		return nil, ErrTeamNotFound
	}
	return &teams[0], nil
}

func (r memoryTeams) ListByEventMember(ctx context.Context, exec SQLExecutor, eventID, userID int) ([]models.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.filter(func(t models.Team) bool {
		tournament, ok := r.s.data.tournaments[t.TournamentID]
		return ok && tournament.EventID == eventID && slices.Contains(t.Members, userID)
	}), nil
}

func (r memoryTeams) Update(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.data.teams[team.ID]
	if !ok {
		return ErrTeamNotFound
	}
	current.Name = team.Name
	current.Result = team.Result
	current.Rank = team.Rank
	current.AppliedPoints = team.AppliedPoints
	r.s.data.teams[team.ID] = current
	return nil
}

func (r memoryTeams) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.teams[id]; !ok {
		return ErrTeamNotFound
	}
	delete(r.s.data.teams, id)
	return nil
}

func (r memoryTeams) AddMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	team, ok := r.s.data.teams[teamID]
	if !ok {
		return ErrTeamNotFound
	}
	tournament := r.s.data.tournaments[team.TournamentID]
	if _, ok := r.s.data.registrations[registrationKey{userID, tournament.EventID}]; !ok {
		return ErrMemberNotRegistered
	}
	for _, other := range r.s.data.teams {
		if other.TournamentID == team.TournamentID && slices.Contains(other.Members, userID) {
			return ErrMemberConflict
		}
	}
	team.Members = append(slices.Clone(team.Members), userID)
	r.s.data.teams[teamID] = team
	return nil
}

func (r memoryTeams) RemoveMember(ctx context.Context, exec SQLExecutor, teamID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	team, ok := r.s.data.teams[teamID]
	if !ok {
		return ErrMemberNotFound
	}
	i := slices.Index(team.Members, userID)
	if i < 0 {
		return ErrMemberNotFound
	}
	team.Members = slices.Delete(slices.Clone(team.Members), i, i+1)
	r.s.data.teams[teamID] = team
	return nil
}
