package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
	"github.com/Dosada05/lanparty/storage"
)

var eventStart = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *repositories.MemoryStore
	bus    *realtime.Bus
	tokens *auth.TokenManager

	auth          AuthService
	users         UserService
	events        EventService
	registrations RegistrationService
	tournaments   TournamentService
	teams         TeamService

	admin *auth.Caller
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithUploader(t, nil)
}

func newTestEnvWithUploader(t *testing.T, uploader storage.FileUploader) *testEnv {
	t.Helper()

	store := repositories.NewMemoryStore()
	bus := realtime.NewBus()
	tokens := auth.NewTokenManager("test-secret", time.Hour, "lanparty-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		store:         store,
		bus:           bus,
		tokens:        tokens,
		auth:          NewAuthService(store.Users(), store.Registrations(), tokens, uploader, bus, logger),
		users:         NewUserService(store.Users(), store.Registrations(), uploader, bus, logger),
		events:        NewEventService(store.Events(), store.Registrations(), store.Tournaments(), bus, logger),
		registrations: NewRegistrationService(store, store.Registrations(), store.Users(), store.Events(), store.Tournaments(), store.Teams(), bus, logger),
		tournaments:   NewTournamentService(store, store.Tournaments(), store.Events(), store.Teams(), store.Registrations(), uploader, bus, logger),
		teams:         NewTeamService(store, store.Teams(), store.Tournaments(), bus, logger),
	}

	admin, err := env.users.CreateAdmin(context.Background(), SignUpInput{Username: "root", Password: "correct horse"})
	require.NoError(t, err)
	env.admin = &auth.Caller{UserID: admin.ID, Admin: true, Roles: map[int]models.Role{}}
	return env
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username, PasswordHash: "x"}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) event(t *testing.T, shortName string) *models.Event {
	t.Helper()
	ev, err := e.events.Create(context.Background(), e.admin, CreateEventInput{
		Name:      "LAN " + shortName,
		ShortName: shortName,
		StartAt:   eventStart,
		EndAt:     eventStart.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return ev
}

// register stores a registration and returns the caller as its token would describe it.
func (e *testEnv) register(t *testing.T, eventID, userID int, role models.Role) *auth.Caller {
	t.Helper()
	require.NoError(t, e.store.Registrations().Create(context.Background(), nil, &models.Registration{
		UserID: userID, EventID: eventID, Role: role,
	}))
	return &auth.Caller{UserID: userID, Roles: map[int]models.Role{eventID: role}}
}

func (e *testEnv) tournament(t *testing.T, caller *auth.Caller, eventID int, mods ...func(*CreateTournamentInput)) *models.Tournament {
	t.Helper()
	ready := models.StatusReady
	input := CreateTournamentInput{
		Name:         "Quake III",
		ShortName:    "q3",
		Date:         eventStart.Add(24 * time.Hour),
		Duration:     90,
		TeamSizeMin:  1,
		TeamSizeMax:  2,
		TeamCountMin: 2,
		TeamCountMax: 8,
		Status:       &ready,
	}
	for _, m := range mods {
		m(&input)
	}
	tour, err := e.tournaments.Create(context.Background(), caller, eventID, input)
	require.NoError(t, err)
	return tour
}

func (e *testEnv) team(t *testing.T, caller *auth.Caller, tournamentID int, name string, members ...int) *models.Team {
	t.Helper()
	team, err := e.teams.Create(context.Background(), caller, tournamentID, CreateTeamInput{Name: name, Members: members})
	require.NoError(t, err)
	return team
}

func (e *testEnv) start(t *testing.T, caller *auth.Caller, tournamentID int) {
	t.Helper()
	started := models.StatusStarted
	_, err := e.tournaments.Update(context.Background(), caller, tournamentID, UpdateTournamentInput{Status: &started})
	require.NoError(t, err)
}

func (e *testEnv) score(t *testing.T, eventID, userID int) int {
	t.Helper()
	reg, err := e.registrations.Get(context.Background(), eventID, userID)
	require.NoError(t, err)
	return reg.Score
}

// recorder collects bus messages of one entity.
type recorder struct {
	msgs []realtime.Message
}

func (e *testEnv) record(entity realtime.Entity) *recorder {
	r := &recorder{}
	for _, a := range realtime.Actions {
		e.bus.Subscribe(a, entity, func(m realtime.Message) { r.msgs = append(r.msgs, m) })
	}
	return r
}

func (r *recorder) actions() []realtime.Action {
	out := make([]realtime.Action, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Action)
	}
	return out
}
