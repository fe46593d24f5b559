package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/lanparty/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, s *MemoryStore) (*models.User, *models.Event) {
	t.Helper()
	ctx := context.Background()

	u := &models.User{Username: "Alice", DisplayName: "Alice"}
	require.NoError(t, s.Users().Create(ctx, u))

	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	e := &models.Event{Name: "Spring LAN", ShortName: "spring", StartAt: start, EndAt: start.Add(48 * time.Hour)}
	require.NoError(t, s.Events().Create(ctx, e))
	return u, e
}

func TestMemoryStore_UsernameIsCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedEvent(t, s)

	err := s.Users().Create(ctx, &models.User{Username: "aLICE"})
	assert.ErrorIs(t, err, ErrUsernameConflict)

	u, err := s.Users().GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, e := seedEvent(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(exec SQLExecutor) error {
		require.NoError(t, s.Registrations().Create(ctx, exec, &models.Registration{
			UserID: u.ID, EventID: e.ID, Role: models.RolePlayer,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Registrations().Get(ctx, nil, u.ID, e.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestMemoryStore_WithinTxCommits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, e := seedEvent(t, s)

	err := s.WithinTx(ctx, func(exec SQLExecutor) error {
		return s.Registrations().Create(ctx, exec, &models.Registration{
			UserID: u.ID, EventID: e.ID, Role: models.RolePlayer,
		})
	})
	require.NoError(t, err)

	reg, err := s.Registrations().Get(ctx, nil, u.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePlayer, reg.Role)
}

func TestMemoryStore_TeamMembership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, e := seedEvent(t, s)

	tour := &models.Tournament{EventID: e.ID, Name: "Quake", ShortName: "q3", Status: models.StatusReady}
	require.NoError(t, s.Tournaments().Create(ctx, tour))

	red := &models.Team{TournamentID: tour.ID, Name: "red"}
	blue := &models.Team{TournamentID: tour.ID, Name: "blue"}
	require.NoError(t, s.Teams().Create(ctx, nil, red))
	require.NoError(t, s.Teams().Create(ctx, nil, blue))

	err := s.Teams().AddMember(ctx, nil, red.ID, u.ID)
	assert.ErrorIs(t, err, ErrMemberNotRegistered)

	require.NoError(t, s.Registrations().Create(ctx, nil, &models.Registration{UserID: u.ID, EventID: e.ID, Role: models.RolePlayer}))
	require.NoError(t, s.Teams().AddMember(ctx, nil, red.ID, u.ID))

	err = s.Teams().AddMember(ctx, nil, blue.ID, u.ID)
	assert.ErrorIs(t, err, ErrMemberConflict)

	found, err := s.Teams().FindByMember(ctx, nil, tour.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, red.ID, found.ID)

	// removing the registration drops the membership
	require.NoError(t, s.Registrations().Delete(ctx, nil, u.ID, e.ID))
	got, err := s.Teams().GetByID(ctx, nil, red.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Members)
}

func TestMemoryStore_DeleteEventCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, e := seedEvent(t, s)

	require.NoError(t, s.Registrations().Create(ctx, nil, &models.Registration{UserID: u.ID, EventID: e.ID, Role: models.RoleOrganizer}))
	tour := &models.Tournament{EventID: e.ID, Name: "Quake", ShortName: "q3", Status: models.StatusHidden}
	require.NoError(t, s.Tournaments().Create(ctx, tour))
	team := &models.Team{TournamentID: tour.ID, Name: "red"}
	require.NoError(t, s.Teams().Create(ctx, nil, team))

	assert.ErrorIs(t, s.Users().Delete(ctx, u.ID), ErrUserInUse)

	require.NoError(t, s.Events().Delete(ctx, e.ID))

	_, err := s.Tournaments().GetByID(ctx, nil, tour.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = s.Teams().GetByID(ctx, nil, team.ID)
	assert.ErrorIs(t, err, ErrTeamNotFound)
	regs, err := s.Registrations().ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, regs)

	assert.NoError(t, s.Users().Delete(ctx, u.ID))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u, e := seedEvent(t, s)

	require.NoError(t, s.Registrations().Create(ctx, nil, &models.Registration{UserID: u.ID, EventID: e.ID, Role: models.RolePlayer}))
	tour := &models.Tournament{EventID: e.ID, Name: "Quake", ShortName: "q3", Status: models.StatusReady}
	require.NoError(t, s.Tournaments().Create(ctx, tour))
	team := &models.Team{TournamentID: tour.ID, Name: "red"}
	require.NoError(t, s.Teams().Create(ctx, nil, team))
	require.NoError(t, s.Teams().AddMember(ctx, nil, team.ID, u.ID))

	got, err := s.Teams().GetByID(ctx, nil, team.ID)
	require.NoError(t, err)
	got.Members[0] = 999

	again, err := s.Teams().GetByID(ctx, nil, team.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{u.ID}, again.Members)
}
