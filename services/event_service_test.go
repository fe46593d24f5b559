package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
)

func TestEventCreateRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "gamer")

	input := CreateEventInput{Name: "LAN", ShortName: "lan", StartAt: eventStart, EndAt: eventStart.Add(time.Hour)}
	_, err := env.events.Create(ctx, &auth.Caller{UserID: u.ID}, input)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.events.Create(ctx, env.admin, CreateEventInput{Name: "LAN", ShortName: "lan", StartAt: eventStart, EndAt: eventStart})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.events.Create(ctx, env.admin, input)
	require.NoError(t, err)
	_, err = env.events.Create(ctx, env.admin, input)
	assert.ErrorIs(t, err, ErrConflict, "short names are unique")
}

func TestEventWindowMustKeepTournamentsAndStays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	org := env.register(t, ev.ID, env.user(t, "org").ID, models.RoleOrganizer)
	env.tournament(t, org, ev.ID)

	guest := env.user(t, "guest")
	arrival := eventStart.Add(60 * time.Hour)
	_, _, err := env.registrations.Put(ctx, env.admin, ev.ID, guest.ID, PutRegistrationInput{ArrivalAt: models.NewNullable(arrival)})
	require.NoError(t, err)

	end := eventStart.Add(12 * time.Hour)
	_, err = env.events.Update(ctx, org, ev.ID, UpdateEventInput{EndAt: &end})
	assert.ErrorIs(t, err, ErrValidation, "tournament at +24h falls outside")

	end = eventStart.Add(48 * time.Hour)
	_, err = env.events.Update(ctx, org, ev.ID, UpdateEventInput{EndAt: &end})
	assert.ErrorIs(t, err, ErrValidation, "arrival at +60h falls outside")

	end = eventStart.Add(60 * time.Hour)
	got, err := env.events.Update(ctx, org, ev.ID, UpdateEventInput{EndAt: &end})
	require.NoError(t, err)
	assert.True(t, end.Equal(got.EndAt))

	player := &auth.Caller{UserID: guest.ID, Roles: map[int]models.Role{ev.ID: models.RolePlayer}}
	name := "renamed"
	_, err = env.events.Update(ctx, player, ev.ID, UpdateEventInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEventDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	u := env.user(t, "gamer")
	env.register(t, ev.ID, u.ID, models.RolePlayer)
	team := env.team(t, env.admin, tour.ID, "alpha", u.ID)

	org := &auth.Caller{UserID: u.ID, Roles: map[int]models.Role{ev.ID: models.RoleOrganizer}}
	assert.ErrorIs(t, env.events.Delete(ctx, org, ev.ID), ErrForbidden, "organizers cannot delete events")

	require.NoError(t, env.events.Delete(ctx, env.admin, ev.ID))

	_, err := env.events.Get(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.tournaments.Get(ctx, env.admin, tour.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.teams.Get(ctx, env.admin, team.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.registrations.Get(ctx, ev.ID, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, env.users.Delete(ctx, env.admin, u.ID), "no registration is left")
}
