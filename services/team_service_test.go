package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
)

func TestTeamCannotExceedMaxSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID) // size 1..2

	var ids []int
	for _, name := range []string{"a", "b", "c"} {
		u := env.user(t, name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		ids = append(ids, u.ID)
	}
	team := env.team(t, env.admin, tour.ID, "red", ids[0], ids[1])

	_, err := env.teams.AddMember(ctx, env.admin, team.ID, ids[2])
	assert.ErrorIs(t, err, ErrState)

	got, err := env.teams.Get(ctx, nil, team.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{ids[0], ids[1]}, got.Members)

	_, err = env.teams.Create(ctx, env.admin, tour.ID, CreateTeamInput{Name: "blue", Members: ids})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRemovingLastMemberDeletesTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	u := env.user(t, "solo")
	player := env.register(t, ev.ID, u.ID, models.RolePlayer)

	team := env.team(t, player, tour.ID, "lonely")
	require.Equal(t, []int{u.ID}, team.Members)

	rec := env.record(realtime.EntityTeam)
	left, dissolved, err := env.teams.RemoveMember(ctx, player, team.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, dissolved)
	assert.Empty(t, left.Members)
	assert.Equal(t, []realtime.Action{realtime.ActionDelete}, rec.actions())

	_, err = env.teams.Get(ctx, nil, team.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerTeamRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)

	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	outsider := env.user(t, "outsider")
	pa := env.register(t, ev.ID, alice.ID, models.RolePlayer)
	pb := env.register(t, ev.ID, bob.ID, models.RolePlayer)

	_, err := env.teams.Create(ctx, pa, tour.ID, CreateTeamInput{Name: "ab", Members: []int{alice.ID, bob.ID}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.teams.Create(ctx, pa, tour.ID, CreateTeamInput{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	team := env.team(t, pa, tour.ID, "alpha")
	assert.Equal(t, []int{alice.ID}, team.Members)

	_, err = env.teams.Create(ctx, pa, tour.ID, CreateTeamInput{Name: "beta"})
	assert.ErrorIs(t, err, ErrConflict, "one team per tournament")

	_, err = env.teams.AddMember(ctx, pa, team.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden, "players only add themselves")

	got, err := env.teams.AddMember(ctx, pb, team.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{alice.ID, bob.ID}, got.Members)

	other := env.team(t, env.admin, tour.ID, "gamma")
	_, err = env.teams.AddMember(ctx, env.admin, other.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrValidation, "target must be registered")

	_, err = env.teams.AddMember(ctx, pb, other.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, _, err = env.teams.RemoveMember(ctx, pa, team.ID, bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	got, dissolved, err := env.teams.RemoveMember(ctx, pb, team.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, dissolved)
	assert.Equal(t, []int{alice.ID}, got.Members)

	assert.ErrorIs(t, env.teams.Delete(ctx, pb, team.ID), ErrForbidden)
	require.NoError(t, env.teams.Delete(ctx, pa, team.ID))
	_, err = env.teams.Get(ctx, nil, team.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeamCountMaxLimitsCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID, func(in *CreateTournamentInput) { in.TeamCountMax = 2 })

	env.team(t, env.admin, tour.ID, "one")
	env.team(t, env.admin, tour.ID, "two")
	_, err := env.teams.Create(ctx, env.admin, tour.ID, CreateTeamInput{Name: "three"})
	assert.ErrorIs(t, err, ErrState)

	teams, err := env.teams.ListByTournament(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Len(t, teams, 2)
}

func TestTeamUpdateIgnoresResultFromMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	u := env.user(t, "member")
	player := env.register(t, ev.ID, u.ID, models.RolePlayer)
	team := env.team(t, player, tour.ID, "alpha")

	name := "omega"
	result, rank := 500, 1
	got, err := env.teams.Update(ctx, player, team.ID, UpdateTeamInput{Name: &name, Result: &result, Rank: &rank})
	require.NoError(t, err)
	assert.Equal(t, "omega", got.Name)
	assert.Zero(t, got.Result)
	assert.Zero(t, got.Rank)

	got, err = env.teams.Update(ctx, env.admin, team.ID, UpdateTeamInput{Result: &result, Rank: &rank})
	require.NoError(t, err)
	assert.Equal(t, 500, got.Result)
	assert.Equal(t, 1, got.Rank)

	stranger := env.register(t, ev.ID, env.user(t, "stranger").ID, models.RolePlayer)
	_, err = env.teams.Update(ctx, stranger, team.ID, UpdateTeamInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStartedTournamentFreezesTeams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "A", "B")
	late := env.user(t, "late")
	lateCaller := env.register(t, ev.ID, late.ID, models.RolePlayer)

	_, err := env.teams.Create(ctx, lateCaller, tour.ID, CreateTeamInput{Name: "late"})
	assert.ErrorIs(t, err, ErrState)
	_, err = env.teams.AddMember(ctx, env.admin, teams["A"].ID, late.ID)
	assert.ErrorIs(t, err, ErrState)
	_, _, err = env.teams.RemoveMember(ctx, env.admin, teams["A"].ID, users["A"])
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, env.teams.Delete(ctx, env.admin, teams["B"].ID), ErrState)

	name := "renamed"
	_, err = env.teams.Update(ctx, env.admin, teams["B"].ID, UpdateTeamInput{Name: &name})
	assert.ErrorIs(t, err, ErrState)

	got, err := env.teams.Get(ctx, nil, teams["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{users["A"]}, got.Members)
}

func TestTeamChangesAreEmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	u := env.user(t, "u")
	player := env.register(t, ev.ID, u.ID, models.RolePlayer)

	sub := env.bus.SubscribeStream(realtime.EntityTeam, realtime.Filter{"tournament_id": "999"}, nil)
	defer sub.Close()
	rec := env.record(realtime.EntityTeam)

	team := env.team(t, player, tour.ID, "alpha")
	name := "beta"
	_, err := env.teams.Update(ctx, player, team.ID, UpdateTeamInput{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, []realtime.Action{realtime.ActionCreate, realtime.ActionUpdate}, rec.actions())
	assert.Len(t, sub.C, 0, "filtered out")
}

func TestReadyTournamentKeepsTeamCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID) // ready, 2..8 teams

	players := map[string]int{}
	for _, name := range []string{"a", "b", "c"} {
		u := env.user(t, name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		players[name] = u.ID
	}
	a := env.team(t, env.admin, tour.ID, "A", players["a"])
	b := env.team(t, env.admin, tour.ID, "B", players["b"])

	_, _, err := env.teams.RemoveMember(ctx, env.admin, a.ID, players["a"])
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, env.teams.Delete(ctx, env.admin, b.ID), ErrState)
	assert.ErrorIs(t, env.registrations.Delete(ctx, env.admin, ev.ID, players["a"]), ErrState)

	got, err := env.tournaments.Get(ctx, env.admin, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TeamCount)
	team, err := env.teams.Get(ctx, nil, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{players["a"]}, team.Members)
	_, err = env.registrations.Get(ctx, ev.ID, players["a"])
	require.NoError(t, err)

	// a third team makes room for one to leave
	env.team(t, env.admin, tour.ID, "C", players["c"])
	_, dissolved, err := env.teams.RemoveMember(ctx, env.admin, a.ID, players["a"])
	require.NoError(t, err)
	assert.True(t, dissolved)
	assert.ErrorIs(t, env.teams.Delete(ctx, env.admin, b.ID), ErrState)

	// hidden tournaments are not bound by the count
	hidden := models.StatusHidden
	_, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &hidden})
	require.NoError(t, err)
	require.NoError(t, env.teams.Delete(ctx, env.admin, b.ID))
}

func TestTeamCreatorMayHaveOnlyOneTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	org := env.user(t, "org")
	organizer := env.register(t, ev.ID, org.ID, models.RoleOrganizer)
	p := env.user(t, "p")
	env.register(t, ev.ID, p.ID, models.RolePlayer)

	env.team(t, organizer, tour.ID, "staff", org.ID)
	_, err := env.teams.Create(ctx, organizer, tour.ID, CreateTeamInput{Name: "players", Members: []int{p.ID}})
	assert.ErrorIs(t, err, ErrConflict)

	// administrators without a team still create teams for others
	team := env.team(t, env.admin, tour.ID, "players", p.ID)
	assert.Equal(t, []int{p.ID}, team.Members)
}

func TestHiddenTournamentTeamsStayHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID, func(in *CreateTournamentInput) {
		hidden := models.StatusHidden
		in.Status = &hidden
	})
	u := env.user(t, "u")
	player := env.register(t, ev.ID, u.ID, models.RolePlayer)
	org := env.user(t, "org")
	organizer := env.register(t, ev.ID, org.ID, models.RoleOrganizer)

	anonymous := env.bus.SubscribeStream(realtime.EntityTeam, nil, nil)
	defer anonymous.Close()
	asPlayer := env.bus.SubscribeStream(realtime.EntityTeam, nil, player)
	defer asPlayer.Close()
	asOrganizer := env.bus.SubscribeStream(realtime.EntityTeam, nil, organizer)
	defer asOrganizer.Close()

	team := env.team(t, env.admin, tour.ID, "secret", u.ID)
	_, _, err := env.teams.RemoveMember(ctx, env.admin, team.ID, u.ID)
	require.NoError(t, err)

	assert.Empty(t, anonymous.C)
	assert.Empty(t, asPlayer.C)
	require.Len(t, asOrganizer.C, 2)
	assert.Equal(t, realtime.ActionCreate, (<-asOrganizer.C).Action)
	assert.Equal(t, realtime.ActionDelete, (<-asOrganizer.C).Action)
}
