package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/scoring"
)

func TestCheckStatusTransition(t *testing.T) {
	cases := []struct {
		name     string
		from, to models.TournamentStatus
		count    int
		kind     error
	}{
		{"hidden to ready within bounds", models.StatusHidden, models.StatusReady, 2, nil},
		{"hidden to ready with too few teams", models.StatusHidden, models.StatusReady, 1, ErrState},
		{"hidden to started", models.StatusHidden, models.StatusStarted, 2, ErrState},
		{"ready to started within bounds", models.StatusReady, models.StatusStarted, 3, nil},
		{"ready to started with too many teams", models.StatusReady, models.StatusStarted, 9, ErrState},
		{"ready to hidden", models.StatusReady, models.StatusHidden, 0, nil},
		{"started to hidden", models.StatusStarted, models.StatusHidden, 2, ErrState},
		{"started to ready", models.StatusStarted, models.StatusReady, 2, ErrState},
		{"finished to started", models.StatusFinished, models.StatusStarted, 2, ErrState},
		{"ready to finished", models.StatusReady, models.StatusFinished, 2, ErrState},
		{"unchanged started", models.StatusStarted, models.StatusStarted, 0, nil},
		{"unknown status", models.StatusReady, models.TournamentStatus("paused"), 2, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkStatusTransition(tc.from, tc.to, tc.count, 2, 8)
			if tc.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestTournamentCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")

	base := func() CreateTournamentInput {
		return CreateTournamentInput{
			Name: "CS", ShortName: "cs", Date: eventStart.Add(time.Hour), Duration: 60,
			TeamSizeMin: 1, TeamSizeMax: 5, TeamCountMin: 2, TeamCountMax: 4,
		}
	}

	in := base()
	in.Date = eventStart
	_, err := env.tournaments.Create(ctx, env.admin, ev.ID, in)
	assert.ErrorIs(t, err, ErrValidation, "date on the event start is outside")

	in = base()
	in.TeamCountMin = 1
	_, err = env.tournaments.Create(ctx, env.admin, ev.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = base()
	in.TeamSizeMax = 0
	in.TeamSizeMin = 3
	_, err = env.tournaments.Create(ctx, env.admin, ev.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = base()
	started := models.StatusStarted
	in.Status = &started
	_, err = env.tournaments.Create(ctx, env.admin, ev.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	in = base()
	dist := models.Distribution("linear")
	in.PointsDistribution = &dist
	_, err = env.tournaments.Create(ctx, env.admin, ev.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	player := env.register(t, ev.ID, env.user(t, "p").ID, models.RolePlayer)
	_, err = env.tournaments.Create(ctx, player, ev.ID, base())
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := env.tournaments.Create(ctx, env.admin, ev.ID, base())
	require.NoError(t, err)
	assert.Equal(t, models.StatusHidden, created.Status)
	assert.Equal(t, models.DistributionExponential, created.PointsDistribution)

	_, err = env.tournaments.Create(ctx, env.admin, ev.ID, base())
	assert.ErrorIs(t, err, ErrConflict, "short name is unique per event")
}

func TestHiddenTournamentIsInvisibleToPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	player := env.register(t, ev.ID, env.user(t, "p").ID, models.RolePlayer)
	organizer := env.register(t, ev.ID, env.user(t, "o").ID, models.RoleOrganizer)

	hidden := env.tournament(t, organizer, ev.ID, func(in *CreateTournamentInput) { in.Status = nil })
	visible := env.tournament(t, organizer, ev.ID, func(in *CreateTournamentInput) { in.ShortName = "cs" })

	_, err := env.tournaments.Get(ctx, player, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.tournaments.Get(ctx, nil, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.teams.ListByTournament(ctx, player, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := env.tournaments.Get(ctx, organizer, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHidden, got.Status)

	list, err := env.tournaments.ListByEvent(ctx, player, ev.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, visible.ID, list[0].ID)

	list, err = env.tournaments.ListByEvent(ctx, organizer, ev.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTeamCountExcludesUndersizedTeams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID, func(in *CreateTournamentInput) {
		in.TeamSizeMin = 2
		in.TeamSizeMax = 3
	})

	var ids []int
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		u := env.user(t, name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		ids = append(ids, u.ID)
	}
	env.team(t, env.admin, tour.ID, "full", ids[0], ids[1])
	env.team(t, env.admin, tour.ID, "half", ids[2])
	env.team(t, env.admin, tour.ID, "empty")

	got, err := env.tournaments.Get(ctx, nil, tour.ID)
	require.NoError(t, err)
	assert.Len(t, got.Teams, 3)
	assert.Equal(t, 1, got.TeamCount)

	list, err := env.tournaments.ListByEvent(ctx, nil, ev.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].TeamCount)

	// one complete team is not enough to start
	started := models.StatusStarted
	_, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &started})
	assert.ErrorIs(t, err, ErrState)
}

func TestTournamentStatusFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID, func(in *CreateTournamentInput) { in.Status = nil })

	started := models.StatusStarted
	ready := models.StatusReady
	hidden := models.StatusHidden

	_, err := env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &ready})
	assert.ErrorIs(t, err, ErrState, "no team yet")

	for _, name := range []string{"a", "b"} {
		u := env.user(t, name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		env.team(t, env.admin, tour.ID, name, u.ID)
	}

	_, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &started})
	assert.ErrorIs(t, err, ErrState, "hidden cannot start directly")

	got, err := env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &ready})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Equal(t, 2, got.TeamCount)

	got, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &started})
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, got.Status)

	_, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Status: &hidden})
	assert.ErrorIs(t, err, ErrState)

	later := tour.Date.Add(time.Hour)
	_, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Date: &later})
	assert.ErrorIs(t, err, ErrState, "schedule is frozen once started")

	rules := "no camping"
	got, err = env.tournaments.Update(ctx, env.admin, tour.ID, UpdateTournamentInput{Rules: &rules})
	require.NoError(t, err)
	assert.Equal(t, "no camping", got.Rules)

	assert.ErrorIs(t, env.tournaments.Delete(ctx, env.admin, tour.ID), ErrState)
}

func TestCheckRosterChange(t *testing.T) {
	cases := []struct {
		name          string
		status        models.TournamentStatus
		before, after int
		wantErr       bool
	}{
		{"ready stays inside", models.StatusReady, 3, 2, false},
		{"ready drops below min", models.StatusReady, 2, 1, true},
		{"ready fills up", models.StatusReady, 0, 1, false},
		{"ready reaches min", models.StatusReady, 1, 2, false},
		{"ready still below min", models.StatusReady, 1, 0, false},
		{"ready grows past max", models.StatusReady, 4, 5, true},
		{"hidden is not bound", models.StatusHidden, 2, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkRosterChange(tc.status, tc.before, tc.after, 2, 4)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrState)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHiddenTournamentChangesReachOnlyOrganizers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	org := env.user(t, "org")
	organizer := env.register(t, ev.ID, org.ID, models.RoleOrganizer)
	p := env.user(t, "p")
	player := env.register(t, ev.ID, p.ID, models.RolePlayer)

	anonymous := env.bus.SubscribeStream(realtime.EntityTournament, nil, nil)
	defer anonymous.Close()
	asPlayer := env.bus.SubscribeStream(realtime.EntityTournament, nil, player)
	defer asPlayer.Close()
	asOrganizer := env.bus.SubscribeStream(realtime.EntityTournament, nil, organizer)
	defer asOrganizer.Close()

	tour := env.tournament(t, organizer, ev.ID, func(in *CreateTournamentInput) { in.Status = nil })
	require.Equal(t, models.StatusHidden, tour.Status)
	rules := "bo3"
	_, err := env.tournaments.Update(ctx, organizer, tour.ID, UpdateTournamentInput{Rules: &rules})
	require.NoError(t, err)

	assert.Empty(t, anonymous.C)
	assert.Empty(t, asPlayer.C)
	assert.Len(t, asOrganizer.C, 2)

	q := env.user(t, "q")
	env.register(t, ev.ID, q.ID, models.RolePlayer)
	env.team(t, organizer, tour.ID, "a", p.ID)
	env.team(t, organizer, tour.ID, "b", q.ID)
	ready := models.StatusReady
	_, err = env.tournaments.Update(ctx, organizer, tour.ID, UpdateTournamentInput{Status: &ready})
	require.NoError(t, err)

	for _, sub := range []*realtime.Subscription{anonymous, asPlayer} {
		require.Len(t, sub.C, 1, "published once ready")
		msg := <-sub.C
		assert.Equal(t, realtime.ActionUpdate, msg.Action)
		assert.Equal(t, models.StatusReady, msg.Payload.(*models.Tournament).Status)
	}
}

// endFixture builds a started tournament with one single-member team per name.
func endFixture(t *testing.T, env *testEnv, names ...string) (*models.Event, *models.Tournament, map[string]*models.Team, map[string]int) {
	t.Helper()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID, func(in *CreateTournamentInput) {
		points := 100
		in.PointsPerPlayer = &points
	})

	teams := make(map[string]*models.Team, len(names))
	users := make(map[string]int, len(names))
	for _, name := range names {
		u := env.user(t, "user-"+name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		teams[name] = env.team(t, env.admin, tour.ID, name, u.ID)
		users[name] = u.ID
	}
	env.start(t, env.admin, tour.ID)
	return ev, tour, teams, users
}

func ranks(groups ...[]int) []models.RankGroup {
	out := make([]models.RankGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.RankGroup(g))
	}
	return out
}

func TestEndRewardsBetterRankedTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "A", "B")

	got, err := env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{
		Ranks: ranks([]int{teams["B"].ID}, []int{teams["A"].ID}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)

	first := scoring.DistributeExp(1, 1, 2, 100, scoring.DefaultCurve)
	second := scoring.DistributeExp(2, 1, 2, 100, scoring.DefaultCurve)
	require.Greater(t, first, second)

	assert.Equal(t, first, env.score(t, ev.ID, users["B"]))
	assert.Equal(t, second, env.score(t, ev.ID, users["A"]))

	b, err := env.teams.Get(ctx, nil, teams["B"].ID)
	require.NoError(t, err)
	assert.Equal(t, first, b.Result)
	assert.Equal(t, 1, b.Rank)
	a, err := env.teams.Get(ctx, nil, teams["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Rank)
}

func TestEndSplitsTies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "X", "Y")

	points := 50
	_, err := env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{
		Ranks:  ranks([]int{teams["X"].ID, teams["Y"].ID}),
		Points: &points,
	})
	require.NoError(t, err)

	want := scoring.DistributeExp(1, 2, 2, 50, scoring.DefaultCurve)
	assert.Equal(t, want, env.score(t, ev.ID, users["X"]))
	assert.Equal(t, want, env.score(t, ev.ID, users["Y"]))
}

func TestEndTwiceKeepsOnlyLatestRanking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "A", "B", "C")

	_, err := env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{
		Ranks: ranks([]int{teams["A"].ID}, []int{teams["B"].ID}, []int{teams["C"].ID}),
	})
	require.NoError(t, err)

	// second ending lists the worst team first
	_, err = env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{
		Ranks:     ranks([]int{teams["A"].ID}, []int{teams["B"].ID, teams["C"].ID}),
		DescOrder: true,
	})
	require.NoError(t, err)

	tied := scoring.DistributeExp(1, 2, 3, 100, scoring.DefaultCurve)
	last := scoring.DistributeExp(3, 1, 3, 100, scoring.DefaultCurve)
	assert.Equal(t, tied, env.score(t, ev.ID, users["B"]))
	assert.Equal(t, tied, env.score(t, ev.ID, users["C"]))
	assert.Equal(t, last, env.score(t, ev.ID, users["A"]))

	a, err := env.teams.Get(ctx, nil, teams["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, last, a.Result)
	assert.Equal(t, 3, a.Rank)
}

func TestEndAddsToScoresFromOtherTournaments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "A", "B")

	reg, err := env.registrations.Get(ctx, ev.ID, users["A"])
	require.NoError(t, err)
	bonus := 7
	_, _, err = env.registrations.Put(ctx, env.admin, ev.ID, users["A"], PutRegistrationInput{Score: &bonus})
	require.NoError(t, err)
	require.Equal(t, 0, reg.Score)

	_, err = env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{
		Ranks: ranks([]int{teams["A"].ID}, []int{teams["B"].ID}),
	})
	require.NoError(t, err)

	first := scoring.DistributeExp(1, 1, 2, 100, scoring.DefaultCurve)
	assert.Equal(t, bonus+first, env.score(t, ev.ID, users["A"]))
}

func TestEndRejectsBadRankings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev, tour, teams, users := endFixture(t, env, "A", "B")
	a, b := teams["A"].ID, teams["B"].ID

	cases := map[string]models.Ranking{
		"missing team":   {Ranks: ranks([]int{a})},
		"unknown team":   {Ranks: ranks([]int{a}, []int{b}, []int{9999})},
		"duplicate team": {Ranks: ranks([]int{a}, []int{a, b})},
		"empty ranking":  {},
	}
	for name, ranking := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.tournaments.End(ctx, env.admin, tour.ID, ranking)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	dist := models.Distribution("linear")
	_, err := env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{Ranks: ranks([]int{a}, []int{b}), Distribution: &dist})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := env.tournaments.Get(ctx, env.admin, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, got.Status)
	assert.Zero(t, env.score(t, ev.ID, users["A"]))
	assert.Zero(t, env.score(t, ev.ID, users["B"]))
}

func TestEndRequiresStartedTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "lan1")
	tour := env.tournament(t, env.admin, ev.ID)
	var teamIDs []int
	for _, name := range []string{"a", "b"} {
		u := env.user(t, name)
		env.register(t, ev.ID, u.ID, models.RolePlayer)
		teamIDs = append(teamIDs, env.team(t, env.admin, tour.ID, name, u.ID).ID)
	}

	_, err := env.tournaments.End(ctx, env.admin, tour.ID, models.Ranking{Ranks: ranks(teamIDs)})
	assert.ErrorIs(t, err, ErrState)

	player := env.register(t, ev.ID, env.user(t, "p").ID, models.RolePlayer)
	env.start(t, env.admin, tour.ID)
	_, err = env.tournaments.End(ctx, player, tour.ID, models.Ranking{Ranks: ranks(teamIDs)})
	assert.ErrorIs(t, err, ErrForbidden)
}
