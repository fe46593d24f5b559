package realtime

import (
	"testing"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/stretchr/testify/require"
)

func TestBusCallsListenersInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var calls []string

	bus.Subscribe(ActionUpdate, EntityTeam, func(Message) { calls = append(calls, "first") })
	bus.Subscribe(ActionUpdate, EntityTeam, func(Message) { calls = append(calls, "second") })
	bus.Subscribe(ActionUpdate, EntityTeam, func(Message) { calls = append(calls, "third") })
	bus.Subscribe(ActionCreate, EntityTeam, func(Message) { calls = append(calls, "other action") })
	bus.Subscribe(ActionUpdate, EntityUser, func(Message) { calls = append(calls, "other entity") })

	bus.Emit(ActionUpdate, EntityTeam, map[string]int{"id": 1})

	require.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0

	unsubscribe := bus.Subscribe(ActionDelete, EntityEvent, func(Message) { count++ })
	bus.Emit(ActionDelete, EntityEvent, nil)
	unsubscribe()
	unsubscribe()
	bus.Emit(ActionDelete, EntityEvent, nil)

	require.Equal(t, 1, count)
	require.Zero(t, bus.ListenerCount(ActionDelete, EntityEvent))
}

func TestSubscriptionFiltersAndCloses(t *testing.T) {
	bus := NewBus()
	sub := bus.SubscribeStream(EntityTeam, Filter{"tournament_id": "3"}, nil)

	bus.Emit(ActionCreate, EntityTeam, map[string]any{"id": 1, "tournament_id": 2})
	bus.Emit(ActionUpdate, EntityTeam, map[string]any{"id": 2, "tournament_id": 3})

	msg := <-sub.C
	require.Equal(t, ActionUpdate, msg.Action)
	require.Equal(t, EntityTeam, msg.Entity)

	for _, action := range Actions {
		require.Equal(t, 1, bus.ListenerCount(action, EntityTeam))
	}

	sub.Close()
	sub.Close()
	for _, action := range Actions {
		require.Zero(t, bus.ListenerCount(action, EntityTeam))
	}
	_, open := <-sub.C
	require.False(t, open)

	// emitting after close must not panic
	bus.Emit(ActionUpdate, EntityTeam, map[string]any{"id": 2, "tournament_id": 3})
}

func TestSubscriptionDropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := bus.SubscribeStream(EntityUser, nil, nil)
	defer sub.Close()

	for i := 0; i < subscriptionBuffer+5; i++ {
		bus.Emit(ActionUpdate, EntityUser, map[string]int{"id": i})
	}

	require.Equal(t, int64(5), sub.Dropped())
}

func TestSubscriptionHidesOrganizerOnlyMessages(t *testing.T) {
	bus := NewBus()
	anonymous := bus.SubscribeStream(EntityTournament, nil, nil)
	defer anonymous.Close()
	player := bus.SubscribeStream(EntityTournament, nil, &auth.Caller{UserID: 2, Roles: map[int]models.Role{7: models.RolePlayer}})
	defer player.Close()
	organizer := bus.SubscribeStream(EntityTournament, nil, &auth.Caller{UserID: 3, Roles: map[int]models.Role{7: models.RoleOrganizer}})
	defer organizer.Close()
	admin := bus.SubscribeStream(EntityTournament, nil, &auth.Caller{UserID: 1, Admin: true})
	defer admin.Close()

	bus.Publish(Message{Action: ActionCreate, Entity: EntityTournament, Payload: map[string]any{"id": 1}, OrganizersOf: 7})
	bus.Emit(ActionUpdate, EntityTournament, map[string]any{"id": 2})

	for _, sub := range []*Subscription{anonymous, player} {
		msg := <-sub.C
		require.Equal(t, ActionUpdate, msg.Action)
		require.Empty(t, sub.C)
	}
	for _, sub := range []*Subscription{organizer, admin} {
		require.Equal(t, ActionCreate, (<-sub.C).Action)
		require.Equal(t, ActionUpdate, (<-sub.C).Action)
	}
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("tournament")
	require.NoError(t, err)
	require.Equal(t, EntityTournament, e)

	_, err = ParseEntity("match")
	require.Error(t, err)
}
