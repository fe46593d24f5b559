// Package realtime fans entity change events out to listeners and to the streaming
// endpoints built on top of them.
package realtime

import (
	"fmt"
	"sync"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionCreate, ActionUpdate, ActionDelete}

type Entity string

const (
	EntityUser         Entity = "user"
	EntityEvent        Entity = "event"
	EntityRegistration Entity = "registration"
	EntityTournament   Entity = "tournament"
	EntityTeam         Entity = "team"
)

func ParseEntity(s string) (Entity, error) {
	switch e := Entity(s); e {
	case EntityUser, EntityEvent, EntityRegistration, EntityTournament, EntityTeam:
		return e, nil
	}
	return "", fmt.Errorf("unknown entity %q", s)
}

// Message is one change notification.
type Message struct {
	Action  Action `json:"type"`
	Entity  Entity `json:"entity"`
	Payload any    `json:"payload"`

	// OrganizersOf is set when only organizers of that event may see the change,
	// as with anything belonging to a hidden tournament.
	OrganizersOf int `json:"-"`
}

type Listener func(Message)

type key struct {
	action Action
	entity Entity
}

type listenerEntry struct {
	id int
	fn Listener
}

// Bus is an in-process publish/subscribe registry keyed by (action, entity).
// Listeners of a key are called synchronously, in the order they subscribed.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[key][]listenerEntry
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[key][]listenerEntry)}
}

// Subscribe registers fn for the key and returns the function that removes it.
func (b *Bus) Subscribe(action Action, entity Entity, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	k := key{action, entity}
	b.listeners[k] = append(b.listeners[k], listenerEntry{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(k, id) })
	}
}

func (b *Bus) remove(k key, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[k]
	for i, e := range entries {
		if e.id == id {
			// copy so that an Emit holding the old slice keeps a consistent view
			next := make([]listenerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, k)
			} else {
				b.listeners[k] = next
			}
			return
		}
	}
}

// Emit delivers a message to every listener of (action, entity).
func (b *Bus) Emit(action Action, entity Entity, payload any) {
	b.Publish(Message{Action: action, Entity: entity, Payload: payload})
}

// Publish delivers msg to every listener of its (action, entity).
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	entries := b.listeners[key{msg.Action, msg.Entity}]
	b.mu.RUnlock()

	for _, e := range entries {
		e.fn(msg)
	}
}

// ListenerCount returns the number of listeners registered for the key.
func (b *Bus) ListenerCount(action Action, entity Entity) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[key{action, entity}])
}
