package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/Dosada05/lanparty/auth"
)

const subscriptionBuffer = 64

// Subscription collects the changes of one entity that pass a filter into a buffered
// channel. Messages are dropped when the consumer falls behind.
type Subscription struct {
	C <-chan Message

	ch      chan Message
	mu      sync.Mutex
	closed  bool
	unsubs  []func()
	dropped atomic.Int64
	onClose func()
}

// SubscribeStream listens to every action on entity on behalf of caller, which may be
// nil for anonymous consumers. Close must be called when the consumer goes away.
func (b *Bus) SubscribeStream(entity Entity, filter Filter, caller *auth.Caller) *Subscription {
	ch := make(chan Message, subscriptionBuffer)
	s := &Subscription{C: ch, ch: ch}
	for _, action := range Actions {
		s.unsubs = append(s.unsubs, b.Subscribe(action, entity, s.deliver(filter, caller)))
	}
	subscribersGauge.Inc()
	s.onClose = subscribersGauge.Dec
	return s
}

func (s *Subscription) deliver(filter Filter, caller *auth.Caller) Listener {
	return func(msg Message) {
		if msg.OrganizersOf != 0 && !auth.CanOrganize(caller, msg.OrganizersOf) {
			return
		}
		if !filter.Match(msg.Payload) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		select {
		case s.ch <- msg:
		default:
			s.dropped.Add(1)
		}
	}
}

// Dropped returns how many messages were discarded because the buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close removes the listeners and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	if s.onClose != nil {
		s.onClose()
	}
}
