// Package bus fans out write events to the live subscribers of a namespace.
// Delivery is best effort: a subscriber that stops draining its channel is
// cancelled rather than allowed to stall the publisher.
package bus

import (
	"sync"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// subscriberBuffer absorbs short bursts before a subscriber counts as slow.
const subscriberBuffer = 64

// Bus routes events to subscribers keyed by namespace.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives the events of one namespace. It stays live until
// Cancel is called or the bus drops it as a slow consumer; either way Done
// is closed and no further events arrive.
type Subscription struct {
	bus       *Bus
	namespace string
	events    chan domain.Event
	done      chan struct{}
	cancelled bool
}

// Events returns the subscriber's event channel. The channel is never
// closed; watch Done to learn the subscription ended.
func (sub *Subscription) Events() <-chan domain.Event {
	return sub.events
}

// Done is closed when the subscription ends.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Cancel ends the subscription. It is safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.bus.mu.Lock()
	defer sub.bus.mu.Unlock()
	sub.bus.dropLocked(sub)
}

// Subscribe registers a new subscriber for a namespace.
func (b *Bus) Subscribe(namespace string) *Subscription {
	sub := &Subscription{
		bus:       b,
		namespace: namespace,
		events:    make(chan domain.Event, subscriberBuffer),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[namespace]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[namespace] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish delivers an event to every subscriber of its namespace. A
// subscriber whose buffer is full is cancelled instead of blocking the
// caller.
func (b *Bus) Publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[event.Namespace] {
		select {
		case sub.events <- event:
		default:
			b.dropLocked(sub)
		}
	}
}

// SubscriberCount returns the number of live subscribers for a namespace.
func (b *Bus) SubscriberCount(namespace string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[namespace])
}

// dropLocked removes a subscription and closes its done channel. The event
// channel is left open so a concurrent Publish can never send on a closed
// channel. Callers must hold b.mu.
func (b *Bus) dropLocked(sub *Subscription) {
	if sub.cancelled {
		return
	}
	sub.cancelled = true
	close(sub.done)

	set := b.subs[sub.namespace]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.namespace)
	}
}
