package core

import (
	"sync"
	"time"
)

// EventKind enumerates the lifecycle events the supervisor broadcasts to
// any attached observer - a supplemented, additive surface a front-end
// application can subscribe to without reaching into router/mailbox
// internals.
type EventKind string

const (
	EventWorkerRespawned   EventKind = "worker_respawned"
	EventWorkerWatchdogHit EventKind = "worker_watchdog_timeout"
)

// Event is one liveness-state change: a worker exiting and being
// scheduled for respawn, or a worker's own watchdog deciding to self-stop
// it for prolonged silence.
type Event struct {
	Kind   EventKind
	Worker string
	At     time.Time
	Detail string
}

// eventBroadcaster fans a single emitted Event out to every live
// subscriber. A slow or absent subscriber never blocks emission: sends
// are best-effort and drop on a full subscriber buffer.
type eventBroadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newEventBroadcaster() *eventBroadcaster {
	return &eventBroadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new observer channel with the given buffer size.
// The returned cancel func unsubscribes and closes the channel; callers
// must stop reading once they call it.
func (b *eventBroadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
}

func (b *eventBroadcaster) emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe lets an observer (e.g. the front-end application's /watch
// endpoint or an external telemetry publisher) receive every respawn and
// watchdog-timeout event the supervisor emits.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.Subscribe(buffer)
}
