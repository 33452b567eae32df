package realtime

import (
	"context"
	"sync"

	"github.com/washpoint/washpoint-backend/pkg/logger"
)

const subscriptionBuffer = 16

// Subscription is one consumer's event stream. Events arrive on C; slow
// consumers are skipped rather than blocking the hub.
type Subscription struct {
	C      chan Event
	topics map[Topic]struct{}
	hub    *Hub
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
}

func (s *Subscription) matches(topics []Topic) bool {
	for _, topic := range topics {
		if _, ok := s.topics[topic]; ok {
			return true
		}
	}
	return false
}

// Hub fans job-state events out to live subscribers. It is injected into
// the services that publish, started by the composition root and stopped on
// shutdown.
type Hub struct {
	logg *logger.Logger

	register   chan *Subscription
	unregister chan *Subscription
	events     chan Event

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewHub builds an idle hub; call Start before publishing.
func NewHub(logg *logger.Logger) *Hub {
	return &Hub{
		logg:       logg,
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		events:     make(chan Event, 64),
	}
}

// Start launches the fan-out loop. Calling Start twice is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true
	h.done = make(chan struct{})
	go h.run(ctx, h.done)
}

// Stop terminates the fan-out loop and closes every subscription channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	h.started = false
	close(h.done)
}

// Subscribe attaches a consumer to the given topics.
func (h *Hub) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriptionBuffer),
		topics: make(map[Topic]struct{}, len(topics)),
		hub:    h,
	}
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
	}

	h.mu.Lock()
	started := h.started
	done := h.done
	h.mu.Unlock()
	if !started {
		return sub
	}

	select {
	case h.register <- sub:
	case <-done:
	}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	started := h.started
	done := h.done
	h.mu.Unlock()
	if !started {
		return
	}
	select {
	case h.unregister <- sub:
	case <-done:
	}
}

// Publish enqueues an event for delivery. Publishing never blocks the
// caller: when the hub is stopped or saturated the event is dropped, state
// changes are already durable in the database.
func (h *Hub) Publish(ctx context.Context, event Event) {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return
	}
	select {
	case h.events <- event:
	default:
		if h.logg != nil {
			h.logg.Warn(ctx, "realtime hub saturated, dropping event")
		}
	}
}

func (h *Hub) run(ctx context.Context, done chan struct{}) {
	subs := make(map[*Subscription]struct{})

	closeAll := func() {
		for sub := range subs {
			close(sub.C)
			delete(subs, sub)
		}
	}

	for {
		select {
		case sub := <-h.register:
			subs[sub] = struct{}{}

		case sub := <-h.unregister:
			if _, ok := subs[sub]; ok {
				close(sub.C)
				delete(subs, sub)
			}

		case event := <-h.events:
			topics := event.Topics()
			for sub := range subs {
				if !sub.matches(topics) {
					continue
				}
				select {
				case sub.C <- event:
				default:
					// slow consumer, drop rather than stall the loop
				}
			}

		case <-done:
			closeAll()
			return

		case <-ctx.Done():
			closeAll()
			return
		}
	}
}
