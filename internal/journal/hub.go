package journal

import (
	"context"
	"sync"

	"stakehub/internal/domain"
	"stakehub/pkg/logger"
)

const subscriptionBuffer = 64

// Hub is a Sink that forwards every stored event to live subscribers. The
// wrapped Sink is written first; a subscriber whose buffer is full loses the
// event instead of blocking the append.
type Hub struct {
	Sink
	logger logger.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

var _ Sink = (*Hub)(nil)

func NewHub(sink Sink, log logger.Logger) *Hub {
	return &Hub{Sink: sink, logger: log, subs: make(map[*Subscription]struct{})}
}

// Subscription receives events for one subject, or every subject when the
// subject is empty.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	subject domain.PoolID
	hub     *Hub
	once    sync.Once
}

func (h *Hub) Subscribe(subject domain.PoolID) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	s := &Subscription{C: ch, ch: ch, subject: subject, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

func (h *Hub) Append(ctx context.Context, ev Event) error {
	if err := h.Sink.Append(ctx, ev); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.subject != "" && s.subject != ev.Subject {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("Dropping event for slow subscriber", map[string]interface{}{
				"event":   ev.Type,
				"subject": string(ev.Subject),
			})
		}
	}
	return nil
}

// Subscribers reports how many live subscriptions are attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
