// Package journal keeps an append-only audit trail of committed settlement
// events. Appends happen after the operation has committed and are
// best-effort: a failed append is logged, never surfaced.
package journal

import (
	"context"
	"sync"
	"time"

	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	PoolCreated      = "pool.created"
	PoolStaked       = "pool.staked"
	PoolResolved     = "pool.resolved"
	PoolCancelled    = "pool.cancelled"
	RewardClaimed    = "pool.reward_claimed"
	RefundClaimed    = "pool.refund_claimed"
	SeedReclaimed    = "pool.seed_reclaimed"
	RoundCreated     = "round.created"
	RoundCommitted   = "round.committed"
	RoundRevealed    = "round.revealed"
	RoundFinalized   = "round.finalized"
	RoundCancelled   = "round.cancelled"
	RoundRewardPaid  = "round.reward_claimed"
	RoundRefundPaid  = "round.refund_claimed"
	RoundSeedClaimed = "round.seed_reclaimed"
)

// Event is one committed state change.
type Event struct {
	ID      uuid.UUID         `json:"id"`
	Seq     uint64            `json:"seq"`
	Type    string            `json:"type"`
	Subject domain.PoolID     `json:"subject"`
	Actor   domain.Address    `json:"actor"`
	Amount  decimal.Decimal   `json:"amount"`
	Data    map[string]string `json:"data,omitempty"`
	At      time.Time         `json:"at"`
}

// Sink persists events.
type Sink interface {
	Append(ctx context.Context, ev Event) error
	List(ctx context.Context, subject domain.PoolID) ([]Event, error)
}

// Recorder stamps events and appends them to a Sink, logging failures.
type Recorder struct {
	sink   Sink
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(sink Sink, log logger.Logger, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{sink: sink, logger: log, now: now}
}

// Record appends ev. A nil Recorder records nothing.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.sink == nil {
		return
	}
	ev.ID = uuid.New()
	if ev.At.IsZero() {
		ev.At = r.now().UTC()
	}
	if err := r.sink.Append(ctx, ev); err != nil {
		r.logger.Warn("Journal append failed", map[string]interface{}{
			"event":   ev.Type,
			"subject": string(ev.Subject),
			"error":   err.Error(),
		})
	}
}

// Memory is an in-process Sink.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Seq = uint64(len(m.events)) + 1
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) List(_ context.Context, subject domain.PoolID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Subject == subject {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Types returns the event types recorded for subject, in order.
func (m *Memory) Types(subject domain.PoolID) []string {
	evs, _ := m.List(context.Background(), subject)
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}
