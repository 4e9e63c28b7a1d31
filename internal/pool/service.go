// ==============================================================================
// POOL SERVICE - internal/pool/service.go
// ==============================================================================
package pool

import (
	"time"

	"stakehub/internal/access"
	"stakehub/internal/guard"
	"stakehub/internal/journal"
	"stakehub/internal/ledger"
	"stakehub/internal/reputation"
	"stakehub/internal/settlement"
	"stakehub/internal/stake"
	"stakehub/pkg/logger"
)

// Service runs the pool lifecycle: creation, staking, resolution or
// cancellation, and the per-participant claims that follow. Every mutating
// operation validates first, applies its effects inside a stake.Tx, performs
// value transfers last and commits only if they all succeed.
type Service struct {
	store   *stake.Store
	ledger  ledger.ValueLedger
	policy  *access.Policy
	guard   *guard.Guard
	notify  *reputation.Dispatcher
	journal *journal.Recorder
	params  settlement.Params
	logger  logger.Logger
	now     func() time.Time
}

func NewService(
	store *stake.Store,
	vl ledger.ValueLedger,
	policy *access.Policy,
	g *guard.Guard,
	notify *reputation.Dispatcher,
	rec *journal.Recorder,
	params settlement.Params,
	log logger.Logger,
) *Service {
	return &Service{
		store:   store,
		ledger:  vl,
		policy:  policy,
		guard:   g,
		notify:  notify,
		journal: rec,
		params:  params,
		logger:  log,
		now:     time.Now,
	}
}

// WithClock replaces the time source; tests use it to pin deadlines.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// enter takes the re-entrancy guard and rejects the call while paused.
func (s *Service) enter() (func(), error) {
	release, err := s.guard.Enter()
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckActive(); err != nil {
		release()
		return nil, err
	}
	return release, nil
}
