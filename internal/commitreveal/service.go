package commitreveal

import (
	"time"

	"stakehub/internal/access"
	"stakehub/internal/domain"
	"stakehub/internal/guard"
	"stakehub/internal/journal"
	"stakehub/internal/ledger"
	"stakehub/internal/reputation"
	"stakehub/internal/settlement"
	"stakehub/internal/stake"
	"stakehub/pkg/errors"
	"stakehub/pkg/logger"

	"github.com/shopspring/decimal"
)

// Service runs commit-reveal rounds. It shares the guard and policy with the
// pool service so a re-entrant call into either is rejected.
type Service struct {
	store   *stake.RoundStore
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
	store *stake.RoundStore,
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

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

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

func (s *Service) round(id domain.PoolID) (domain.Round, error) {
	r, ok := s.store.Round(id)
	if !ok {
		return domain.Round{}, errors.Statef(errors.ErrRoundNotFound, "round %s", id)
	}
	return r, nil
}

// reward is shared by ClaimReward and PendingReward.
func (s *Service) reward(r domain.Round, c domain.Commitment) decimal.Decimal {
	if r.Status != domain.RoundStatusFinalized || !c.Revealed || c.RevealedChoice != r.WinningChoice {
		return decimal.Zero
	}
	return settlement.Reward(c.Amount, r.PayoutPool, r.ChoiceTotals[r.WinningChoice], s.params.Precision)
}

// refund is what ClaimRefund pays: the whole locked stake on a cancelled
// round, or an unrevealed stake on a finalized one.
func refund(r domain.Round, c domain.Commitment) decimal.Decimal {
	switch r.Status {
	case domain.RoundStatusCancelled:
		return c.Amount
	case domain.RoundStatusFinalized:
		if !c.Revealed {
			return c.Amount
		}
	}
	return decimal.Zero
}
