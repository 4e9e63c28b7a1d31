package pool

import (
	"context"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/settlement"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// reward is the single place a pool reward is computed; claims and the
// pending view both go through it.
func (s *Service) reward(p domain.Pool, st domain.UserStake) decimal.Decimal {
	if p.Status != domain.PoolStatusResolved || st.Choice != p.WinningChoice {
		return decimal.Zero
	}
	return settlement.Reward(st.Amount, p.PayoutPool, p.ChoiceTotals[p.WinningChoice], s.params.Precision)
}

// ClaimReward pays caller's share of the payout pool. The claimed flag and
// the transfer commit together.
func (s *Service) ClaimReward(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	p, ok := s.store.Pool(id)
	if !ok {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusResolved {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotResolved, "pool %s is %s", id, p.Status)
	}
	st, _ := s.store.Stake(stakeKey(id, caller, p.WinningChoice))
	if !st.Amount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrNoWinningStake)
	}
	if st.Claimed {
		return decimal.Zero, errors.State(errors.ErrAlreadyClaimed)
	}
	amount := s.reward(p, st)
	if !amount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrNothingToClaim)
	}

	st.Claimed = true

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutStake(tx, st)
	if err := s.ledger.Push(ctx, caller, amount); err != nil {
		return decimal.Zero, errors.Wrap(err, "pay reward")
	}
	tx.Commit()

	s.logger.Info("Reward claimed", map[string]interface{}{
		"pool_id":     string(id),
		"participant": caller,
		"stake":       st.Amount,
		"reward":      amount,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.RewardClaimed, Subject: id, Actor: caller, Amount: amount})

	return amount, nil
}

// ClaimRefund returns caller's total stake across every choice of a
// cancelled pool.
func (s *Service) ClaimRefund(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	p, ok := s.store.Pool(id)
	if !ok {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusCancelled {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotCancelled, "pool %s is %s", id, p.Status)
	}
	stakes := s.store.StakesOf(id, caller)
	if len(stakes) == 0 {
		return decimal.Zero, errors.State(errors.ErrNoStake)
	}

	amount := decimal.Zero
	for _, st := range stakes {
		if st.Claimed {
			return decimal.Zero, errors.State(errors.ErrAlreadyClaimed)
		}
		amount = amount.Add(st.Amount)
	}

	tx := s.store.Begin()
	defer tx.Rollback()

	for _, st := range stakes {
		st.Claimed = true
		s.store.PutStake(tx, st)
	}
	if err := s.ledger.Push(ctx, caller, amount); err != nil {
		return decimal.Zero, errors.Wrap(err, "pay refund")
	}
	tx.Commit()

	s.logger.Info("Refund claimed", map[string]interface{}{
		"pool_id":     string(id),
		"participant": caller,
		"amount":      amount,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.RefundClaimed, Subject: id, Actor: caller, Amount: amount})

	return amount, nil
}

// ReclaimSeed returns the originator's seed once a pool is cancelled.
func (s *Service) ReclaimSeed(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	p, ok := s.store.Pool(id)
	if !ok {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusCancelled {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotCancelled, "pool %s is %s", id, p.Status)
	}
	if caller != p.Originator {
		return decimal.Zero, errors.Unauthorized(errors.ErrUnauthorized)
	}
	if p.SeedReclaimed || !p.SeedAmount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrSeedUnavailable)
	}

	p.SeedReclaimed = true

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutPool(tx, p)
	if err := s.ledger.Push(ctx, caller, p.SeedAmount); err != nil {
		return decimal.Zero, errors.Wrap(err, "return seed")
	}
	tx.Commit()

	s.logger.Info("Seed reclaimed", map[string]interface{}{
		"pool_id":    string(id),
		"originator": caller,
		"amount":     p.SeedAmount,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.SeedReclaimed, Subject: id, Actor: caller, Amount: p.SeedAmount})

	return p.SeedAmount, nil
}
