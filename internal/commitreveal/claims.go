package commitreveal

import (
	"context"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// ClaimReward pays caller's share of a finalized round's payout pool. Only a
// commitment revealed on the winning choice earns one.
func (s *Service) ClaimReward(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return decimal.Zero, err
	}
	if r.Status != domain.RoundStatusFinalized {
		return decimal.Zero, errors.Statef(errors.ErrRoundNotFinalized, "round %s is %s", id, r.Status)
	}
	c, ok := s.store.Commitment(id, caller)
	if !ok {
		return decimal.Zero, errors.State(errors.ErrNoCommitment)
	}
	if !c.Revealed {
		return decimal.Zero, errors.State(errors.ErrNotRevealed)
	}
	if c.RevealedChoice != r.WinningChoice {
		return decimal.Zero, errors.State(errors.ErrNoWinningStake)
	}
	if c.Claimed {
		return decimal.Zero, errors.State(errors.ErrAlreadyClaimed)
	}
	amount := s.reward(r, c)
	if !amount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrNothingToClaim)
	}

	c.Claimed = true

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutCommitment(tx, c)
	if err := s.ledger.Push(ctx, caller, amount); err != nil {
		return decimal.Zero, errors.Wrap(err, "pay reward")
	}
	tx.Commit()

	s.logger.Info("Round reward claimed", map[string]interface{}{
		"round_id":    string(id),
		"participant": caller,
		"stake":       c.Amount,
		"reward":      amount,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.RoundRewardPaid, Subject: id, Actor: caller, Amount: amount})

	return amount, nil
}

// ClaimRefund returns a locked stake that will never be settled: any
// commitment on a cancelled round, or an unrevealed one on a finalized round.
func (s *Service) ClaimRefund(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.Status.Terminal() {
		return decimal.Zero, errors.Statef(errors.ErrRoundNotFinalized, "round %s is %s", id, r.Status)
	}
	c, ok := s.store.Commitment(id, caller)
	if !ok {
		return decimal.Zero, errors.State(errors.ErrNoCommitment)
	}
	if c.Claimed {
		return decimal.Zero, errors.State(errors.ErrAlreadyClaimed)
	}
	amount := refund(r, c)
	if !amount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrNothingToClaim)
	}

	c.Claimed = true

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutCommitment(tx, c)
	if err := s.ledger.Push(ctx, caller, amount); err != nil {
		return decimal.Zero, errors.Wrap(err, "pay refund")
	}
	tx.Commit()

	s.logger.Info("Round refund claimed", map[string]interface{}{
		"round_id":    string(id),
		"participant": caller,
		"amount":      amount,
		"revealed":    c.Revealed,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.RoundRefundPaid, Subject: id, Actor: caller, Amount: amount})

	return amount, nil
}

// ReclaimSeed returns the originator's seed once a round is cancelled.
func (s *Service) ReclaimSeed(ctx context.Context, caller domain.Address, id domain.PoolID) (decimal.Decimal, error) {
	release, err := s.enter()
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return decimal.Zero, err
	}
	if r.Status != domain.RoundStatusCancelled {
		return decimal.Zero, errors.Statef(errors.ErrSeedUnavailable, "round %s is %s", id, r.Status)
	}
	if caller != r.Originator {
		return decimal.Zero, errors.Unauthorized(errors.ErrUnauthorized)
	}
	if r.SeedReclaimed || !r.SeedAmount.IsPositive() {
		return decimal.Zero, errors.State(errors.ErrSeedUnavailable)
	}

	r.SeedReclaimed = true

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutRound(tx, r)
	if err := s.ledger.Push(ctx, caller, r.SeedAmount); err != nil {
		return decimal.Zero, errors.Wrap(err, "return seed")
	}
	tx.Commit()

	s.logger.Info("Round seed reclaimed", map[string]interface{}{
		"round_id":   string(id),
		"originator": caller,
		"amount":     r.SeedAmount,
	})
	s.journal.Record(ctx, journal.Event{Type: journal.RoundSeedClaimed, Subject: id, Actor: caller, Amount: r.SeedAmount})

	return r.SeedAmount, nil
}
