package pool

import (
	"stakehub/internal/domain"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// Views never take the guard and are served while paused.

func (s *Service) GetPool(id domain.PoolID) (*domain.Pool, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return nil, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	return &p, nil
}

func (s *Service) GetStake(id domain.PoolID, participant domain.Address, choice domain.Choice) (*domain.UserStake, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return nil, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if !p.ValidChoice(choice) {
		return nil, errors.Validationf(errors.ErrInvalidChoice, "choice %d of %d", choice, p.ChoiceCount)
	}
	st, _ := s.store.Stake(stakeKey(id, participant, choice))
	return &st, nil
}

func (s *Service) Participants(id domain.PoolID) ([]domain.Address, error) {
	if _, ok := s.store.Pool(id); !ok {
		return nil, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	return s.store.Participants(id), nil
}

func (s *Service) ChoiceTotals(id domain.PoolID) ([]decimal.Decimal, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return nil, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	return p.ChoiceTotals, nil
}

// PendingReward is what ClaimReward would pay caller right now; zero when the
// pool is not resolved or the reward was already claimed.
func (s *Service) PendingReward(id domain.PoolID, participant domain.Address) (decimal.Decimal, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusResolved {
		return decimal.Zero, nil
	}
	st, _ := s.store.Stake(stakeKey(id, participant, p.WinningChoice))
	if st.Claimed {
		return decimal.Zero, nil
	}
	return s.reward(p, st), nil
}

// PendingRefund is what ClaimRefund would pay; zero unless the pool is
// cancelled and the refund is still outstanding.
func (s *Service) PendingRefund(id domain.PoolID, participant domain.Address) (decimal.Decimal, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return decimal.Zero, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusCancelled {
		return decimal.Zero, nil
	}
	amount := decimal.Zero
	for _, st := range s.store.StakesOf(id, participant) {
		if st.Claimed {
			return decimal.Zero, nil
		}
		amount = amount.Add(st.Amount)
	}
	return amount, nil
}
