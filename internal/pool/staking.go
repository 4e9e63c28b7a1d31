package pool

import (
	"context"
	"strconv"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/stake"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

func stakeKey(id domain.PoolID, a domain.Address, c domain.Choice) stake.Key {
	return stake.Key{Pool: id, Participant: a, Choice: c}
}

// Stake escrows amount from caller on choice. The cumulative stake of one
// participant on one choice never exceeds the pool's maximum.
func (s *Service) Stake(ctx context.Context, caller domain.Address, id domain.PoolID, choice domain.Choice, amount decimal.Decimal) (*domain.UserStake, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.activePool(id)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(p.Deadline) {
		return nil, errors.Statef(errors.ErrStakingClosed, "pool %s closed at %s", id, p.Deadline)
	}
	if !p.ValidChoice(choice) {
		return nil, errors.Validationf(errors.ErrInvalidChoice, "choice %d of %d", choice, p.ChoiceCount)
	}
	if amount.LessThan(p.MinStake) {
		return nil, errors.Validationf(errors.ErrStakeTooLow, "stake %s, minimum %s", amount, p.MinStake)
	}
	if amount.GreaterThan(p.MaxStake) {
		return nil, errors.Validationf(errors.ErrStakeTooHigh, "stake %s, maximum %s", amount, p.MaxStake)
	}
	if !s.params.Representable(amount) {
		return nil, errors.Validationf(errors.ErrInvalidAmount, "stake %s has more than %d decimal places", amount, s.params.Precision)
	}
	st, _ := s.store.Stake(stakeKey(id, caller, choice))
	if st.Amount.Add(amount).GreaterThan(p.MaxStake) {
		return nil, errors.Validationf(errors.ErrStakeCeiling, "existing %s + %s exceeds %s", st.Amount, amount, p.MaxStake)
	}

	st.Amount = st.Amount.Add(amount)
	p.ChoiceTotals[choice] = p.ChoiceTotals[choice].Add(amount)
	p.TotalStaked = p.TotalStaked.Add(amount)

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutStake(tx, st)
	s.store.PutPool(tx, p)
	s.store.Credit(tx, id, caller, amount)
	if err := s.ledger.Pull(ctx, caller, amount); err != nil {
		return nil, errors.Wrap(err, "escrow stake")
	}
	tx.Commit()

	s.logger.Info("Stake placed", map[string]interface{}{
		"pool_id":      string(id),
		"participant":  caller,
		"choice":       choice,
		"amount":       amount,
		"total_staked": p.TotalStaked,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.PoolStaked,
		Subject: id,
		Actor:   caller,
		Amount:  amount,
		Data:    map[string]string{"choice": strconv.Itoa(int(choice))},
	})

	return &st, nil
}
