package pool

import (
	"context"
	"strconv"
	"strings"
	"time"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/settlement"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// CreatePoolRequest describes a new pool. The platform fee is taken from the
// policy at creation time and frozen on the pool.
type CreatePoolRequest struct {
	ID            domain.PoolID
	ChoiceCount   uint8
	Deadline      time.Time
	MinStake      decimal.Decimal
	MaxStake      decimal.Decimal
	Seed          decimal.Decimal
	CreatorFeeBps uint16
}

// CreatePool opens a pool owned by caller and escrows the seed, if any.
func (s *Service) CreatePool(ctx context.Context, caller domain.Address, req CreatePoolRequest) (*domain.Pool, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now()
	platformBps := s.policy.PlatformFeeBps()
	if err := s.validateCreate(req, now, platformBps); err != nil {
		return nil, err
	}

	p := domain.Pool{
		ID:             req.ID,
		Originator:     caller,
		ChoiceCount:    req.ChoiceCount,
		Deadline:       req.Deadline,
		MinStake:       req.MinStake,
		MaxStake:       req.MaxStake,
		SeedAmount:     req.Seed,
		PlatformFeeBps: platformBps,
		CreatorFeeBps:  req.CreatorFeeBps,
		TotalStaked:    decimal.Zero,
		ChoiceTotals:   make([]decimal.Decimal, req.ChoiceCount),
		Status:         domain.PoolStatusActive,
		CreatedAt:      now,
	}
	for i := range p.ChoiceTotals {
		p.ChoiceTotals[i] = decimal.Zero
	}

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutPool(tx, p)
	if req.Seed.IsPositive() {
		if err := s.ledger.Pull(ctx, caller, req.Seed); err != nil {
			return nil, errors.Wrap(err, "escrow seed")
		}
	}
	tx.Commit()

	s.logger.Info("Pool created", map[string]interface{}{
		"pool_id":      string(p.ID),
		"originator":   caller,
		"choice_count": p.ChoiceCount,
		"deadline":     p.Deadline.Format(time.RFC3339),
		"seed":         p.SeedAmount,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.PoolCreated,
		Subject: p.ID,
		Actor:   caller,
		Amount:  p.SeedAmount,
		Data: map[string]string{
			"choice_count": strconv.Itoa(int(p.ChoiceCount)),
			"deadline":     p.Deadline.UTC().Format(time.RFC3339),
		},
	})
	s.notify.CreatorActivity(ctx, caller, true, 0, decimal.Zero)

	out := p.Clone()
	return &out, nil
}

func (s *Service) validateCreate(req CreatePoolRequest, now time.Time, platformBps uint16) error {
	if strings.TrimSpace(string(req.ID)) == "" {
		return errors.Validation(errors.ErrEmptyID)
	}
	if _, exists := s.store.Pool(req.ID); exists {
		return errors.Statef(errors.ErrPoolExists, "pool %s", req.ID)
	}
	if req.ChoiceCount < domain.MinChoices || req.ChoiceCount > domain.MaxChoices {
		return errors.Validationf(errors.ErrInvalidChoiceCount, "got %d, want %d-%d", req.ChoiceCount, domain.MinChoices, domain.MaxChoices)
	}
	if req.Deadline.Before(now.Add(s.params.MinDeadlineBuffer)) {
		return errors.Validationf(errors.ErrDeadlineTooSoon, "deadline must be at least %s ahead", s.params.MinDeadlineBuffer)
	}
	if req.MinStake.LessThan(s.params.MinStakeFloor) {
		return errors.Validationf(errors.ErrMinStakeTooLow, "minimum %s, floor %s", req.MinStake, s.params.MinStakeFloor)
	}
	if req.MaxStake.LessThan(req.MinStake) {
		return errors.Validationf(errors.ErrInvalidStakeBounds, "min %s, max %s", req.MinStake, req.MaxStake)
	}
	if req.Seed.IsNegative() {
		return errors.Validation(errors.ErrInvalidAmount)
	}
	for _, amt := range []decimal.Decimal{req.MinStake, req.MaxStake, req.Seed} {
		if !s.params.Representable(amt) {
			return errors.Validationf(errors.ErrInvalidAmount, "%s has more than %d decimal places", amt, s.params.Precision)
		}
	}
	if feeCap := s.policy.FeeCapBps(); uint32(req.CreatorFeeBps)+uint32(platformBps) > uint32(feeCap) {
		return errors.Validationf(errors.ErrFeeTooHigh, "creator %d + platform %d bps exceeds cap %d", req.CreatorFeeBps, platformBps, feeCap)
	}
	return nil
}

// Resolve closes an active pool on winningChoice, freezes the fee split and
// pays both fees. Rewards are pulled later by each winner.
func (s *Service) Resolve(ctx context.Context, caller domain.Address, id domain.PoolID, winning domain.Choice) (*domain.Pool, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.activePool(id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanResolve(caller, p.Originator) {
		return nil, errors.Unauthorized(errors.ErrUnauthorized)
	}
	if !p.ValidChoice(winning) {
		return nil, errors.Validationf(errors.ErrInvalidChoice, "choice %d of %d", winning, p.ChoiceCount)
	}

	now := s.now()
	fees := settlement.ComputeFees(p.Pot(), p.PlatformFeeBps, p.CreatorFeeBps, s.params.Precision)
	p.Status = domain.PoolStatusResolved
	p.WinningChoice = winning
	p.ResolvedAt = &now
	p.PlatformFee = fees.Platform
	p.CreatorFee = fees.Creator
	p.PayoutPool = fees.Payout

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutPool(tx, p)
	if err := s.ledger.PushAll(ctx, settlement.FeeTransfers(s.policy.FeeRecipient(), p.Originator, fees)...); err != nil {
		return nil, errors.Wrap(err, "pay fees")
	}
	tx.Commit()

	participants := s.store.Participants(id)
	s.logger.Info("Pool resolved", map[string]interface{}{
		"pool_id":        string(id),
		"winning_choice": winning,
		"pot":            p.Pot(),
		"platform_fee":   fees.Platform,
		"creator_fee":    fees.Creator,
		"payout_pool":    fees.Payout,
		"participants":   len(participants),
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.PoolResolved,
		Subject: id,
		Actor:   caller,
		Amount:  fees.Payout,
		Data: map[string]string{
			"winning_choice": strconv.Itoa(int(winning)),
			"platform_fee":   fees.Platform.String(),
			"creator_fee":    fees.Creator.String(),
		},
	})

	for _, a := range participants {
		st, _ := s.store.Stake(stakeKey(id, a, winning))
		won := st.Amount.IsPositive()
		s.notify.ChallengeResult(ctx, a, won, s.store.ParticipantTotal(id, a), s.reward(p, st))
	}
	s.notify.CreatorActivity(ctx, p.Originator, false, len(participants), fees.Creator)

	out := p.Clone()
	return &out, nil
}

// Cancel moves an active pool to Cancelled. No value moves here; stakers and
// the originator pull their refunds afterwards.
func (s *Service) Cancel(ctx context.Context, caller domain.Address, id domain.PoolID, reason string) (*domain.Pool, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.activePool(id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanCancel(caller, p.Originator) {
		return nil, errors.Unauthorized(errors.ErrUnauthorized)
	}

	p.Status = domain.PoolStatusCancelled
	p.CancelReason = reason

	tx := s.store.Begin()
	defer tx.Rollback()
	s.store.PutPool(tx, p)
	tx.Commit()

	s.logger.Info("Pool cancelled", map[string]interface{}{
		"pool_id":      string(id),
		"by":           caller,
		"reason":       reason,
		"total_staked": p.TotalStaked,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.PoolCancelled,
		Subject: id,
		Actor:   caller,
		Amount:  p.TotalStaked,
		Data:    map[string]string{"reason": reason},
	})

	out := p.Clone()
	return &out, nil
}

func (s *Service) activePool(id domain.PoolID) (domain.Pool, error) {
	p, ok := s.store.Pool(id)
	if !ok {
		return domain.Pool{}, errors.Statef(errors.ErrPoolNotFound, "pool %s", id)
	}
	if p.Status != domain.PoolStatusActive {
		return domain.Pool{}, errors.Statef(errors.ErrPoolNotActive, "pool %s is %s", id, p.Status)
	}
	return p, nil
}
