package commitreveal

import (
	"context"
	"strconv"
	"strings"
	"time"

	"stakehub/internal/domain"
	"stakehub/internal/journal"
	"stakehub/internal/settlement"
	"stakehub/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// CreateRoundRequest describes a new round. Deadlines are derived from the
// creation time and the two window lengths.
type CreateRoundRequest struct {
	ID             domain.PoolID
	ChoiceCount    uint8
	CommitDuration time.Duration
	RevealDuration time.Duration
	MinStake       decimal.Decimal
	MaxStake       decimal.Decimal
	Seed           decimal.Decimal
	CreatorFeeBps  uint16
}

// CreateRound opens a round in its commit phase and escrows the seed.
func (s *Service) CreateRound(ctx context.Context, caller domain.Address, req CreateRoundRequest) (*domain.Round, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	platformBps := s.policy.PlatformFeeBps()
	if err := s.validateCreate(req, platformBps); err != nil {
		return nil, err
	}

	now := s.now()
	commitDeadline := now.Add(req.CommitDuration)
	r := domain.Round{
		ID:             req.ID,
		Originator:     caller,
		ChoiceCount:    req.ChoiceCount,
		CommitDeadline: commitDeadline,
		RevealDeadline: commitDeadline.Add(req.RevealDuration),
		MinStake:       req.MinStake,
		MaxStake:       req.MaxStake,
		SeedAmount:     req.Seed,
		PlatformFeeBps: platformBps,
		CreatorFeeBps:  req.CreatorFeeBps,
		TotalCommitted: decimal.Zero,
		TotalRevealed:  decimal.Zero,
		ChoiceTotals:   make([]decimal.Decimal, req.ChoiceCount),
		Status:         domain.RoundStatusCommitPhase,
		CreatedAt:      now,
	}
	for i := range r.ChoiceTotals {
		r.ChoiceTotals[i] = decimal.Zero
	}

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutRound(tx, r)
	if req.Seed.IsPositive() {
		if err := s.ledger.Pull(ctx, caller, req.Seed); err != nil {
			return nil, errors.Wrap(err, "escrow seed")
		}
	}
	tx.Commit()

	s.logger.Info("Round created", map[string]interface{}{
		"round_id":        string(r.ID),
		"originator":      caller,
		"commit_deadline": r.CommitDeadline.Format(time.RFC3339),
		"reveal_deadline": r.RevealDeadline.Format(time.RFC3339),
		"seed":            r.SeedAmount,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.RoundCreated,
		Subject: r.ID,
		Actor:   caller,
		Amount:  r.SeedAmount,
		Data: map[string]string{
			"choice_count":    strconv.Itoa(int(r.ChoiceCount)),
			"commit_deadline": r.CommitDeadline.UTC().Format(time.RFC3339),
			"reveal_deadline": r.RevealDeadline.UTC().Format(time.RFC3339),
		},
	})
	s.notify.CreatorActivity(ctx, caller, true, 0, decimal.Zero)

	out := r.Clone()
	return &out, nil
}

func (s *Service) validateCreate(req CreateRoundRequest, platformBps uint16) error {
	if strings.TrimSpace(string(req.ID)) == "" {
		return errors.Validation(errors.ErrEmptyID)
	}
	if _, exists := s.store.Round(req.ID); exists {
		return errors.Statef(errors.ErrRoundExists, "round %s", req.ID)
	}
	if req.ChoiceCount < domain.MinChoices || req.ChoiceCount > domain.MaxChoices {
		return errors.Validationf(errors.ErrInvalidChoiceCount, "got %d, want %d-%d", req.ChoiceCount, domain.MinChoices, domain.MaxChoices)
	}
	if req.CommitDuration < s.params.MinCommitDuration {
		return errors.Validationf(errors.ErrCommitWindowShort, "%s < %s", req.CommitDuration, s.params.MinCommitDuration)
	}
	if req.RevealDuration < s.params.MinRevealDuration {
		return errors.Validationf(errors.ErrRevealWindowShort, "%s < %s", req.RevealDuration, s.params.MinRevealDuration)
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

// Commit locks amount from caller under hash. The choice stays hidden; the
// stake counts toward the round only once revealed.
func (s *Service) Commit(ctx context.Context, caller domain.Address, id domain.PoolID, hash common.Hash, amount decimal.Decimal) (*domain.Commitment, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.RoundStatusCommitPhase {
		return nil, errors.Statef(errors.ErrNotCommitPhase, "round %s is %s", id, r.Status)
	}
	if !s.now().Before(r.CommitDeadline) {
		return nil, errors.Statef(errors.ErrCommitClosed, "round %s closed commits at %s", id, r.CommitDeadline)
	}
	if _, exists := s.store.Commitment(id, caller); exists {
		return nil, errors.State(errors.ErrAlreadyCommitted)
	}
	if amount.LessThan(r.MinStake) {
		return nil, errors.Validationf(errors.ErrStakeTooLow, "stake %s, minimum %s", amount, r.MinStake)
	}
	if amount.GreaterThan(r.MaxStake) {
		return nil, errors.Validationf(errors.ErrStakeTooHigh, "stake %s, maximum %s", amount, r.MaxStake)
	}
	if !s.params.Representable(amount) {
		return nil, errors.Validationf(errors.ErrInvalidAmount, "stake %s has more than %d decimal places", amount, s.params.Precision)
	}
	if hash == (common.Hash{}) {
		return nil, errors.Validation(errors.ErrZeroCommitment)
	}

	c := domain.Commitment{
		RoundID:     id,
		Participant: caller,
		Hash:        hash,
		Amount:      amount,
	}
	r.TotalCommitted = r.TotalCommitted.Add(amount)

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutCommitment(tx, c)
	s.store.PutRound(tx, r)
	s.store.Credit(tx, id, caller, amount)
	if err := s.ledger.Pull(ctx, caller, amount); err != nil {
		return nil, errors.Wrap(err, "escrow commitment")
	}
	tx.Commit()

	s.logger.Info("Commitment placed", map[string]interface{}{
		"round_id":        string(id),
		"participant":     caller,
		"amount":          amount,
		"total_committed": r.TotalCommitted,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.RoundCommitted,
		Subject: id,
		Actor:   caller,
		Amount:  amount,
		Data:    map[string]string{"hash": hash.Hex()},
	})

	return &c, nil
}

// Reveal discloses caller's choice. The first reveal after the commit
// deadline moves the round into its reveal phase; that transition is undone
// if the reveal itself fails.
func (s *Service) Reveal(ctx context.Context, caller domain.Address, id domain.PoolID, choice domain.Choice, secret common.Hash) (*domain.Commitment, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	now := s.now()

	tx := s.store.Begin()
	defer tx.Rollback()

	switch r.Status {
	case domain.RoundStatusCommitPhase:
		if now.Before(r.CommitDeadline) {
			return nil, errors.Statef(errors.ErrRevealNotOpen, "reveals open at %s", r.CommitDeadline)
		}
		r.Status = domain.RoundStatusRevealPhase
		s.store.PutRound(tx, r)
	case domain.RoundStatusRevealPhase:
	default:
		return nil, errors.Statef(errors.ErrRoundTerminal, "round %s is %s", id, r.Status)
	}
	if !now.Before(r.RevealDeadline) {
		return nil, errors.Statef(errors.ErrRevealClosed, "round %s closed reveals at %s", id, r.RevealDeadline)
	}

	c, ok := s.store.Commitment(id, caller)
	if !ok {
		return nil, errors.State(errors.ErrNoCommitment)
	}
	if c.Revealed {
		return nil, errors.State(errors.ErrAlreadyRevealed)
	}
	if !r.ValidChoice(choice) {
		return nil, errors.Validationf(errors.ErrInvalidChoice, "choice %d of %d", choice, r.ChoiceCount)
	}
	if Hash(choice, secret, caller) != c.Hash {
		return nil, errors.Validation(errors.ErrCommitmentMismatch)
	}

	c.Revealed = true
	c.RevealedChoice = choice
	r.ChoiceTotals[choice] = r.ChoiceTotals[choice].Add(c.Amount)
	r.TotalRevealed = r.TotalRevealed.Add(c.Amount)
	r.RevealCount++

	s.store.PutCommitment(tx, c)
	s.store.PutRound(tx, r)
	tx.Commit()

	s.logger.Info("Commitment revealed", map[string]interface{}{
		"round_id":       string(id),
		"participant":    caller,
		"choice":         choice,
		"amount":         c.Amount,
		"total_revealed": r.TotalRevealed,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.RoundRevealed,
		Subject: id,
		Actor:   caller,
		Amount:  c.Amount,
		Data:    map[string]string{"choice": strconv.Itoa(int(choice))},
	})

	return &c, nil
}

// Finalize settles a round on winning. It is allowed in the reveal phase, or
// from the commit phase once the reveal deadline has passed without any
// reveal. Fees are computed on revealed stake plus the seed only.
func (s *Service) Finalize(ctx context.Context, caller domain.Address, id domain.PoolID, winning domain.Choice) (*domain.Round, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case r.Status.Terminal():
		return nil, errors.Statef(errors.ErrRoundTerminal, "round %s is %s", id, r.Status)
	case r.Status == domain.RoundStatusRevealPhase:
	case r.Status == domain.RoundStatusCommitPhase && !now.Before(r.RevealDeadline) && r.RevealCount == 0:
	default:
		return nil, errors.Statef(errors.ErrCannotFinalize, "round %s is %s", id, r.Status)
	}
	if !s.policy.CanResolve(caller, r.Originator) {
		return nil, errors.Unauthorized(errors.ErrUnauthorized)
	}
	if !r.ValidChoice(winning) {
		return nil, errors.Validationf(errors.ErrInvalidChoice, "choice %d of %d", winning, r.ChoiceCount)
	}

	fees := settlement.ComputeFees(r.Pot(), r.PlatformFeeBps, r.CreatorFeeBps, s.params.Precision)
	r.Status = domain.RoundStatusFinalized
	r.WinningChoice = winning
	r.FinalizedAt = &now
	r.PlatformFee = fees.Platform
	r.CreatorFee = fees.Creator
	r.PayoutPool = fees.Payout

	tx := s.store.Begin()
	defer tx.Rollback()

	s.store.PutRound(tx, r)
	if err := s.ledger.PushAll(ctx, settlement.FeeTransfers(s.policy.FeeRecipient(), r.Originator, fees)...); err != nil {
		return nil, errors.Wrap(err, "pay fees")
	}
	tx.Commit()

	participants := s.store.Participants(id)
	s.logger.Info("Round finalized", map[string]interface{}{
		"round_id":        string(id),
		"winning_choice":  winning,
		"total_committed": r.TotalCommitted,
		"total_revealed":  r.TotalRevealed,
		"reveals":         r.RevealCount,
		"platform_fee":    fees.Platform,
		"creator_fee":     fees.Creator,
		"payout_pool":     fees.Payout,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.RoundFinalized,
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
		c, _ := s.store.Commitment(id, a)
		won := c.Revealed && c.RevealedChoice == winning
		s.notify.ChallengeResult(ctx, a, won, c.Amount, s.reward(r, c))
	}
	s.notify.CreatorActivity(ctx, r.Originator, false, len(participants), fees.Creator)

	out := r.Clone()
	return &out, nil
}

// Cancel ends a round before finalization. Every committed stake becomes
// refundable.
func (s *Service) Cancel(ctx context.Context, caller domain.Address, id domain.PoolID, reason string) (*domain.Round, error) {
	release, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return nil, errors.Statef(errors.ErrRoundTerminal, "round %s is %s", id, r.Status)
	}
	if !s.policy.CanCancel(caller, r.Originator) {
		return nil, errors.Unauthorized(errors.ErrUnauthorized)
	}

	r.Status = domain.RoundStatusCancelled
	r.CancelReason = reason

	tx := s.store.Begin()
	defer tx.Rollback()
	s.store.PutRound(tx, r)
	tx.Commit()

	s.logger.Info("Round cancelled", map[string]interface{}{
		"round_id":        string(id),
		"by":              caller,
		"reason":          reason,
		"total_committed": r.TotalCommitted,
	})
	s.journal.Record(ctx, journal.Event{
		Type:    journal.RoundCancelled,
		Subject: id,
		Actor:   caller,
		Amount:  r.TotalCommitted,
		Data:    map[string]string{"reason": reason},
	})

	out := r.Clone()
	return &out, nil
}
