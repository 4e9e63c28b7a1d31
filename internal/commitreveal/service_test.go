package commitreveal

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
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

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	resolver = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	creator  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000f1")

	base           = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	commitDeadline = base.Add(time.Hour)
	revealDeadline = commitDeadline.Add(30 * time.Minute)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func secret(s string) common.Hash { return common.BytesToHash([]byte(s)) }

type fixture struct {
	svc     *Service
	ledger  *ledger.Memory
	policy  *access.Policy
	store   *stake.RoundStore
	state   *stake.Bolt
	events  *journal.Memory
	tracker *reputation.Tracker
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	policy, err := access.NewPolicy(owner, treasury, 1000, 200)
	require.NoError(t, err)
	require.NoError(t, policy.GrantResolver(owner, resolver))

	vl := ledger.NewMemory()
	for _, a := range []domain.Address{creator, alice, bob, carol, stranger} {
		vl.Mint(a, d("100"))
		vl.Approve(a, d("100"))
	}

	f := &fixture{
		ledger:  vl,
		policy:  policy,
		store:   stake.NewRoundStore(),
		events:  journal.NewMemory(),
		tracker: reputation.NewTracker(),
		now:     base,
	}
	f.svc = f.service()
	return f
}

func (f *fixture) service() *Service {
	log := logger.NewNop()
	return NewService(
		f.store,
		f.ledger,
		f.policy,
		guard.New(),
		reputation.NewDispatcher(log, f.tracker),
		journal.NewRecorder(f.events, log, nil),
		settlement.DefaultParams(),
		log,
	).WithClock(func() time.Time { return f.now })
}

// restart reopens the state file and rebuilds the round store and service
// from it, keeping the ledger.
func (f *fixture) restart(t *testing.T, path string) {
	t.Helper()
	if f.state != nil {
		require.NoError(t, f.state.Close())
	}
	state, err := stake.OpenBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	f.state = state
	f.store = stake.NewRoundStore()
	require.NoError(t, f.store.Restore(state, logger.NewNop()))
	f.svc = f.service()
}

func (f *fixture) createRound(t *testing.T, id domain.PoolID, seed string) *domain.Round {
	t.Helper()
	r, err := f.svc.CreateRound(context.Background(), creator, CreateRoundRequest{
		ID:             id,
		ChoiceCount:    3,
		CommitDuration: time.Hour,
		RevealDuration: 30 * time.Minute,
		MinStake:       d("0.5"),
		MaxStake:       d("5"),
		Seed:           d(seed),
		CreatorFeeBps:  100,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) commit(t *testing.T, who domain.Address, id domain.PoolID, c domain.Choice, amount string) {
	t.Helper()
	_, err := f.svc.Commit(context.Background(), who, id, Hash(c, secret(who.Hex()), who), d(amount))
	require.NoError(t, err)
}

func (f *fixture) reveal(t *testing.T, who domain.Address, id domain.PoolID, c domain.Choice) {
	t.Helper()
	_, err := f.svc.Reveal(context.Background(), who, id, c, secret(who.Hex()))
	require.NoError(t, err)
}

func TestHashBindsParticipant(t *testing.T) {
	s := secret("shared")
	assert.Equal(t, Hash(1, s, alice), Hash(1, s, alice))
	assert.NotEqual(t, Hash(1, s, alice), Hash(1, s, bob))
	assert.NotEqual(t, Hash(1, s, alice), Hash(2, s, alice))
	assert.NotEqual(t, common.Hash{}, Hash(0, common.Hash{}, common.Address{}))
}

func TestCreateRoundValidation(t *testing.T) {
	f := newFixture(t)
	f.createRound(t, "taken", "0")

	valid := CreateRoundRequest{
		ID:             "round-1",
		ChoiceCount:    2,
		CommitDuration: time.Hour,
		RevealDuration: 30 * time.Minute,
		MinStake:       d("0.001"),
		MaxStake:       d("1"),
	}

	tests := []struct {
		name   string
		mutate func(r *CreateRoundRequest)
		want   error
		kind   errors.Kind
	}{
		{"duplicate id", func(r *CreateRoundRequest) { r.ID = "taken" }, errors.ErrRoundExists, errors.KindState},
		{"too many choices", func(r *CreateRoundRequest) { r.ChoiceCount = 11 }, errors.ErrInvalidChoiceCount, errors.KindValidation},
		{"short commit window", func(r *CreateRoundRequest) { r.CommitDuration = 59 * time.Minute }, errors.ErrCommitWindowShort, errors.KindValidation},
		{"short reveal window", func(r *CreateRoundRequest) { r.RevealDuration = 29 * time.Minute }, errors.ErrRevealWindowShort, errors.KindValidation},
		{"min below floor", func(r *CreateRoundRequest) { r.MinStake = d("0.0009") }, errors.ErrMinStakeTooLow, errors.KindValidation},
		{"min below precision", func(r *CreateRoundRequest) { r.MinStake = d("0.0010000000000000000001") }, errors.ErrInvalidAmount, errors.KindValidation},
		{"max below precision", func(r *CreateRoundRequest) { r.MaxStake = d("0.9999999999999999999999") }, errors.ErrInvalidAmount, errors.KindValidation},
		{"seed below precision", func(r *CreateRoundRequest) { r.Seed = d("1.0000000000000000000001") }, errors.ErrInvalidAmount, errors.KindValidation},
		{"fees over cap", func(r *CreateRoundRequest) { r.CreatorFeeBps = 801 }, errors.ErrFeeTooHigh, errors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := f.svc.CreateRound(context.Background(), creator, req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}

	r, err := f.svc.CreateRound(context.Background(), creator, valid)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusCommitPhase, r.Status)
	assert.Equal(t, base.Add(90*time.Minute), r.RevealDeadline)
}

func TestCommitRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")

	_, err := f.svc.Commit(ctx, alice, "r", common.Hash{}, d("1"))
	assert.ErrorIs(t, err, errors.ErrZeroCommitment)
	_, err = f.svc.Commit(ctx, alice, "r", secret("x"), d("0.4"))
	assert.ErrorIs(t, err, errors.ErrStakeTooLow)
	_, err = f.svc.Commit(ctx, alice, "r", secret("x"), d("5.01"))
	assert.ErrorIs(t, err, errors.ErrStakeTooHigh)
	_, err = f.svc.Commit(ctx, alice, "r", secret("x"), d("0.5000000000000000000001"))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	_, err = f.svc.Commit(ctx, alice, "missing", secret("x"), d("1"))
	assert.ErrorIs(t, err, errors.ErrRoundNotFound)

	f.commit(t, alice, "r", 0, "1")
	_, err = f.svc.Commit(ctx, alice, "r", secret("again"), d("1"))
	assert.ErrorIs(t, err, errors.ErrAlreadyCommitted)

	_, err = f.svc.Reveal(ctx, alice, "r", 0, secret(alice.Hex()))
	assert.ErrorIs(t, err, errors.ErrRevealNotOpen)

	f.now = commitDeadline
	_, err = f.svc.Commit(ctx, bob, "r", secret("late"), d("1"))
	assert.ErrorIs(t, err, errors.ErrCommitClosed)

	r, _ := f.svc.GetRound("r")
	assert.True(t, r.TotalCommitted.Equal(d("1")))
	assert.True(t, r.TotalRevealed.IsZero())
	assert.True(t, f.ledger.Custody().Equal(d("1")))
}

func TestRevealRequiresOwnCommitment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")

	aliceHash := Hash(2, secret("alice"), alice)
	_, err := f.svc.Commit(ctx, alice, "r", aliceHash, d("1"))
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, bob, "r", aliceHash, d("1"))
	require.NoError(t, err)

	f.now = commitDeadline
	_, err = f.svc.Reveal(ctx, bob, "r", 2, secret("alice"))
	assert.ErrorIs(t, err, errors.ErrCommitmentMismatch)
	_, err = f.svc.Reveal(ctx, alice, "r", 1, secret("alice"))
	assert.ErrorIs(t, err, errors.ErrCommitmentMismatch)
	_, err = f.svc.Reveal(ctx, alice, "r", 3, secret("alice"))
	assert.ErrorIs(t, err, errors.ErrInvalidChoice)

	c, err := f.svc.Reveal(ctx, alice, "r", 2, secret("alice"))
	require.NoError(t, err)
	assert.True(t, c.Revealed)
	assert.Equal(t, domain.Choice(2), c.RevealedChoice)

	_, err = f.svc.Reveal(ctx, alice, "r", 2, secret("alice"))
	assert.ErrorIs(t, err, errors.ErrAlreadyRevealed)

	totals, _ := f.svc.ChoiceTotals("r")
	assert.True(t, totals[2].Equal(d("1")))
}

func TestFailedRevealDoesNotAdvancePhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")
	f.commit(t, alice, "r", 0, "1")

	f.now = commitDeadline.Add(time.Minute)
	_, err := f.svc.Reveal(ctx, stranger, "r", 0, secret("nothing"))
	assert.ErrorIs(t, err, errors.ErrNoCommitment)

	r, _ := f.svc.GetRound("r")
	assert.Equal(t, domain.RoundStatusCommitPhase, r.Status)

	f.reveal(t, alice, "r", 0)
	r, _ = f.svc.GetRound("r")
	assert.Equal(t, domain.RoundStatusRevealPhase, r.Status)
	assert.Equal(t, 1, r.RevealCount)
}

func TestRevealDeadlineBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")
	f.commit(t, alice, "r", 0, "1")
	f.commit(t, bob, "r", 1, "1")

	f.now = revealDeadline.Add(-time.Nanosecond)
	f.reveal(t, alice, "r", 0)

	f.now = revealDeadline
	_, err := f.svc.Reveal(ctx, bob, "r", 1, secret(bob.Hex()))
	assert.ErrorIs(t, err, errors.ErrRevealClosed)
	assert.Equal(t, errors.KindState, errors.KindOf(err))
}

func TestRoundSettlementWorkedExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")

	f.commit(t, alice, "r", 0, "2")
	f.commit(t, bob, "r", 1, "1")
	f.commit(t, carol, "r", 0, "1")

	f.now = commitDeadline
	f.reveal(t, alice, "r", 0)
	f.reveal(t, bob, "r", 1)

	_, err := f.svc.ClaimReward(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrRoundNotFinalized)

	r, err := f.svc.Finalize(ctx, resolver, "r", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusFinalized, r.Status)
	assert.True(t, r.PlatformFee.Equal(d("0.06")), r.PlatformFee.String())
	assert.True(t, r.CreatorFee.Equal(d("0.03")), r.CreatorFee.String())
	assert.True(t, r.PayoutPool.Equal(d("2.91")), r.PayoutPool.String())

	pending, err := f.svc.PendingReward("r", alice)
	require.NoError(t, err)
	paid, err := f.svc.ClaimReward(ctx, alice, "r")
	require.NoError(t, err)
	assert.True(t, paid.Equal(d("2.91")))
	assert.True(t, pending.Equal(paid))

	_, err = f.svc.ClaimReward(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrAlreadyClaimed)
	_, err = f.svc.ClaimReward(ctx, bob, "r")
	assert.ErrorIs(t, err, errors.ErrNoWinningStake)
	_, err = f.svc.ClaimReward(ctx, carol, "r")
	assert.ErrorIs(t, err, errors.ErrNotRevealed)
	_, err = f.svc.ClaimRefund(ctx, bob, "r")
	assert.ErrorIs(t, err, errors.ErrNothingToClaim)

	pendingRefund, _ := f.svc.PendingRefund("r", carol)
	refunded, err := f.svc.ClaimRefund(ctx, carol, "r")
	require.NoError(t, err)
	assert.True(t, refunded.Equal(d("1")))
	assert.True(t, pendingRefund.Equal(refunded))

	assert.True(t, f.ledger.Custody().IsZero(), f.ledger.Custody().String())
	assert.True(t, f.ledger.BalanceOf(treasury).Equal(d("0.06")))
	assert.True(t, f.ledger.BalanceOf(creator).Equal(d("100.03")))
	assert.True(t, f.ledger.BalanceOf(alice).Equal(d("100.91")))
	assert.True(t, f.ledger.BalanceOf(carol).Equal(d("100")))

	won, _ := f.tracker.Player(alice)
	assert.Equal(t, 1, won.Wins)
	silent, _ := f.tracker.Player(carol)
	assert.Equal(t, 1, silent.Losses)

	assert.Contains(t, f.events.Types("r"), journal.RoundFinalized)
}

func TestFinalizeRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "1")
	f.commit(t, alice, "r", 0, "1")

	_, err := f.svc.Finalize(ctx, resolver, "r", 0)
	assert.ErrorIs(t, err, errors.ErrCannotFinalize)

	f.now = commitDeadline.Add(time.Minute)
	_, err = f.svc.Finalize(ctx, resolver, "r", 0)
	assert.ErrorIs(t, err, errors.ErrCannotFinalize)

	f.now = revealDeadline
	_, err = f.svc.Finalize(ctx, stranger, "r", 0)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	r, err := f.svc.Finalize(ctx, creator, "r", 1)
	require.NoError(t, err)
	assert.True(t, r.TotalRevealed.IsZero())
	assert.True(t, r.PayoutPool.Equal(d("0.97")), r.PayoutPool.String())

	_, err = f.svc.Finalize(ctx, creator, "r", 1)
	assert.ErrorIs(t, err, errors.ErrRoundTerminal)

	refunded, err := f.svc.ClaimRefund(ctx, alice, "r")
	require.NoError(t, err)
	assert.True(t, refunded.Equal(d("1")))

	_, err = f.svc.ReclaimSeed(ctx, creator, "r")
	assert.ErrorIs(t, err, errors.ErrSeedUnavailable)
}

func TestFinalizeFeeFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")
	f.commit(t, alice, "r", 0, "1")
	f.now = commitDeadline
	f.reveal(t, alice, "r", 0)

	f.ledger.FailTransfers(treasury, stderrors.New("treasury frozen"))
	_, err := f.svc.Finalize(ctx, resolver, "r", 0)
	require.Error(t, err)
	assert.Equal(t, errors.KindExternal, errors.KindOf(err))

	r, _ := f.svc.GetRound("r")
	assert.Equal(t, domain.RoundStatusRevealPhase, r.Status)
	assert.True(t, f.ledger.BalanceOf(creator).Equal(d("100")))
	assert.True(t, f.ledger.Custody().Equal(d("1")))
}

func TestCancelRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "2")
	f.commit(t, alice, "r", 0, "1.5")
	f.commit(t, bob, "r", 1, "2")
	f.now = commitDeadline
	f.reveal(t, alice, "r", 0)

	_, err := f.svc.Cancel(ctx, resolver, "r", "")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = f.svc.ClaimRefund(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrRoundNotFinalized)

	r, err := f.svc.Cancel(ctx, creator, "r", "bad question")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusCancelled, r.Status)

	_, err = f.svc.Cancel(ctx, owner, "r", "again")
	assert.ErrorIs(t, err, errors.ErrRoundTerminal)
	_, err = f.svc.Reveal(ctx, bob, "r", 1, secret(bob.Hex()))
	assert.ErrorIs(t, err, errors.ErrRoundTerminal)

	total := decimal.Zero
	for _, a := range []domain.Address{alice, bob} {
		amount, err := f.svc.ClaimRefund(ctx, a, "r")
		require.NoError(t, err)
		total = total.Add(amount)
	}
	assert.True(t, total.Equal(d("3.5")))

	_, err = f.svc.ClaimRefund(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrAlreadyClaimed)
	_, err = f.svc.ClaimRefund(ctx, carol, "r")
	assert.ErrorIs(t, err, errors.ErrNoCommitment)

	_, err = f.svc.ReclaimSeed(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	seed, err := f.svc.ReclaimSeed(ctx, creator, "r")
	require.NoError(t, err)
	assert.True(t, seed.Equal(d("2")))
	_, err = f.svc.ReclaimSeed(ctx, creator, "r")
	assert.ErrorIs(t, err, errors.ErrSeedUnavailable)

	assert.True(t, f.ledger.Custody().IsZero())
}

func TestRoundPauseAndReentrancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRound(t, "r", "0")

	var inner error
	f.ledger.SetHook(func(ctx context.Context, op string, _ domain.Address, _ decimal.Decimal) {
		if op == "pull" && inner == nil {
			_, inner = f.svc.Commit(ctx, bob, "r", secret("bob"), d("1"))
		}
	})
	f.commit(t, alice, "r", 0, "1")
	assert.ErrorIs(t, inner, errors.ErrReentrant)
	f.ledger.SetHook(nil)

	participants, _ := f.svc.Participants("r")
	assert.Equal(t, []domain.Address{alice}, participants)

	require.NoError(t, f.policy.Pause(owner))
	_, err := f.svc.Commit(ctx, bob, "r", secret("bob"), d("1"))
	assert.ErrorIs(t, err, errors.ErrPaused)
	_, err = f.svc.Cancel(ctx, creator, "r", "")
	assert.ErrorIs(t, err, errors.ErrPaused)

	c, err := f.svc.GetCommitment("r", alice)
	require.NoError(t, err)
	assert.True(t, c.Amount.Equal(d("1")))
	empty, err := f.svc.GetCommitment("r", bob)
	require.NoError(t, err)
	assert.True(t, empty.Amount.IsZero())
}

func TestRoundSurvivesRestartBetweenPhases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	f := newFixture(t)
	ctx := context.Background()
	f.restart(t, path)

	f.createRound(t, "r", "0")
	f.commit(t, alice, "r", 0, "2")
	f.commit(t, bob, "r", 1, "1")
	f.commit(t, carol, "r", 0, "1")

	f.restart(t, path)
	_, err := f.svc.Commit(ctx, alice, "r", secret("again"), d("1"))
	assert.ErrorIs(t, err, errors.ErrAlreadyCommitted)
	parts, err := f.svc.Participants("r")
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{alice, bob, carol}, parts)

	f.now = commitDeadline
	f.reveal(t, alice, "r", 0)
	f.restart(t, path)
	f.reveal(t, bob, "r", 1)

	f.restart(t, path)
	r, err := f.svc.GetRound("r")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusRevealPhase, r.Status)
	assert.Equal(t, 2, r.RevealCount)
	assert.True(t, r.TotalRevealed.Equal(d("3")))

	_, err = f.svc.Finalize(ctx, resolver, "r", 0)
	require.NoError(t, err)

	f.restart(t, path)
	paid, err := f.svc.ClaimReward(ctx, alice, "r")
	require.NoError(t, err)
	assert.True(t, paid.Equal(d("2.91")))
	refunded, err := f.svc.ClaimRefund(ctx, carol, "r")
	require.NoError(t, err)
	assert.True(t, refunded.Equal(d("1")))

	f.restart(t, path)
	_, err = f.svc.ClaimReward(ctx, alice, "r")
	assert.ErrorIs(t, err, errors.ErrAlreadyClaimed)
	_, err = f.svc.ClaimRefund(ctx, carol, "r")
	assert.ErrorIs(t, err, errors.ErrAlreadyClaimed)
	assert.True(t, f.ledger.Custody().IsZero(), f.ledger.Custody().String())
}
