package reputation

import (
	"context"
	"errors"
	"testing"

	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	creator = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OnChallengeResult(ctx context.Context, participant domain.Address, won bool, stake, reward decimal.Decimal) error {
	args := m.Called(ctx, participant, won, stake, reward)
	return args.Error(0)
}

func (m *MockNotifier) OnCreatorActivity(ctx context.Context, c domain.Address, isNewPool bool, participantCount int, feesEarned decimal.Decimal) error {
	args := m.Called(ctx, c, isNewPool, participantCount, feesEarned)
	return args.Error(0)
}

type panicNotifier struct{}

func (panicNotifier) OnChallengeResult(context.Context, domain.Address, bool, decimal.Decimal, decimal.Decimal) error {
	panic("stats backend exploded")
}

func (panicNotifier) OnCreatorActivity(context.Context, domain.Address, bool, int, decimal.Decimal) error {
	panic("stats backend exploded")
}

func TestDispatcherDiscardsErrorsAndPanics(t *testing.T) {
	ctx := context.Background()
	failing := new(MockNotifier)
	failing.On("OnChallengeResult", ctx, alice, true, mock.Anything, mock.Anything).Return(errors.New("timeout"))
	failing.On("OnCreatorActivity", ctx, creator, true, 0, mock.Anything).Return(errors.New("timeout"))

	tracker := NewTracker()
	dispatcher := NewDispatcher(logger.NewNop(), failing, panicNotifier{}, tracker)

	assert.NotPanics(t, func() {
		dispatcher.ChallengeResult(ctx, alice, true, d("1"), d("1.94"))
		dispatcher.CreatorActivity(ctx, creator, true, 0, decimal.Zero)
	})

	failing.AssertExpectations(t)

	ps, ok := tracker.Player(alice)
	require.True(t, ok)
	assert.Equal(t, 1, ps.Wins)
	cs, ok := tracker.Creator(creator)
	require.True(t, ok)
	assert.Equal(t, 1, cs.PoolsCreated)
}

func TestTrackerStreaks(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()

	for _, won := range []bool{true, true, false, true} {
		require.NoError(t, tr.OnChallengeResult(ctx, alice, won, d("1"), d("0.5")))
	}

	ps, _ := tr.Player(alice)
	assert.Equal(t, 3, ps.Wins)
	assert.Equal(t, 1, ps.Losses)
	assert.Equal(t, 1, ps.CurrentStreak)
	assert.Equal(t, 2, ps.BestStreak)
	assert.True(t, ps.TotalStaked.Equal(d("4")))
	assert.True(t, ps.TotalWon.Equal(d("1.5")))
}

func TestTrackerCreatorStats(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()

	require.NoError(t, tr.OnCreatorActivity(ctx, creator, true, 0, decimal.Zero))
	require.NoError(t, tr.OnCreatorActivity(ctx, creator, false, 4, d("0.04")))

	cs, _ := tr.Creator(creator)
	assert.Equal(t, 1, cs.PoolsCreated)
	assert.Equal(t, 1, cs.PoolsSettled)
	assert.Equal(t, 4, cs.TotalParticipants)
	assert.True(t, cs.FeesEarned.Equal(d("0.04")))
}

func TestTrackerLeaderboardStaysSorted(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()

	require.NoError(t, tr.OnChallengeResult(ctx, alice, true, d("1"), d("2")))
	require.NoError(t, tr.OnChallengeResult(ctx, bob, true, d("1"), d("3")))
	require.NoError(t, tr.OnChallengeResult(ctx, carol, true, d("1"), d("2")))
	require.NoError(t, tr.OnChallengeResult(ctx, carol, false, d("1"), decimal.Zero))

	top, err := tr.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, bob, top[0].Participant)
	// Ties break by address.
	assert.Equal(t, alice, top[1].Participant)
	assert.Equal(t, carol, top[2].Participant)

	require.NoError(t, tr.OnChallengeResult(ctx, alice, true, d("1"), d("5")))
	top, _ = tr.TopN(ctx, 1)
	require.Len(t, top, 1)
	assert.Equal(t, alice, top[0].Participant)
	assert.True(t, top[0].Score.Equal(d("7")))
}
