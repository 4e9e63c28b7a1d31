package reputation

import (
	"context"
	"sort"
	"sync"

	"stakehub/internal/domain"

	"github.com/shopspring/decimal"
)

// PlayerStats is a participant's record across all settled pools and rounds.
type PlayerStats struct {
	Participant   domain.Address  `json:"participant"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	CurrentStreak int             `json:"current_streak"`
	BestStreak    int             `json:"best_streak"`
	TotalStaked   decimal.Decimal `json:"total_staked"`
	TotalWon      decimal.Decimal `json:"total_won"`
}

// CreatorStats summarizes an originator's activity.
type CreatorStats struct {
	Creator           domain.Address  `json:"creator"`
	PoolsCreated      int             `json:"pools_created"`
	PoolsSettled      int             `json:"pools_settled"`
	TotalParticipants int             `json:"total_participants"`
	FeesEarned        decimal.Decimal `json:"fees_earned"`
}

// Entry is one leaderboard row.
type Entry struct {
	Participant domain.Address  `json:"participant"`
	Score       decimal.Decimal `json:"score"`
}

// Ranker serves the leaderboard read surface.
type Ranker interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
}

// Tracker keeps stats in memory. The leaderboard is ordered by total winnings
// and kept sorted on every change, so reads never sort.
type Tracker struct {
	mu       sync.RWMutex
	players  map[domain.Address]*PlayerStats
	creators map[domain.Address]*CreatorStats
	board    []Entry
}

var (
	_ Notifier = (*Tracker)(nil)
	_ Ranker   = (*Tracker)(nil)
)

func NewTracker() *Tracker {
	return &Tracker{
		players:  make(map[domain.Address]*PlayerStats),
		creators: make(map[domain.Address]*CreatorStats),
	}
}

func (t *Tracker) OnChallengeResult(_ context.Context, participant domain.Address, won bool, stake, reward decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps, ok := t.players[participant]
	if !ok {
		ps = &PlayerStats{Participant: participant}
		t.players[participant] = ps
	}
	ps.TotalStaked = ps.TotalStaked.Add(stake)
	if won {
		ps.Wins++
		ps.CurrentStreak++
		if ps.CurrentStreak > ps.BestStreak {
			ps.BestStreak = ps.CurrentStreak
		}
		ps.TotalWon = ps.TotalWon.Add(reward)
		t.rank(participant, ps.TotalWon)
	} else {
		ps.Losses++
		ps.CurrentStreak = 0
	}
	return nil
}

func (t *Tracker) OnCreatorActivity(_ context.Context, creator domain.Address, isNewPool bool, participantCount int, feesEarned decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.creators[creator]
	if !ok {
		cs = &CreatorStats{Creator: creator}
		t.creators[creator] = cs
	}
	if isNewPool {
		cs.PoolsCreated++
		return nil
	}
	cs.PoolsSettled++
	cs.TotalParticipants += participantCount
	cs.FeesEarned = cs.FeesEarned.Add(feesEarned)
	return nil
}

// rank moves participant to its new position; callers hold the write lock.
func (t *Tracker) rank(participant domain.Address, score decimal.Decimal) {
	for i, e := range t.board {
		if e.Participant == participant {
			t.board = append(t.board[:i], t.board[i+1:]...)
			break
		}
	}
	e := Entry{Participant: participant, Score: score}
	i := sort.Search(len(t.board), func(i int) bool { return before(e, t.board[i]) })
	t.board = append(t.board, Entry{})
	copy(t.board[i+1:], t.board[i:])
	t.board[i] = e
}

func before(a, b Entry) bool {
	if c := a.Score.Cmp(b.Score); c != 0 {
		return c > 0
	}
	return a.Participant.Cmp(b.Participant) < 0
}

func (t *Tracker) TopN(_ context.Context, n int) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n <= 0 || n > len(t.board) {
		n = len(t.board)
	}
	return append([]Entry(nil), t.board[:n]...), nil
}

func (t *Tracker) Player(a domain.Address) (PlayerStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ps, ok := t.players[a]
	if !ok {
		return PlayerStats{}, false
	}
	return *ps, true
}

func (t *Tracker) Creator(a domain.Address) (CreatorStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cs, ok := t.creators[a]
	if !ok {
		return CreatorStats{}, false
	}
	return *cs, true
}
