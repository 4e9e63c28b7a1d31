package reputation

import (
	"context"
	"fmt"

	"stakehub/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Leaderboard keeps winnings in a Redis sorted set, so ranking is maintained
// by the server on every increment. Creator counters live in one hash per
// creator under the same key prefix.
type Leaderboard struct {
	client *redis.Client
	key    string
}

var (
	_ Notifier = (*Leaderboard)(nil)
	_ Ranker   = (*Leaderboard)(nil)
)

func NewLeaderboard(client *redis.Client, key string) *Leaderboard {
	return &Leaderboard{client: client, key: key}
}

func (l *Leaderboard) OnChallengeResult(ctx context.Context, participant domain.Address, won bool, stake, reward decimal.Decimal) error {
	member := participant.Hex()
	pipe := l.client.TxPipeline()
	if won {
		pipe.ZIncrBy(ctx, l.key, reward.InexactFloat64(), member)
		pipe.HIncrBy(ctx, l.playerKey(member), "wins", 1)
	} else {
		pipe.HIncrBy(ctx, l.playerKey(member), "losses", 1)
	}
	pipe.HIncrByFloat(ctx, l.playerKey(member), "staked", stake.InexactFloat64())
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Leaderboard) OnCreatorActivity(ctx context.Context, creator domain.Address, isNewPool bool, participantCount int, feesEarned decimal.Decimal) error {
	key := l.creatorKey(creator.Hex())
	if isNewPool {
		return l.client.HIncrBy(ctx, key, "pools_created", 1).Err()
	}
	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "pools_settled", 1)
	pipe.HIncrBy(ctx, key, "participants", int64(participantCount))
	pipe.HIncrByFloat(ctx, key, "fees", feesEarned.InexactFloat64())
	_, err := pipe.Exec(ctx)
	return err
}

func (l *Leaderboard) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, z := range rows {
		member, ok := z.Member.(string)
		if !ok || !common.IsHexAddress(member) {
			continue
		}
		out = append(out, Entry{
			Participant: common.HexToAddress(member),
			Score:       decimal.NewFromFloat(z.Score),
		})
	}
	return out, nil
}

func (l *Leaderboard) playerKey(member string) string {
	return fmt.Sprintf("%s:player:%s", l.key, member)
}

func (l *Leaderboard) creatorKey(member string) string {
	return fmt.Sprintf("%s:creator:%s", l.key, member)
}
