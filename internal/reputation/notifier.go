// Package reputation delivers settlement outcomes to the stats and
// achievement side channel and keeps the participant leaderboard.
package reputation

import (
	"context"
	"fmt"

	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/shopspring/decimal"
)

// Notifier receives outcome notifications. Implementations may fail; the
// settlement core never sees those failures.
type Notifier interface {
	OnChallengeResult(ctx context.Context, participant domain.Address, won bool, stake, reward decimal.Decimal) error
	OnCreatorActivity(ctx context.Context, creator domain.Address, isNewPool bool, participantCount int, feesEarned decimal.Decimal) error
}

// Dispatcher fans notifications out to every registered Notifier. Errors and
// panics from a notifier are logged at warn level and discarded.
type Dispatcher struct {
	notifiers []Notifier
	logger    logger.Logger
}

func NewDispatcher(log logger.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: log}
}

// ChallengeResult reports one participant's outcome.
func (d *Dispatcher) ChallengeResult(ctx context.Context, participant domain.Address, won bool, stake, reward decimal.Decimal) {
	for _, n := range d.notifiers {
		d.deliver("challenge_result", participant, func() error {
			return n.OnChallengeResult(ctx, participant, won, stake, reward)
		})
	}
}

// CreatorActivity reports a pool creation or resolution to the originator's stats.
func (d *Dispatcher) CreatorActivity(ctx context.Context, creator domain.Address, isNewPool bool, participantCount int, feesEarned decimal.Decimal) {
	for _, n := range d.notifiers {
		d.deliver("creator_activity", creator, func() error {
			return n.OnCreatorActivity(ctx, creator, isNewPool, participantCount, feesEarned)
		})
	}
}

func (d *Dispatcher) deliver(event string, account domain.Address, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		d.logger.Warn("Reputation notification dropped", map[string]interface{}{
			"event":   event,
			"account": account,
			"error":   err.Error(),
		})
	}
}
