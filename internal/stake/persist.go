package stake

import (
	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/shopspring/decimal"
)

// Participant is one registry entry: a's running total in pool or round ID
// and its position in first-credit order.
type Participant struct {
	ID      domain.PoolID
	Address domain.Address
	Total   decimal.Decimal
	Index   int
}

// Batch holds the records written by one committed Tx. Load returns every
// persisted record in the same shape.
type Batch struct {
	Pools             []domain.Pool
	Stakes            []domain.UserStake
	PoolParticipants  []Participant
	Rounds            []domain.Round
	Commitments       []domain.Commitment
	RoundParticipants []Participant
}

func (b *Batch) empty() bool {
	return len(b.Pools) == 0 && len(b.Stakes) == 0 && len(b.PoolParticipants) == 0 &&
		len(b.Rounds) == 0 && len(b.Commitments) == 0 && len(b.RoundParticipants) == 0
}

// Backend durably stores committed records so a restarted process can
// rebuild its stores.
type Backend interface {
	Save(b *Batch) error
	Load() (*Batch, error)
}

type persister struct {
	backend Backend
	logger  logger.Logger
}

func (p *persister) begin() *Tx {
	tx := &Tx{}
	if p.backend != nil {
		tx.flush = p.save
	}
	return tx
}

// save runs after the value transfer has already happened, so a failure
// cannot be undone here; it is logged with enough detail to reconcile.
func (p *persister) save(b *Batch) {
	if err := p.backend.Save(b); err != nil {
		fields := map[string]interface{}{
			"error":       err.Error(),
			"pools":       len(b.Pools),
			"stakes":      len(b.Stakes),
			"rounds":      len(b.Rounds),
			"commitments": len(b.Commitments),
		}
		if len(b.Pools) > 0 {
			fields["pool_id"] = string(b.Pools[0].ID)
		}
		if len(b.Rounds) > 0 {
			fields["round_id"] = string(b.Rounds[0].ID)
		}
		p.logger.Error("Failed to persist committed state", fields)
	}
}
