package stake

import (
	"sort"

	"stakehub/internal/domain"

	"github.com/shopspring/decimal"
)

// registry is the insertion-ordered participant set of one pool or round,
// together with each participant's running total across all choices.
type registry struct {
	order  []domain.Address
	totals map[domain.Address]decimal.Decimal
	pos    map[domain.Address]int
}

type registries map[domain.PoolID]*registry

func (r registries) get(id domain.PoolID) *registry {
	reg, ok := r[id]
	if !ok {
		reg = &registry{
			totals: make(map[domain.Address]decimal.Decimal),
			pos:    make(map[domain.Address]int),
		}
		r[id] = reg
	}
	return reg
}

// add credits amount to a's running total and registers a on first sight.
// The returned Participant is the entry as it stands after the credit.
func (r registries) add(tx *Tx, id domain.PoolID, a domain.Address, amount decimal.Decimal) Participant {
	reg := r.get(id)
	prev, seen := reg.totals[a]
	reg.totals[a] = prev.Add(amount)
	if !seen {
		reg.pos[a] = len(reg.order)
		reg.order = append(reg.order, a)
	}
	tx.onRollback(func() {
		if seen {
			reg.totals[a] = prev
			return
		}
		delete(reg.totals, a)
		delete(reg.pos, a)
		reg.order = reg.order[:len(reg.order)-1]
	})
	return Participant{ID: id, Address: a, Total: reg.totals[a], Index: reg.pos[a]}
}

// restore rebuilds registries from persisted entries, ordering each pool's
// participants by their recorded index.
func (r registries) restore(entries []Participant) {
	sorted := append([]Participant(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Index < sorted[j].Index
	})
	for _, e := range sorted {
		reg := r.get(e.ID)
		if _, seen := reg.totals[e.Address]; !seen {
			reg.pos[e.Address] = len(reg.order)
			reg.order = append(reg.order, e.Address)
		}
		reg.totals[e.Address] = e.Total
	}
}

func (r registries) participants(id domain.PoolID) []domain.Address {
	reg, ok := r[id]
	if !ok {
		return nil
	}
	return append([]domain.Address(nil), reg.order...)
}

func (r registries) total(id domain.PoolID, a domain.Address) decimal.Decimal {
	reg, ok := r[id]
	if !ok {
		return decimal.Zero
	}
	return reg.totals[a]
}
