// Package stake owns pool records, per-choice stake records and the
// participant registry. Values are copied on the way in and out; the only
// way to change a stored record is to Put a modified copy through a Tx.
package stake

import (
	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/shopspring/decimal"
)

// Key addresses one participant's stake on one choice of one pool.
type Key struct {
	Pool        domain.PoolID
	Participant domain.Address
	Choice      domain.Choice
}

// Store is the pool-side stake ledger. It is not safe for concurrent use;
// operations are serialized by the caller.
type Store struct {
	pools    map[domain.PoolID]*domain.Pool
	stakes   map[Key]*domain.UserStake
	registry registries
	persister
}

func NewStore() *Store {
	return &Store{
		pools:    make(map[domain.PoolID]*domain.Pool),
		stakes:   make(map[Key]*domain.UserStake),
		registry: make(registries),
	}
}

func (s *Store) Begin() *Tx {
	return s.begin()
}

// Restore loads every persisted pool record from b and persists each later
// commit to it. Call it once, before the store is used.
func (s *Store) Restore(b Backend, log logger.Logger) error {
	batch, err := b.Load()
	if err != nil {
		return err
	}
	for _, p := range batch.Pools {
		next := p.Clone()
		s.pools[p.ID] = &next
	}
	for _, st := range batch.Stakes {
		st := st
		s.stakes[Key{Pool: st.PoolID, Participant: st.Participant, Choice: st.Choice}] = &st
	}
	s.registry.restore(batch.PoolParticipants)
	s.persister = persister{backend: b, logger: log}
	return nil
}

func (s *Store) Pool(id domain.PoolID) (domain.Pool, bool) {
	p, ok := s.pools[id]
	if !ok {
		return domain.Pool{}, false
	}
	return p.Clone(), true
}

func (s *Store) PutPool(tx *Tx, p domain.Pool) {
	prev, existed := s.pools[p.ID]
	next := p.Clone()
	s.pools[p.ID] = &next
	tx.batch.Pools = append(tx.batch.Pools, next.Clone())
	tx.onRollback(func() {
		if existed {
			s.pools[p.ID] = prev
			return
		}
		delete(s.pools, p.ID)
	})
}

// Stake returns the record at k, or a zero-amount record if none exists.
func (s *Store) Stake(k Key) (domain.UserStake, bool) {
	st, ok := s.stakes[k]
	if !ok {
		return domain.UserStake{PoolID: k.Pool, Participant: k.Participant, Choice: k.Choice, Amount: decimal.Zero}, false
	}
	return *st, true
}

func (s *Store) PutStake(tx *Tx, st domain.UserStake) {
	k := Key{Pool: st.PoolID, Participant: st.Participant, Choice: st.Choice}
	prev, existed := s.stakes[k]
	s.stakes[k] = &st
	tx.batch.Stakes = append(tx.batch.Stakes, st)
	tx.onRollback(func() {
		if existed {
			s.stakes[k] = prev
			return
		}
		delete(s.stakes, k)
	})
}

// StakesOf returns every record the participant holds in the pool, by choice.
func (s *Store) StakesOf(id domain.PoolID, a domain.Address) []domain.UserStake {
	p, ok := s.pools[id]
	if !ok {
		return nil
	}
	var out []domain.UserStake
	for c := 0; c < int(p.ChoiceCount); c++ {
		if st, ok := s.stakes[Key{Pool: id, Participant: a, Choice: domain.Choice(c)}]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// Credit adds amount to the participant's running total, registering them if new.
func (s *Store) Credit(tx *Tx, id domain.PoolID, a domain.Address, amount decimal.Decimal) {
	e := s.registry.add(tx, id, a, amount)
	tx.batch.PoolParticipants = append(tx.batch.PoolParticipants, e)
}

// Participants lists distinct stakers in first-stake order.
func (s *Store) Participants(id domain.PoolID) []domain.Address {
	return s.registry.participants(id)
}

// ParticipantTotal is a's stake summed over every choice of the pool.
func (s *Store) ParticipantTotal(id domain.PoolID, a domain.Address) decimal.Decimal {
	return s.registry.total(id, a)
}
