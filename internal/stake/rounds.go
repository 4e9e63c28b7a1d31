package stake

import (
	"stakehub/internal/domain"
	"stakehub/pkg/logger"

	"github.com/shopspring/decimal"
)

type commitKey struct {
	Round       domain.PoolID
	Participant domain.Address
}

// RoundStore is the commit-reveal counterpart of Store: rounds, one
// commitment per (round, participant) and the committer registry.
type RoundStore struct {
	rounds      map[domain.PoolID]*domain.Round
	commitments map[commitKey]*domain.Commitment
	registry    registries
	persister
}

func NewRoundStore() *RoundStore {
	return &RoundStore{
		rounds:      make(map[domain.PoolID]*domain.Round),
		commitments: make(map[commitKey]*domain.Commitment),
		registry:    make(registries),
	}
}

func (s *RoundStore) Begin() *Tx {
	return s.begin()
}

// Restore loads every persisted round record from b and persists each later
// commit to it. Call it once, before the store is used.
func (s *RoundStore) Restore(b Backend, log logger.Logger) error {
	batch, err := b.Load()
	if err != nil {
		return err
	}
	for _, r := range batch.Rounds {
		next := r.Clone()
		s.rounds[r.ID] = &next
	}
	for _, c := range batch.Commitments {
		c := c
		s.commitments[commitKey{Round: c.RoundID, Participant: c.Participant}] = &c
	}
	s.registry.restore(batch.RoundParticipants)
	s.persister = persister{backend: b, logger: log}
	return nil
}

func (s *RoundStore) Round(id domain.PoolID) (domain.Round, bool) {
	r, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, false
	}
	return r.Clone(), true
}

func (s *RoundStore) PutRound(tx *Tx, r domain.Round) {
	prev, existed := s.rounds[r.ID]
	next := r.Clone()
	s.rounds[r.ID] = &next
	tx.batch.Rounds = append(tx.batch.Rounds, next.Clone())
	tx.onRollback(func() {
		if existed {
			s.rounds[r.ID] = prev
			return
		}
		delete(s.rounds, r.ID)
	})
}

func (s *RoundStore) Commitment(id domain.PoolID, a domain.Address) (domain.Commitment, bool) {
	c, ok := s.commitments[commitKey{Round: id, Participant: a}]
	if !ok {
		return domain.Commitment{}, false
	}
	return *c, true
}

func (s *RoundStore) PutCommitment(tx *Tx, c domain.Commitment) {
	k := commitKey{Round: c.RoundID, Participant: c.Participant}
	prev, existed := s.commitments[k]
	s.commitments[k] = &c
	tx.batch.Commitments = append(tx.batch.Commitments, c)
	tx.onRollback(func() {
		if existed {
			s.commitments[k] = prev
			return
		}
		delete(s.commitments, k)
	})
}

// Credit registers a committer and adds to their locked total.
func (s *RoundStore) Credit(tx *Tx, id domain.PoolID, a domain.Address, amount decimal.Decimal) {
	e := s.registry.add(tx, id, a, amount)
	tx.batch.RoundParticipants = append(tx.batch.RoundParticipants, e)
}

// Participants lists committers in commit order.
func (s *RoundStore) Participants(id domain.PoolID) []domain.Address {
	return s.registry.participants(id)
}
