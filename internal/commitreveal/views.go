package commitreveal

import (
	"stakehub/internal/domain"

	"github.com/shopspring/decimal"
)

// GetRound reports the stored status. A round past its commit deadline
// still reads as commit phase until the first reveal moves it on.
func (s *Service) GetRound(id domain.PoolID) (*domain.Round, error) {
	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCommitment returns a zero commitment when participant never committed.
func (s *Service) GetCommitment(id domain.PoolID, participant domain.Address) (*domain.Commitment, error) {
	if _, err := s.round(id); err != nil {
		return nil, err
	}
	c, ok := s.store.Commitment(id, participant)
	if !ok {
		c = domain.Commitment{RoundID: id, Participant: participant, Amount: decimal.Zero}
	}
	return &c, nil
}

func (s *Service) ChoiceTotals(id domain.PoolID) ([]decimal.Decimal, error) {
	r, err := s.round(id)
	if err != nil {
		return nil, err
	}
	return r.ChoiceTotals, nil
}

func (s *Service) Participants(id domain.PoolID) ([]domain.Address, error) {
	if _, err := s.round(id); err != nil {
		return nil, err
	}
	return s.store.Participants(id), nil
}

func (s *Service) PendingReward(id domain.PoolID, participant domain.Address) (decimal.Decimal, error) {
	r, err := s.round(id)
	if err != nil {
		return decimal.Zero, err
	}
	c, ok := s.store.Commitment(id, participant)
	if !ok || c.Claimed {
		return decimal.Zero, nil
	}
	return s.reward(r, c), nil
}

func (s *Service) PendingRefund(id domain.PoolID, participant domain.Address) (decimal.Decimal, error) {
	r, err := s.round(id)
	if err != nil {
		return decimal.Zero, err
	}
	c, ok := s.store.Commitment(id, participant)
	if !ok || c.Claimed {
		return decimal.Zero, nil
	}
	return refund(r, c), nil
}
