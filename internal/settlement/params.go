package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Params are the protocol limits enforced when pools and rounds are created.
type Params struct {
	MinStakeFloor     decimal.Decimal
	MinDeadlineBuffer time.Duration
	MinCommitDuration time.Duration
	MinRevealDuration time.Duration
	// Decimal places the value ledger can represent.
	Precision int32
}

// Representable reports whether amount carries no digits beyond Precision.
func (p Params) Representable(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(p.Precision))
}

func DefaultParams() Params {
	return Params{
		MinStakeFloor:     decimal.New(1, -3),
		MinDeadlineBuffer: time.Hour,
		MinCommitDuration: time.Hour,
		MinRevealDuration: 30 * time.Minute,
		Precision:         18,
	}
}
