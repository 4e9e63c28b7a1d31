// Package settlement holds the fee split and pro-rata reward arithmetic shared
// by pools and commit-reveal rounds. Every result is floored to the ledger's
// precision so that payouts never exceed the escrow they are drawn from.
package settlement

import (
	"stakehub/internal/domain"
	"stakehub/internal/ledger"

	"github.com/shopspring/decimal"
)

var basisPoints = decimal.NewFromInt(domain.BasisPoints)

// Fees is the split of a pot frozen at resolution.
type Fees struct {
	Total    decimal.Decimal
	Platform decimal.Decimal
	Creator  decimal.Decimal
	Payout   decimal.Decimal
}

// ComputeFees splits pot into platform fee, creator fee and payout pool.
// The creator receives the remainder of the combined fee so the three parts
// always add up to pot exactly.
func ComputeFees(pot decimal.Decimal, platformBps, creatorBps uint16, precision int32) Fees {
	total := floorDiv(pot.Mul(decimal.NewFromInt(int64(platformBps)+int64(creatorBps))), basisPoints, precision)
	platform := floorDiv(pot.Mul(decimal.NewFromInt(int64(platformBps))), basisPoints, precision)
	return Fees{
		Total:    total,
		Platform: platform,
		Creator:  total.Sub(platform),
		Payout:   pot.Sub(total),
	}
}

// Reward is a winner's pro-rata share of payout. A winning choice nobody
// backed yields zero for everyone.
func Reward(winningStake, payout, winningTotal decimal.Decimal, precision int32) decimal.Decimal {
	if !winningTotal.IsPositive() || !winningStake.IsPositive() {
		return decimal.Zero
	}
	return floorDiv(winningStake.Mul(payout), winningTotal, precision)
}

// Floor truncates a non-negative amount to precision decimal places.
func Floor(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Truncate(precision)
}

func floorDiv(num, den decimal.Decimal, precision int32) decimal.Decimal {
	q, _ := num.QuoRem(den, precision)
	return q
}

// FeeTransfers lists the non-zero fee payments of a resolution: the platform
// fee to recipient, then the creator fee to originator.
func FeeTransfers(recipient, originator domain.Address, fees Fees) []ledger.Transfer {
	var out []ledger.Transfer
	if fees.Platform.IsPositive() {
		out = append(out, ledger.Transfer{To: recipient, Amount: fees.Platform})
	}
	if fees.Creator.IsPositive() {
		out = append(out, ledger.Transfer{To: originator, Amount: fees.Creator})
	}
	return out
}
