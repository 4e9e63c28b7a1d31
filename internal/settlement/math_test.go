package settlement

import (
	"testing"

	"stakehub/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name      string
		pot       string
		platform  uint16
		creator   uint16
		precision int32
		wantTotal string
		wantPlat  string
		wantCreat string
		wantPay   string
	}{
		{"worked example", "4.0", 200, 100, 18, "0.12", "0.08", "0.04", "3.88"},
		{"no fees", "7", 0, 0, 18, "0", "0", "0", "7"},
		{"floors at precision", "1", 333, 0, 2, "0.03", "0.03", "0", "0.97"},
		{"dust pot", "0.000001", 150, 150, 6, "0", "0", "0", "0.000001"},
		{"creator remainder", "1", 55, 50, 3, "0.01", "0.005", "0.005", "0.99"},
		{"empty pot", "0", 200, 100, 18, "0", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees := ComputeFees(d(tt.pot), tt.platform, tt.creator, tt.precision)
			assert.True(t, fees.Total.Equal(d(tt.wantTotal)), "total %s", fees.Total)
			assert.True(t, fees.Platform.Equal(d(tt.wantPlat)), "platform %s", fees.Platform)
			assert.True(t, fees.Creator.Equal(d(tt.wantCreat)), "creator %s", fees.Creator)
			assert.True(t, fees.Payout.Equal(d(tt.wantPay)), "payout %s", fees.Payout)
			assert.True(t, fees.Platform.Add(fees.Creator).Add(fees.Payout).Equal(d(tt.pot)))
		})
	}
}

func TestReward(t *testing.T) {
	payout := d("3.88")

	assert.True(t, Reward(d("1"), payout, d("2"), 18).Equal(d("1.94")))
	assert.True(t, Reward(decimal.Zero, payout, d("2"), 18).IsZero())
	assert.True(t, Reward(d("1"), payout, decimal.Zero, 18).IsZero())

	// 1/3 of 1 floored at 4 places; three winners never exceed the payout.
	r := Reward(d("1"), d("1"), d("3"), 4)
	assert.True(t, r.Equal(d("0.3333")))
	assert.True(t, r.Mul(decimal.NewFromInt(3)).LessThanOrEqual(d("1")))
}

func TestFloor(t *testing.T) {
	assert.True(t, Floor(d("1.23456"), 2).Equal(d("1.23")))
	assert.True(t, Floor(d("5"), 0).Equal(d("5")))
}

func TestFeeTransfers(t *testing.T) {
	treasury := common.HexToAddress("0x00000000000000000000000000000000000000fe")
	creator := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	fees := ComputeFees(d("4"), 200, 100, 18)
	assert.Equal(t, []ledger.Transfer{
		{To: treasury, Amount: fees.Platform},
		{To: creator, Amount: fees.Creator},
	}, FeeTransfers(treasury, creator, fees))

	onlyPlatform := ComputeFees(d("4"), 200, 0, 18)
	assert.Equal(t, []ledger.Transfer{{To: treasury, Amount: onlyPlatform.Platform}}, FeeTransfers(treasury, creator, onlyPlatform))

	assert.Empty(t, FeeTransfers(treasury, creator, ComputeFees(d("4"), 0, 0, 18)))
}

func TestRepresentable(t *testing.T) {
	p := DefaultParams()
	assert.True(t, p.Representable(d("0.5")))
	assert.True(t, p.Representable(d("0.000000000000000001")))
	assert.False(t, p.Representable(d("0.5000000000000000000001")))

	p.Precision = 2
	assert.True(t, p.Representable(d("1.25")))
	assert.False(t, p.Representable(d("1.255")))
}
