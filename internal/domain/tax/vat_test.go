package tax

import (
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestApplyVAT_UntaxedIgnoresLineRate(t *testing.T) {
	for _, mode := range []Mode{ModeFromGross, ModeFromNet} {
		t.Run(string(mode), func(t *testing.T) {
			res, err := ApplyVAT(RegimeUntaxed, dec("120"), ptr(dec("20")), FallbackRate, mode)
			require.NoError(t, err)

			assert.True(t, res.VATAmount.IsZero())
			assert.True(t, res.VATPercent.IsZero())
			assert.True(t, res.PriceWithoutVAT.Equal(dec("120")))
			assert.True(t, res.PriceWithVAT.Equal(dec("120")))
		})
	}
}

func TestApplyVAT_FromGross(t *testing.T) {
	res, err := ApplyVAT(RegimeTaxed, dec("120"), nil, FallbackRate, ModeFromGross)
	require.NoError(t, err)

	assert.Equal(t, "20", res.VATAmount.String())
	assert.Equal(t, "100", res.PriceWithoutVAT.String())
	assert.Equal(t, "120", res.PriceWithVAT.String())
	assert.Equal(t, "20", res.VATPercent.String())
	assert.True(t, res.Consistent())
}

func TestApplyVAT_FromNet(t *testing.T) {
	res, err := ApplyVAT(RegimeTaxed, dec("100"), ptr(dec("12")), FallbackRate, ModeFromNet)
	require.NoError(t, err)

	assert.Equal(t, "12", res.VATAmount.String())
	assert.Equal(t, "112", res.PriceWithVAT.String())
	assert.Equal(t, "12", res.VATPercent.String())
}

func TestApplyVAT_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name  string
		price string
		rate  string
		mode  Mode
		vat   string
	}{
		// 0.125 -> 0.13
		{"net half cent", "0.625", "20", ModeFromNet, "0.13"},
		// 10.05 * 20 / 120 = 1.675 -> 1.68
		{"gross half cent", "10.05", "20", ModeFromGross, "1.68"},
		// 1.005 * 10 / 100 = 0.1005 -> 0.10
		{"below half", "1.005", "10", ModeFromNet, "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ApplyVAT(RegimeTaxed, dec(tt.price), ptr(dec(tt.rate)), FallbackRate, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.vat, res.VATAmount.String())
			assert.True(t, res.Consistent())
		})
	}
}

func TestApplyVAT_DefaultRateUsedWhenLineHasNone(t *testing.T) {
	res, err := ApplyVAT(RegimeTaxed, dec("100"), nil, dec("12"), ModeFromNet)
	require.NoError(t, err)
	assert.Equal(t, "12", res.VATAmount.String())

	zero := decimal.Zero
	res, err = ApplyVAT(RegimeTaxed, dec("100"), &zero, dec("12"), ModeFromNet)
	require.NoError(t, err)
	assert.True(t, res.VATAmount.IsZero(), "explicit zero line rate must not fall back to the default")
}

func TestApplyVAT_RoundTripWithinTolerance(t *testing.T) {
	prices := []string{"0.01", "0.99", "9.99", "17.35", "100", "123.45", "999.99", "1234.567"}
	rates := []string{"0", "5", "10", "12", "18", "20", "21"}
	tolerance := dec("0.01")

	for _, p := range prices {
		for _, r := range rates {
			net, err := ApplyVAT(RegimeTaxed, dec(p), ptr(dec(r)), FallbackRate, ModeFromNet)
			require.NoError(t, err)

			back, err := ApplyVAT(RegimeTaxed, net.PriceWithVAT, ptr(dec(r)), FallbackRate, ModeFromGross)
			require.NoError(t, err)

			diff := back.PriceWithoutVAT.Sub(dec(p)).Abs()
			assert.True(t, diff.LessThanOrEqual(tolerance), "price %s rate %s drifted by %s", p, r, diff)
			assert.True(t, net.PriceWithoutVAT.Add(net.VATAmount).Sub(net.PriceWithVAT).Abs().LessThanOrEqual(tolerance))
		}
	}
}

func TestApplyVAT_InvalidInput(t *testing.T) {
	_, err := ApplyVAT(Regime("exempt"), dec("1"), nil, FallbackRate, ModeFromNet)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ApplyVAT(RegimeTaxed, dec("1"), nil, FallbackRate, Mode("sideways"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ApplyVAT(RegimeTaxed, dec("-1"), nil, FallbackRate, ModeFromNet)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ApplyVAT(RegimeTaxed, dec("1"), ptr(dec("-5")), FallbackRate, ModeFromNet)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDefaultRate(t *testing.T) {
	assert.True(t, DefaultRate(nil).Equal(FallbackRate))
	assert.True(t, DefaultRate(ptr(dec("7"))).Equal(dec("7")))
	assert.True(t, DefaultRate(ptr(dec("-1"))).Equal(FallbackRate))
}
