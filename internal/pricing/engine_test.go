package pricing

import (
	"testing"

	"pos-terminal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	items := []models.LineItem{
		{ProductID: "1", UnitPrice: dec("100"), Quantity: 2, StockAtAdd: 2},
	}
	in := models.PricingInputs{
		DiscountPercent: dec("10"),
		AmountPaid:      dec("200"),
		TaxRatePercent:  dec("8"),
	}

	res := Compute(items, in)

	assert.True(t, dec("200").Equal(res.Subtotal), "subtotal %s", res.Subtotal)
	assert.True(t, dec("20").Equal(res.DiscountAmount), "discount %s", res.DiscountAmount)
	assert.True(t, dec("14.4").Equal(res.TaxAmount), "tax %s", res.TaxAmount)
	assert.True(t, dec("194.4").Equal(res.Total), "total %s", res.Total)
	assert.True(t, dec("5.6").Equal(res.Change), "change %s", res.Change)

	in.AmountPaid = dec("100")
	res = Compute(items, in)
	assert.True(t, dec("-94.6").Equal(res.Change), "change %s", res.Change)
}

func TestComputeTotalIdentity(t *testing.T) {
	items := []models.LineItem{
		{ProductID: "1", UnitPrice: dec("19.99"), Quantity: 3},
		{ProductID: "2", UnitPrice: dec("0.35"), Quantity: 7},
		{ProductID: "3", UnitPrice: dec("1234.5"), Quantity: 1},
	}
	in := models.PricingInputs{DiscountPercent: dec("12.5"), TaxRatePercent: dec("8")}

	res := Compute(items, in)

	expectedSubtotal := dec("59.97").Add(dec("2.45")).Add(dec("1234.5"))
	assert.True(t, expectedSubtotal.Equal(res.Subtotal))
	assert.True(t, res.Subtotal.Sub(res.DiscountAmount).Add(res.TaxAmount).Equal(res.Total))
}

func TestComputeEmptyCart(t *testing.T) {
	res := Compute(nil, models.PricingInputs{TaxRatePercent: dec("8")})

	assert.True(t, res.Subtotal.IsZero())
	assert.True(t, res.Total.IsZero())
	assert.True(t, res.Change.IsZero())
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "0"},
		{"   ", "0"},
		{"abc", "0"},
		{"12.5", "12.5"},
		{"1,234.56", "1234.56"},
		{" 200 ", "200"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.True(t, dec(tt.want).Equal(ParseInput(tt.raw)), "ParseInput(%q)", tt.raw)
		})
	}
}

func TestParseDiscountPercentClamps(t *testing.T) {
	assert.True(t, ParseDiscountPercent("-5").IsZero())
	assert.True(t, dec("100").Equal(ParseDiscountPercent("150")))
	assert.True(t, dec("10").Equal(ParseDiscountPercent("10")))
	assert.True(t, ParseAmountPaid("-1").IsZero())
}

func TestCheckoutPolicy(t *testing.T) {
	items := []models.LineItem{{ProductID: "1", UnitPrice: dec("100"), Quantity: 2, StockAtAdd: 2}}
	policy := CheckoutPolicy{DecimalPlaces: 2}

	inputs := func(paid string) models.PricingInputs {
		return models.PricingInputs{DiscountPercent: dec("10"), TaxRatePercent: dec("8"), AmountPaid: dec(paid)}
	}

	t.Run("empty cart", func(t *testing.T) {
		in := inputs("500")
		assert.False(t, policy.Allowed(0, in, Compute(nil, in)))
	})

	t.Run("sufficient payment", func(t *testing.T) {
		in := inputs("200")
		assert.True(t, policy.Allowed(1, in, Compute(items, in)))
	})

	t.Run("exact payment", func(t *testing.T) {
		in := inputs("194.4")
		assert.True(t, policy.Allowed(1, in, Compute(items, in)))
	})

	t.Run("insufficient payment", func(t *testing.T) {
		in := inputs("100")
		res := Compute(items, in)
		assert.False(t, policy.Allowed(1, in, res))
		assert.True(t, policy.Insufficient(res))
	})

	t.Run("zero payment does not block", func(t *testing.T) {
		in := inputs("0")
		assert.True(t, policy.Allowed(1, in, Compute(items, in)))
	})

	t.Run("zero payment blocks when payment required", func(t *testing.T) {
		in := inputs("0")
		strict := CheckoutPolicy{DecimalPlaces: 2, RequirePayment: true}
		assert.False(t, strict.Allowed(1, in, Compute(items, in)))
	})

	t.Run("compares with displayed total", func(t *testing.T) {
		odd := []models.LineItem{{ProductID: "9", UnitPrice: dec("10.001"), Quantity: 1, StockAtAdd: 1}}
		in := models.PricingInputs{TaxRatePercent: decimal.Zero, AmountPaid: dec("10")}
		res := Compute(odd, in)
		assert.True(t, policy.Allowed(1, in, res))
		assert.False(t, policy.Insufficient(res))
	})
}
