package pricing

import (
	"strings"

	"pos-terminal/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute calculates totals for the given items. It is a pure function:
// amounts are kept exact and only rounded by a Formatter.
func Compute(items []models.LineItem, in models.PricingInputs) models.PricingResult {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	discountAmount := subtotal.Mul(in.DiscountPercent).Div(hundred)
	taxAmount := subtotal.Sub(discountAmount).Mul(in.TaxRatePercent).Div(hundred)
	total := subtotal.Sub(discountAmount).Add(taxAmount)

	return models.PricingResult{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		Total:          total,
		Change:         in.AmountPaid.Sub(total),
	}
}

// ParseInput parses a user typed amount. Thousand separators and surrounding
// blanks are ignored; anything unparseable yields zero.
func ParseInput(raw string) decimal.Decimal {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDiscountPercent parses a discount percentage clamped to [0, 100]
func ParseDiscountPercent(raw string) decimal.Decimal {
	d := ParseInput(raw)
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}

// ParseAmountPaid parses the tendered amount; negative amounts count as zero
func ParseAmountPaid(raw string) decimal.Decimal {
	d := ParseInput(raw)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// CheckoutPolicy decides whether the checkout control is enabled
type CheckoutPolicy struct {
	// DecimalPlaces is the display precision; the tendered amount is compared
	// with the total as the cashier sees it.
	DecimalPlaces int32
	// RequirePayment makes an empty amount paid block checkout too.
	RequirePayment bool
}

// Allowed reports whether checkout may be activated. With the default policy
// it is disabled iff the cart is empty or a positive amount paid falls short
// of the total; a zero amount means "not entered yet" and does not block.
func (p CheckoutPolicy) Allowed(itemCount int, in models.PricingInputs, res models.PricingResult) bool {
	if itemCount == 0 {
		return false
	}
	total := res.Total.Round(p.DecimalPlaces)
	if in.AmountPaid.IsZero() {
		return !p.RequirePayment
	}
	return !in.AmountPaid.LessThan(total)
}

// Insufficient reports whether the displayed change is negative
func (p CheckoutPolicy) Insufficient(res models.PricingResult) bool {
	return res.Change.Round(p.DecimalPlaces).IsNegative()
}
