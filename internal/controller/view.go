package controller

import (
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/models"
	"pos-terminal/internal/pricing"
)

// ProductView is a product card
type ProductView struct {
	ID     models.ProductID `json:"id"`
	SKU    string           `json:"sku,omitempty"`
	Name   string           `json:"name"`
	Price  string           `json:"price"`
	Stock  int              `json:"stock"`
	Status string           `json:"status"`
}

// LineView is a rendered cart line
type LineView struct {
	Index      int              `json:"index"`
	ProductID  models.ProductID `json:"product_id"`
	Name       string           `json:"name"`
	UnitPrice  string           `json:"unit_price"`
	Quantity   int              `json:"quantity"`
	StockAtAdd int              `json:"stock_at_add"`
	LineTotal  string           `json:"line_total"`
}

// View is everything the cashier screen shows
type View struct {
	Items           []LineView      `json:"items"`
	Subtotal        string          `json:"subtotal"`
	DiscountAmount  string          `json:"discount_amount"`
	TaxAmount       string          `json:"tax_amount"`
	Total           string          `json:"total"`
	Change          string          `json:"change"`
	Insufficient    bool            `json:"insufficient"`
	DiscountPercent string          `json:"discount_percent"`
	AmountPaid      string          `json:"amount_paid"`
	PaymentMethod   string          `json:"payment_method"`
	TaxRatePercent  string          `json:"tax_rate_percent"`
	CheckoutEnabled bool            `json:"checkout_enabled"`
	State           checkout.State  `json:"state"`
	LastOrderID     string          `json:"last_order_id,omitempty"`
	Notices         []models.Notice `json:"notices"`
}

// View renders the current state and drains pending notices
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.cart.Items()
	in := c.inputs()
	res := pricing.Compute(items, in)
	f := c.opts.Formatter
	state := c.submitter.State()

	lines := make([]LineView, 0, len(items))
	for i, li := range items {
		lines = append(lines, LineView{
			Index:      i,
			ProductID:  li.ProductID,
			Name:       li.Name,
			UnitPrice:  f.Format(li.UnitPrice),
			Quantity:   li.Quantity,
			StockAtAdd: li.StockAtAdd,
			LineTotal:  f.Format(li.LineTotal()),
		})
	}

	v := View{
		Items:           lines,
		Subtotal:        f.Format(res.Subtotal),
		DiscountAmount:  f.Format(res.DiscountAmount),
		TaxAmount:       f.Format(res.TaxAmount),
		Total:           f.Format(res.Total),
		Change:          f.Format(res.Change),
		Insufficient:    c.opts.Policy.Insufficient(res),
		DiscountPercent: inputText(in.DiscountPercent.String(), in.DiscountPercent.IsZero()),
		AmountPaid:      inputText(f.FormatInput(in.AmountPaid), in.AmountPaid.IsZero()),
		PaymentMethod:   c.paymentMethod,
		TaxRatePercent:  in.TaxRatePercent.String(),
		CheckoutEnabled: c.opts.Policy.Allowed(len(items), in, res) && state == checkout.StateIdle,
		State:           state,
		Notices:         c.drainNotices(),
	}
	if c.lastReceipt != nil {
		v.LastOrderID = c.lastReceipt.OrderID
	}
	return v
}

// inputText renders an input field; zero shows as an empty field
func inputText(s string, zero bool) string {
	if zero {
		return ""
	}
	return s
}
