package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProductID identifies a product. The server sends it as a JSON number,
// the terminal handles it as an opaque string.
type ProductID string

// UnmarshalJSON accepts both `5` and `"5"`.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = ProductID(s)
	return nil
}

// OrderID identifies an order created by the server. Like ProductID it may
// arrive as a JSON number or string.
type OrderID string

// UnmarshalJSON accepts both `42` and `"42"`.
func (id *OrderID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = OrderID(s)
	return nil
}

func (id OrderID) String() string {
	return string(id)
}

func decodeID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	return n.String(), nil
}

// Product represents a catalog product as served by the products API
type Product struct {
	ID           ProductID       `json:"id"`
	SKU          string          `json:"sku,omitempty"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	ReorderLevel int             `json:"reorder_level,omitempty"`
	IsActive     *bool           `json:"is_active,omitempty"`
}

// Active reports whether the product is sellable; a missing flag counts as active
func (p Product) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// LineItem is one product entry in the cart
type LineItem struct {
	ProductID  ProductID       `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	StockAtAdd int             `json:"stock_at_add"`
}

// LineTotal returns unit price times quantity
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PricingInputs are the scalar inputs of a totals computation
type PricingInputs struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent"`
}

// PricingResult holds unrounded totals; rounding happens when formatting
type PricingResult struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	Change         decimal.Decimal `json:"change"`
}

// Payment methods accepted by the order API
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
	PaymentMethodMobile   = "mobile"
)

// ValidPaymentMethod reports whether m is one of the accepted payment methods
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodMobile:
		return true
	}
	return false
}

// Order statuses understood by the order API
const (
	OrderStatusDraft     = "draft"
	OrderStatusCompleted = "completed"
)

// OrderRequest is the body of a create-order call
type OrderRequest struct {
	Items         []OrderItemRequest `json:"items"`
	TaxRate       decimal.Decimal    `json:"tax_rate"`
	Discount      decimal.Decimal    `json:"discount"`
	PaymentMethod string             `json:"payment_method"`
	AmountPaid    decimal.Decimal    `json:"amount_paid"`
	Status        string             `json:"status,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	Product  ProductID       `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CreatedOrder is the part of the create-order response the terminal uses
type CreatedOrder struct {
	ID          OrderID         `json:"id"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	ChangeGiven decimal.Decimal `json:"change_given"`
}

// Receipt is a server rendered receipt for a completed order
type Receipt struct {
	OrderID   string          `json:"order_id" db:"order_id"`
	HTML      string          `json:"html" db:"receipt_html"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Paid      decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Change    decimal.Decimal `json:"change" db:"change_amount"`
	Method    string          `json:"payment_method" db:"payment_method"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Notice levels
const (
	NoticeSuccess = "success"
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeDanger  = "danger"
)

// Notice is a transient, dismissible message for the cashier
type Notice struct {
	Level      string `json:"level"`
	Message    string `json:"message"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Stock badge statuses
const (
	StockStatusInStock    = "in_stock"
	StockStatusOutOfStock = "out_of_stock"
)
