package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted        = "SALE_COMPLETED"
	EventTypeReceiptFailed        = "RECEIPT_FAILED"
	EventTypeReconciliationFailed = "RECONCILIATION_FAILED"
	EventTypeProductUpdated       = "PRODUCT_UPDATED"
	EventTypeStockChanged         = "STOCK_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	TerminalID string    `json:"terminal_id,omitempty"`
}

// SaleCompletedEvent published when an order and its receipt both succeeded
type SaleCompletedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMethod string          `json:"payment_method"`
	Items         []SaleItemData  `json:"items"`
}

// ReceiptFailedEvent published when the order exists server-side but its receipt could not be fetched
type ReceiptFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// ReconciliationFailedEvent published when the stock mirror stays stale
type ReconciliationFailedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// ProductEvent is consumed from the catalog topic
type ProductEvent struct {
	BaseEvent
	ProductID ProductID `json:"product_id"`
}

// SaleItemData represents item data in events
type SaleItemData struct {
	ProductID ProductID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
