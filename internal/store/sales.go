package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos-terminal/internal/models"

	"github.com/shopspring/decimal"
)

// ErrSaleNotFound is returned when the journal has no entry for an order
var ErrSaleNotFound = errors.New("sale not found")

// SalesSummary aggregates journal entries over a period
type SalesSummary struct {
	Count      int             `db:"sale_count" json:"count"`
	Total      decimal.Decimal `db:"total" json:"total"`
	AmountPaid decimal.Decimal `db:"amount_paid" json:"amount_paid"`
}

// RecordSale journals a completed sale; recording the same order twice is a no-op
func (s *Store) RecordSale(ctx context.Context, r *models.Receipt) error {
	query := `
		INSERT INTO terminal_sales (order_id, terminal_id, total, amount_paid, change_amount, payment_method, receipt_html)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING created_at`

	err := s.db.GetContext(ctx, &r.CreatedAt, query,
		r.OrderID, s.terminalID, r.Total, r.Paid, r.Change, r.Method, r.HTML)
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// GetSale retrieves a journaled sale by order id
func (s *Store) GetSale(ctx context.Context, orderID string) (*models.Receipt, error) {
	var r models.Receipt
	err := s.db.GetContext(ctx, &r, `
		SELECT order_id, receipt_html, total, amount_paid, change_amount, payment_method, created_at
		FROM terminal_sales WHERE order_id = $1 AND terminal_id = $2`, orderID, s.terminalID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListSales returns sales recorded in [from, to), newest first
func (s *Store) ListSales(ctx context.Context, from, to time.Time, limit int) ([]models.Receipt, error) {
	var sales []models.Receipt
	err := s.db.SelectContext(ctx, &sales, `
		SELECT order_id, receipt_html, total, amount_paid, change_amount, payment_method, created_at
		FROM terminal_sales
		WHERE terminal_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4`, s.terminalID, from, to, limit)
	return sales, err
}

// Summarize totals the sales recorded in [from, to)
func (s *Store) Summarize(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	var sum SalesSummary
	err := s.db.GetContext(ctx, &sum, `
		SELECT COUNT(*) AS sale_count,
		       COALESCE(SUM(total), 0) AS total,
		       COALESCE(SUM(amount_paid), 0) AS amount_paid
		FROM terminal_sales
		WHERE terminal_id = $1 AND created_at >= $2 AND created_at < $3`, s.terminalID, from, to)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
