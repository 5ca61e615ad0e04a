package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-terminal/internal/checkout"
	"pos-terminal/internal/models"
	"pos-terminal/internal/pricing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// sale is the cart as it was when the submission started
type sale struct {
	items  []models.LineItem
	inputs models.PricingInputs
	result models.PricingResult
	method string
}

// Checkout submits the current cart as an order. Ignored activations return
// an Outcome with Ignored set and change nothing.
func (c *Controller) Checkout(ctx context.Context) checkout.Outcome {
	c.mu.Lock()
	s := sale{
		items:  c.cart.Items(),
		inputs: c.inputs(),
		method: c.paymentMethod,
	}
	s.result = pricing.Compute(s.items, s.inputs)
	enabled := c.opts.Policy.Allowed(len(s.items), s.inputs, s.result)
	c.mu.Unlock()

	req := c.orderRequest(s)
	return c.submitter.Submit(ctx, req, enabled, func(ctx context.Context, o checkout.Outcome) {
		c.settle(ctx, o, s)
	})
}

func (c *Controller) orderRequest(s sale) *models.OrderRequest {
	items := make([]models.OrderItemRequest, 0, len(s.items))
	for _, li := range s.items {
		items = append(items, models.OrderItemRequest{
			Product:  li.ProductID,
			Quantity: li.Quantity,
			Price:    li.UnitPrice,
		})
	}
	return &models.OrderRequest{
		Items:         items,
		TaxRate:       s.inputs.TaxRatePercent,
		Discount:      s.inputs.DiscountPercent,
		PaymentMethod: s.method,
		AmountPaid:    s.inputs.AmountPaid,
		Status:        c.opts.OrderStatus,
	}
}

// settle runs while the submitter is still in ReceiptReady or Failed
func (c *Controller) settle(ctx context.Context, o checkout.Outcome, s sale) {
	if o.State == checkout.StateReceiptReady {
		c.completeSale(ctx, o, s)
		return
	}

	var receiptErr *checkout.ReceiptError
	if errors.As(o.Err, &receiptErr) {
		c.mu.Lock()
		c.notify(models.NoticeWarning,
			fmt.Sprintf("Order #%s was created but its receipt could not be loaded: %v", receiptErr.OrderID, receiptErr.Err),
			defaultNoticeMS)
		c.mu.Unlock()

		if c.opts.Publisher != nil {
			event := &models.ReceiptFailedEvent{OrderID: receiptErr.OrderID, Reason: receiptErr.Err.Error()}
			if err := c.opts.Publisher.PublishReceiptFailed(ctx, event); err != nil {
				c.logger.Warn("Failed to publish receipt failure", zap.Error(err))
			}
		}
		return
	}

	var unconfirmed *checkout.UnconfirmedOrderError
	if errors.As(o.Err, &unconfirmed) {
		c.mu.Lock()
		c.notify(models.NoticeWarning,
			fmt.Sprintf("The server accepted the order but its reply could not be read. Check recent orders before submitting again: %v", unconfirmed.Err),
			defaultNoticeMS)
		c.mu.Unlock()

		if c.opts.Publisher != nil {
			event := &models.ReceiptFailedEvent{Reason: unconfirmed.Err.Error()}
			if err := c.opts.Publisher.PublishReceiptFailed(ctx, event); err != nil {
				c.logger.Warn("Failed to publish unconfirmed order", zap.Error(err))
			}
		}
		return
	}

	c.mu.Lock()
	c.notify(models.NoticeDanger, fmt.Sprintf("Error: %v", o.Err), defaultNoticeMS)
	c.mu.Unlock()
}

func (c *Controller) completeSale(ctx context.Context, o checkout.Outcome, s sale) {
	places := c.opts.Policy.DecimalPlaces
	receipt := &models.Receipt{
		OrderID:   o.OrderID(),
		HTML:      o.ReceiptHTML,
		Total:     s.result.Total.Round(places),
		Paid:      s.inputs.AmountPaid,
		Change:    s.result.Change.Round(places),
		Method:    s.method,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.lastReceipt = receipt
	c.cart.Reset()
	c.discount = decimal.Zero
	c.amountPaid = decimal.Zero
	c.paymentMethod = models.PaymentMethodCash
	c.notify(models.NoticeSuccess, fmt.Sprintf("Order #%s completed", receipt.OrderID), defaultNoticeMS)
	c.mu.Unlock()

	c.keepReceipt(ctx, receipt)

	if c.opts.Publisher != nil {
		event := &models.SaleCompletedEvent{
			OrderID:       receipt.OrderID,
			Total:         receipt.Total,
			AmountPaid:    receipt.Paid,
			PaymentMethod: receipt.Method,
			Items:         saleItems(s.items),
		}
		if err := c.opts.Publisher.PublishSaleCompleted(ctx, event); err != nil {
			c.logger.Warn("Failed to publish sale", zap.String("order_id", receipt.OrderID), zap.Error(err))
		}
	}

	// A failed pass leaves a stale mirror and a notice; the sale stands.
	_ = c.Refresh(ctx)
}

// keepReceipt writes the receipt to the journal and the cache. Both are best effort.
func (c *Controller) keepReceipt(ctx context.Context, r *models.Receipt) {
	if c.opts.Journal != nil {
		if err := c.opts.Journal.RecordSale(ctx, r); err != nil {
			c.logger.Error("Failed to journal sale", zap.String("order_id", r.OrderID), zap.Error(err))
		}
	}
	if c.opts.Cache != nil {
		if err := c.opts.Cache.CacheReceipt(ctx, r.OrderID, r.HTML, c.opts.ReceiptTTL); err != nil {
			c.logger.Warn("Failed to cache receipt", zap.String("order_id", r.OrderID), zap.Error(err))
		}
	}
}

func saleItems(items []models.LineItem) []models.SaleItemData {
	out := make([]models.SaleItemData, 0, len(items))
	for _, li := range items {
		out = append(out, models.SaleItemData{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	return out
}

// Receipt returns the receipt of orderID for reprint. The session's last
// receipt, the journal and the cache are tried before the server.
func (c *Controller) Receipt(ctx context.Context, orderID string) (*models.Receipt, error) {
	if r, ok := c.LastReceipt(); ok && r.OrderID == orderID {
		return r, nil
	}

	if c.opts.Journal != nil {
		r, err := c.opts.Journal.GetSale(ctx, orderID)
		if err == nil {
			return r, nil
		}
		c.logger.Debug("Sale not in journal", zap.String("order_id", orderID), zap.Error(err))
	}

	if c.opts.Cache != nil {
		html, found, err := c.opts.Cache.GetReceipt(ctx, orderID)
		if err != nil {
			c.logger.Warn("Receipt cache lookup failed", zap.String("order_id", orderID), zap.Error(err))
		} else if found {
			return &models.Receipt{OrderID: orderID, HTML: html}, nil
		}
	}

	if c.opts.Receipts == nil {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, orderID)
	}
	html, err := c.opts.Receipts.FetchReceipt(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReceiptNotFound, orderID, err)
	}
	return &models.Receipt{OrderID: orderID, HTML: html}, nil
}
