package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/models"
	"pos-terminal/internal/pricing"
	"pos-terminal/internal/stock"
	"pos-terminal/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnknownProduct       = errors.New("product not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrReceiptNotFound      = errors.New("receipt not found")
)

const (
	defaultNoticeMS   = 3000
	addedNoticeMS     = 1000
	defaultReceiptTTL = 24 * time.Hour
)

// Journal keeps completed sales for reprint and reporting
type Journal interface {
	RecordSale(ctx context.Context, r *models.Receipt) error
	GetSale(ctx context.Context, orderID string) (*models.Receipt, error)
}

// ReceiptCache is a short lived receipt store shared between terminal processes
type ReceiptCache interface {
	CacheReceipt(ctx context.Context, orderID, html string, ttl time.Duration) error
	GetReceipt(ctx context.Context, orderID string) (string, bool, error)
}

// EventPublisher announces sales and failures to the rest of the shop
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishReceiptFailed(ctx context.Context, event *models.ReceiptFailedEvent) error
	PublishReconciliationFailed(ctx context.Context, event *models.ReconciliationFailedEvent) error
}

// ReceiptSource renders a receipt for an existing order
type ReceiptSource interface {
	FetchReceipt(ctx context.Context, orderID string) (string, error)
}

// Options configure a Controller. Journal, Cache, Publisher and Receipts are
// optional.
type Options struct {
	Formatter      pricing.Formatter
	Policy         pricing.CheckoutPolicy
	TaxRatePercent decimal.Decimal
	OrderStatus    string

	Journal    Journal
	Cache      ReceiptCache
	Publisher  EventPublisher
	Receipts   ReceiptSource
	ReceiptTTL time.Duration
}

// Controller is the cashier session: cart, pricing inputs, stock mirror and
// order submission. All state changes are serialized by one mutex; network
// calls run outside it.
type Controller struct {
	mu sync.Mutex

	cart      *cart.Store
	mirror    *stock.Mirror
	submitter *checkout.Submitter
	opts      Options
	logger    *zap.Logger

	discount      decimal.Decimal
	amountPaid    decimal.Decimal
	paymentMethod string
	lastReceipt   *models.Receipt
	notices       []models.Notice
}

// New creates a controller over an already loaded mirror
func New(mirror *stock.Mirror, submitter *checkout.Submitter, opts Options) *Controller {
	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = defaultReceiptTTL
	}
	if opts.OrderStatus == "" {
		opts.OrderStatus = models.OrderStatusCompleted
	}
	return &Controller{
		cart:          cart.NewStore(mirror),
		mirror:        mirror,
		submitter:     submitter,
		opts:          opts,
		logger:        util.ComponentLogger("controller"),
		paymentMethod: models.PaymentMethodCash,
	}
}

func (c *Controller) notify(level, message string, durationMS int64) {
	c.notices = append(c.notices, models.Notice{Level: level, Message: message, DurationMS: durationMS})
}

// notifyRejection turns a cart validation failure into the matching notice
func (c *Controller) notifyRejection(err error) {
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		c.notify(models.NoticeDanger, "This product is out of stock!", defaultNoticeMS)
	case errors.Is(err, cart.ErrStockExceeded):
		c.notify(models.NoticeWarning, "Cannot exceed available stock", defaultNoticeMS)
	case errors.Is(err, cart.ErrClearNotConfirmed):
		c.notify(models.NoticeWarning, "Confirm to clear the cart", defaultNoticeMS)
	default:
		c.notify(models.NoticeWarning, err.Error(), defaultNoticeMS)
	}
}

// AddProduct adds one unit of a mirrored product to the cart
func (c *Controller) AddProduct(id models.ProductID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.mirror.Get(id)
	if !ok {
		err := &cart.ValidationError{Op: "add", ProductID: id, Err: ErrUnknownProduct}
		c.notify(models.NoticeDanger, "Product not found", defaultNoticeMS)
		return err
	}

	if err := c.cart.Add(p); err != nil {
		c.notifyRejection(err)
		return err
	}
	c.notify(models.NoticeSuccess, fmt.Sprintf("Added %s to cart", p.Name), addedNoticeMS)
	return nil
}

// AdjustQuantity changes the quantity of the cart line at index by delta
func (c *Controller) AdjustQuantity(index, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cart.AdjustQuantity(index, delta); err != nil {
		c.notifyRejection(err)
		return err
	}
	return nil
}

// RemoveItem removes the cart line at index
func (c *Controller) RemoveItem(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cart.Remove(index); err != nil {
		c.notifyRejection(err)
		return err
	}
	return nil
}

// ClearCart empties the cart once the cashier confirmed it
func (c *Controller) ClearCart(confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cart.Clear(confirmed); err != nil {
		c.notifyRejection(err)
		return err
	}
	return nil
}

// SetDiscount sets the discount percentage from raw input
func (c *Controller) SetDiscount(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount = pricing.ParseDiscountPercent(raw)
}

// SetAmountPaid sets the tendered amount from raw input
func (c *Controller) SetAmountPaid(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amountPaid = pricing.ParseAmountPaid(raw)
}

// SetPaymentMethod selects the payment method; empty means cash
func (c *Controller) SetPaymentMethod(method string) error {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = models.PaymentMethodCash
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !models.ValidPaymentMethod(method) {
		err := &cart.ValidationError{Op: "payment_method", Err: fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)}
		c.notify(models.NoticeWarning, fmt.Sprintf("Unknown payment method %q", method), defaultNoticeMS)
		return err
	}
	c.paymentMethod = method
	return nil
}

func (c *Controller) inputs() models.PricingInputs {
	return models.PricingInputs{
		DiscountPercent: c.discount,
		AmountPaid:      c.amountPaid,
		TaxRatePercent:  c.opts.TaxRatePercent,
	}
}

// Products returns the mirrored products matching search
func (c *Controller) Products(search string) []ProductView {
	products := c.mirror.List(search)
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProductView{
			ID:     p.ID,
			SKU:    p.SKU,
			Name:   p.Name,
			Price:  c.opts.Formatter.FormatMoney(p.Price),
			Stock:  max(p.Stock, 0),
			Status: c.mirror.Status(p.ID),
		})
	}
	return out
}

// Notices drains the pending notices
func (c *Controller) Notices() []models.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainNotices()
}

func (c *Controller) drainNotices() []models.Notice {
	out := c.notices
	c.notices = nil
	if out == nil {
		out = []models.Notice{}
	}
	return out
}

// LastReceipt returns the receipt of the latest completed order, if any
func (c *Controller) LastReceipt() (*models.Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastReceipt == nil {
		return nil, false
	}
	r := *c.lastReceipt
	return &r, true
}

// Refresh reconciles the mirror with the server, keeping what the cart holds
func (c *Controller) Refresh(ctx context.Context) error {
	products, err := c.mirror.Fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.notify(models.NoticeWarning, "Failed to update product info. Please refresh the page.", defaultNoticeMS)
		c.mu.Unlock()
		c.publishReconciliationFailed(ctx, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror.Apply(products, c.cart.HeldQuantities())
	return nil
}

func (c *Controller) publishReconciliationFailed(ctx context.Context, cause error) {
	if c.opts.Publisher == nil {
		return
	}
	event := &models.ReconciliationFailedEvent{Reason: cause.Error()}
	if err := c.opts.Publisher.PublishReconciliationFailed(ctx, event); err != nil {
		c.logger.Warn("Failed to publish reconciliation failure", zap.Error(err))
	}
}
