package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/models"
	"pos-terminal/internal/pricing"
	"pos-terminal/internal/stock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu          sync.Mutex
	createErr   error
	receiptErr  error
	requests    []*models.OrderRequest
	receiptHTML string
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req *models.OrderRequest, key string) (*models.CreatedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.CreatedOrder{ID: "42", Status: models.OrderStatusCompleted}, nil
}

func (f *fakeGateway) FetchReceipt(ctx context.Context, orderID string) (string, error) {
	if f.receiptErr != nil {
		return "", f.receiptErr
	}
	if f.receiptHTML != "" {
		return f.receiptHTML, nil
	}
	return "<div>receipt " + orderID + "</div>", nil
}

type fakeSource struct {
	products []models.Product
	err      error
}

func (f *fakeSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type fakeJournal struct {
	sales map[string]*models.Receipt
}

func (f *fakeJournal) RecordSale(ctx context.Context, r *models.Receipt) error {
	f.sales[r.OrderID] = r
	return nil
}

func (f *fakeJournal) GetSale(ctx context.Context, orderID string) (*models.Receipt, error) {
	r, ok := f.sales[orderID]
	if !ok {
		return nil, errors.New("sale not found")
	}
	return r, nil
}

type fakeCache struct {
	receipts map[string]string
}

func (f *fakeCache) CacheReceipt(ctx context.Context, orderID, html string, ttl time.Duration) error {
	f.receipts[orderID] = html
	return nil
}

func (f *fakeCache) GetReceipt(ctx context.Context, orderID string) (string, bool, error) {
	html, ok := f.receipts[orderID]
	return html, ok, nil
}

type fakePublisher struct {
	sales     []*models.SaleCompletedEvent
	receipts  []*models.ReceiptFailedEvent
	reconcile []*models.ReconciliationFailedEvent
}

func (f *fakePublisher) PublishSaleCompleted(ctx context.Context, e *models.SaleCompletedEvent) error {
	f.sales = append(f.sales, e)
	return nil
}

func (f *fakePublisher) PublishReceiptFailed(ctx context.Context, e *models.ReceiptFailedEvent) error {
	f.receipts = append(f.receipts, e)
	return nil
}

func (f *fakePublisher) PublishReconciliationFailed(ctx context.Context, e *models.ReconciliationFailedEvent) error {
	f.reconcile = append(f.reconcile, e)
	return nil
}

type fixture struct {
	ctrl    *Controller
	gw      *fakeGateway
	src     *fakeSource
	mirror  *stock.Mirror
	journal *fakeJournal
	cache   *fakeCache
	pub     *fakePublisher
	now     time.Time
}

func product(id, name, price string, stock int) models.Product {
	return models.Product{ID: models.ProductID(id), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func newFixture(t *testing.T, products ...models.Product) *fixture {
	t.Helper()

	f := &fixture{
		gw:      &fakeGateway{},
		src:     &fakeSource{products: products},
		journal: &fakeJournal{sales: map[string]*models.Receipt{}},
		cache:   &fakeCache{receipts: map[string]string{}},
		pub:     &fakePublisher{},
		now:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.mirror = stock.NewMirror(f.src)
	f.mirror.Load(products)

	sub := checkout.NewSubmitter(f.gw, checkout.Options{
		Clock: func() time.Time { return f.now },
	})
	f.ctrl = New(f.mirror, sub, Options{
		Formatter:      pricing.NewFormatter("P", true, 2),
		Policy:         pricing.CheckoutPolicy{DecimalPlaces: 2},
		TaxRatePercent: decimal.NewFromInt(8),
		Journal:        f.journal,
		Cache:          f.cache,
		Publisher:      f.pub,
		Receipts:       f.gw,
	})
	return f
}

func (f *fixture) stockOf(t *testing.T, id models.ProductID) int {
	t.Helper()
	p, ok := f.mirror.Get(id)
	require.True(t, ok)
	return p.Stock
}

func TestAddProductUpToStock(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 2))

	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("1"))

	err := f.ctrl.AddProduct("1")
	require.Error(t, err)
	assert.True(t, cart.IsValidation(err))

	v := f.ctrl.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.Equal(t, "200.00", v.Subtotal)
	assert.Equal(t, 0, f.stockOf(t, "1"))

	require.Len(t, v.Notices, 3)
	assert.Equal(t, models.Notice{Level: models.NoticeSuccess, Message: "Added Bread to cart", DurationMS: 1000}, v.Notices[0])
	assert.Equal(t, models.NoticeDanger, v.Notices[2].Level)
	assert.Equal(t, "This product is out of stock!", v.Notices[2].Message)

	assert.Empty(t, f.ctrl.View().Notices)
}

func TestAddProductOutOfStockAndUnknown(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 0))

	assert.ErrorIs(t, f.ctrl.AddProduct("1"), cart.ErrOutOfStock)
	assert.ErrorIs(t, f.ctrl.AddProduct("9"), ErrUnknownProduct)
	assert.Empty(t, f.ctrl.View().Items)
}

func TestViewTotals(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.SetDiscount("10")

	v := f.ctrl.View()
	assert.Equal(t, "200.00", v.Subtotal)
	assert.Equal(t, "20.00", v.DiscountAmount)
	assert.Equal(t, "14.40", v.TaxAmount)
	assert.Equal(t, "194.40", v.Total)
	assert.Equal(t, "10", v.DiscountPercent)
	assert.Equal(t, "", v.AmountPaid)
	assert.True(t, v.CheckoutEnabled)

	f.ctrl.SetAmountPaid("200")
	v = f.ctrl.View()
	assert.Equal(t, "5.60", v.Change)
	assert.False(t, v.Insufficient)
	assert.True(t, v.CheckoutEnabled)

	f.ctrl.SetAmountPaid("100")
	v = f.ctrl.View()
	assert.Equal(t, "-94.60", v.Change)
	assert.True(t, v.Insufficient)
	assert.False(t, v.CheckoutEnabled)

	f.ctrl.SetAmountPaid("1,500")
	assert.Equal(t, "1,500", f.ctrl.View().AmountPaid)
}

func TestAdjustRemoveAndClear(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 3), product("2", "Milk", "50", 4))
	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("2"))

	require.NoError(t, f.ctrl.AdjustQuantity(0, 2))
	assert.Equal(t, 0, f.stockOf(t, "1"))
	assert.ErrorIs(t, f.ctrl.AdjustQuantity(0, 1), cart.ErrStockExceeded)

	require.NoError(t, f.ctrl.RemoveItem(1))
	assert.Equal(t, 4, f.stockOf(t, "2"))
	assert.ErrorIs(t, f.ctrl.RemoveItem(5), cart.ErrItemNotFound)

	assert.ErrorIs(t, f.ctrl.ClearCart(false), cart.ErrClearNotConfirmed)
	require.NoError(t, f.ctrl.ClearCart(true))
	assert.Equal(t, 3, f.stockOf(t, "1"))
	assert.Empty(t, f.ctrl.View().Items)
}

func TestSetPaymentMethod(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.SetPaymentMethod("Card"))
	assert.Equal(t, models.PaymentMethodCard, f.ctrl.View().PaymentMethod)

	err := f.ctrl.SetPaymentMethod("bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
	assert.True(t, cart.IsValidation(err))
	assert.Equal(t, models.PaymentMethodCard, f.ctrl.View().PaymentMethod)

	require.NoError(t, f.ctrl.SetPaymentMethod(""))
	assert.Equal(t, models.PaymentMethodCash, f.ctrl.View().PaymentMethod)
}

func TestCheckoutSuccess(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.SetDiscount("10")
	f.ctrl.SetAmountPaid("200")
	require.NoError(t, f.ctrl.SetPaymentMethod("card"))
	f.ctrl.Notices()

	f.src.products = []models.Product{product("1", "Bread", "110", 3)}

	out := f.ctrl.Checkout(context.Background())
	require.False(t, out.Ignored)
	require.NoError(t, out.Err)
	assert.Equal(t, checkout.StateReceiptReady, out.State)

	require.Len(t, f.gw.requests, 1)
	req := f.gw.requests[0]
	assert.Equal(t, []models.OrderItemRequest{{Product: "1", Quantity: 2, Price: decimal.RequireFromString("100")}}, req.Items)
	assert.Equal(t, "card", req.PaymentMethod)
	assert.Equal(t, models.OrderStatusCompleted, req.Status)
	assert.True(t, decimal.NewFromInt(8).Equal(req.TaxRate))

	v := f.ctrl.View()
	assert.Empty(t, v.Items)
	assert.Equal(t, "", v.DiscountPercent)
	assert.Equal(t, "", v.AmountPaid)
	assert.Equal(t, models.PaymentMethodCash, v.PaymentMethod)
	assert.False(t, v.CheckoutEnabled)
	assert.Equal(t, checkout.StateIdle, v.State)
	assert.Equal(t, "42", v.LastOrderID)
	require.Len(t, v.Notices, 1)
	assert.Equal(t, models.NoticeSuccess, v.Notices[0].Level)

	p, _ := f.mirror.Get("1")
	assert.Equal(t, 3, p.Stock)
	assert.True(t, decimal.RequireFromString("110").Equal(p.Price))

	r, ok := f.ctrl.LastReceipt()
	require.True(t, ok)
	assert.Equal(t, "<div>receipt 42</div>", r.HTML)
	assert.True(t, decimal.RequireFromString("194.4").Equal(r.Total))
	assert.True(t, decimal.RequireFromString("5.6").Equal(r.Change))

	assert.Contains(t, f.journal.sales, "42")
	assert.Equal(t, "<div>receipt 42</div>", f.cache.receipts["42"])
	require.Len(t, f.pub.sales, 1)
	assert.Len(t, f.pub.sales[0].Items, 1)
}

func TestCheckoutCreateFailureKeepsCart(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.Notices()
	f.gw.createErr = errors.New("create order failed: 400 - out of stock")

	out := f.ctrl.Checkout(context.Background())
	var createErr *checkout.CreateOrderError
	require.ErrorAs(t, out.Err, &createErr)
	assert.Equal(t, checkout.StateFailed, out.State)

	v := f.ctrl.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, 4, f.stockOf(t, "1"))
	assert.True(t, v.CheckoutEnabled)
	require.Len(t, v.Notices, 1)
	assert.Equal(t, models.NoticeDanger, v.Notices[0].Level)
	assert.Contains(t, v.Notices[0].Message, "400 - out of stock")

	f.gw.createErr = nil
	out = f.ctrl.Checkout(context.Background())
	assert.True(t, out.Ignored)
	assert.Equal(t, checkout.IgnoredCooldown, out.IgnoreReason)

	f.now = f.now.Add(3 * time.Second)
	out = f.ctrl.Checkout(context.Background())
	require.NoError(t, out.Err)
	assert.Len(t, f.gw.requests, 2)
}

func TestCheckoutReceiptFailureIsDistinct(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.Notices()
	f.gw.receiptErr = errors.New("fetch receipt failed: 500 - boom")

	out := f.ctrl.Checkout(context.Background())
	var receiptErr *checkout.ReceiptError
	require.ErrorAs(t, out.Err, &receiptErr)
	assert.Equal(t, "42", out.OrderID())

	v := f.ctrl.View()
	require.Len(t, v.Notices, 1)
	assert.Equal(t, models.NoticeWarning, v.Notices[0].Level)
	assert.Contains(t, v.Notices[0].Message, "Order #42 was created")
	assert.Len(t, v.Items, 1)

	require.Len(t, f.pub.receipts, 1)
	assert.Equal(t, "42", f.pub.receipts[0].OrderID)
	assert.Empty(t, f.pub.sales)
	assert.Empty(t, f.journal.sales)
}

type acceptedErr struct{}

func (acceptedErr) Error() string { return "order accepted but the response could not be read" }
func (acceptedErr) OrderAccepted() bool { return true }

func TestCheckoutUnconfirmedOrderKeepsCart(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.Notices()
	f.gw.createErr = acceptedErr{}

	out := f.ctrl.Checkout(context.Background())
	var unconfirmed *checkout.UnconfirmedOrderError
	require.ErrorAs(t, out.Err, &unconfirmed)
	var createErr *checkout.CreateOrderError
	assert.False(t, errors.As(out.Err, &createErr))

	v := f.ctrl.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, 4, f.stockOf(t, "1"))
	require.Len(t, v.Notices, 1)
	assert.Equal(t, models.NoticeWarning, v.Notices[0].Level)
	assert.Contains(t, v.Notices[0].Message, "Check recent orders")

	require.Len(t, f.pub.receipts, 1)
	assert.Empty(t, f.pub.receipts[0].OrderID)
	assert.Empty(t, f.pub.sales)
	assert.Empty(t, f.journal.sales)
}

func TestCheckoutIgnoredWhenDisabled(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))

	out := f.ctrl.Checkout(context.Background())
	assert.True(t, out.Ignored)
	assert.Equal(t, checkout.IgnoredDisabled, out.IgnoreReason)

	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.SetAmountPaid("50")
	out = f.ctrl.Checkout(context.Background())
	assert.True(t, out.Ignored)
	assert.Empty(t, f.gw.requests)
}

func TestRefreshKeepsHeldQuantities(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("1"))

	f.src.products = []models.Product{product("1", "Bread", "100", 10)}
	require.NoError(t, f.ctrl.Refresh(context.Background()))
	assert.Equal(t, 8, f.stockOf(t, "1"))

	require.NoError(t, f.ctrl.ClearCart(true))
	assert.Equal(t, 10, f.stockOf(t, "1"))
}

func TestRefreshBelowHeldQuantity(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 2))
	require.NoError(t, f.ctrl.AddProduct("1"))
	require.NoError(t, f.ctrl.AddProduct("1"))

	f.src.products = []models.Product{product("1", "Bread", "100", 1)}
	require.NoError(t, f.ctrl.Refresh(context.Background()))

	views := f.ctrl.Products("")
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].Stock)
	assert.Equal(t, models.StockStatusOutOfStock, views[0].Status)

	require.NoError(t, f.ctrl.ClearCart(true))
	assert.Equal(t, 1, f.stockOf(t, "1"))
}

func TestRefreshFailureLeavesMirrorStale(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	require.NoError(t, f.ctrl.AddProduct("1"))
	f.ctrl.Notices()
	f.src.err = errors.New("connection refused")

	err := f.ctrl.Refresh(context.Background())
	assert.ErrorIs(t, err, stock.ErrReconcile)
	assert.Equal(t, 4, f.stockOf(t, "1"))

	notices := f.ctrl.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to update product info. Please refresh the page.", notices[0].Message)
	assert.Len(t, f.pub.reconcile, 1)
}

func TestProductsView(t *testing.T) {
	f := newFixture(t, product("1", "White Bread", "1250", 3), product("2", "Milk", "50", 0))

	all := f.ctrl.Products("")
	require.Len(t, all, 2)
	assert.Equal(t, "Milk", all[0].Name)
	assert.Equal(t, models.StockStatusOutOfStock, all[0].Status)
	assert.Equal(t, "P1,250.00", all[1].Price)

	assert.Len(t, f.ctrl.Products("bread"), 1)
}

func TestReceiptLookup(t *testing.T) {
	f := newFixture(t, product("1", "Bread", "100", 5))
	f.journal.sales["7"] = &models.Receipt{OrderID: "7", HTML: "<p>journal</p>"}
	f.cache.receipts["8"] = "<p>cache</p>"
	f.gw.receiptHTML = "<p>server</p>"

	r, err := f.ctrl.Receipt(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "<p>journal</p>", r.HTML)

	r, err = f.ctrl.Receipt(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, "<p>cache</p>", r.HTML)

	r, err = f.ctrl.Receipt(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "<p>server</p>", r.HTML)

	f.gw.receiptErr = errors.New("404")
	_, err = f.ctrl.Receipt(context.Background(), "10")
	assert.ErrorIs(t, err, ErrReceiptNotFound)

	_, ok := f.ctrl.LastReceipt()
	assert.False(t, ok)
}
