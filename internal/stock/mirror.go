package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"go.uber.org/zap"
)

// ErrReconcile wraps every reconciliation failure. The mirror is left as it
// was, which is an accepted degraded state until the next pass.
var ErrReconcile = errors.New("stock reconciliation failed")

// ProductSource serves the authoritative product list
type ProductSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Mirror is the locally displayed copy of server inventory. It is adjusted
// optimistically on every cart mutation and corrected by Reconcile.
type Mirror struct {
	mu       sync.RWMutex
	products map[models.ProductID]*models.Product
	source   ProductSource
	logger   *zap.Logger
}

// NewMirror creates an empty mirror backed by source
func NewMirror(source ProductSource) *Mirror {
	return &Mirror{
		products: make(map[models.ProductID]*models.Product),
		source:   source,
		logger:   util.ComponentLogger("stock"),
	}
}

// Load replaces the tracked products. Inactive products are not tracked.
func (m *Mirror) Load(products []models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = make(map[models.ProductID]*models.Product, len(products))
	for _, p := range products {
		p.Stock = max(p.Stock, 0)
		m.track(p)
	}
}

// track stores p as given. Stock may be negative when the cart holds more
// than the server has left; displays clamp it.
func (m *Mirror) track(p models.Product) {
	if !p.Active() {
		delete(m.products, p.ID)
		return
	}
	m.products[p.ID] = &p
}

// Get returns the tracked product with its currently displayed stock
func (m *Mirror) Get(id models.ProductID) (models.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return models.Product{}, false
	}
	return *p, true
}

// List returns tracked products ordered by name, filtered by a
// case-insensitive name search when search is not empty.
func (m *Mirror) List(search string) []models.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Adjust changes the displayed stock of a product by delta and returns the
// new value. Unknown products are ignored.
func (m *Mirror) Adjust(id models.ProductID, delta int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		m.logger.Debug("Adjusting untracked product", zap.String("product_id", string(id)))
		return 0, false
	}
	p.Stock += delta
	return p.Stock, true
}

// Status returns the stock badge of a product
func (m *Mirror) Status(id models.ProductID) string {
	p, ok := m.Get(id)
	if !ok || p.Stock <= 0 {
		return models.StockStatusOutOfStock
	}
	return models.StockStatusInStock
}

// Fetch loads the authoritative product list without touching the mirror
func (m *Mirror) Fetch(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "StockMirror.Fetch")
	defer span.End()

	products, err := m.source.ListProducts(ctx)
	if err != nil {
		util.ReconciliationsTotal.WithLabelValues("failure").Inc()
		m.logger.Warn("Failed to reload product data", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrReconcile, err)
	}
	return products, nil
}

// Apply overwrites displayed stock and price with server values. held are
// the quantities still sitting in the cart; they stay subtracted so that
// restoring them later does not overshoot the server value, even when the
// server has fewer units left than the cart holds. Products the server no
// longer lists keep their last displayed values.
func (m *Mirror) Apply(products []models.Product, held map[models.ProductID]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		p.Stock = max(p.Stock, 0) - held[p.ID]
		m.track(p)
	}

	util.ReconciliationsTotal.WithLabelValues("success").Inc()
	m.logger.Info("Product info reloaded", zap.Int("count", len(products)))
}

// Reconcile fetches and applies in one step. On failure the mirror stays stale.
func (m *Mirror) Reconcile(ctx context.Context, held map[models.ProductID]int) error {
	products, err := m.Fetch(ctx)
	if err != nil {
		return err
	}
	m.Apply(products, held)
	return nil
}
