package cart

import (
	"errors"
	"fmt"

	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"go.uber.org/zap"
)

// Validation failures. They leave the cart and the stock mirror untouched.
var (
	ErrOutOfStock        = errors.New("this product is out of stock")
	ErrStockExceeded     = errors.New("cannot exceed available stock")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrClearNotConfirmed = errors.New("clearing the cart must be confirmed")
	ErrEmptyCart         = errors.New("cart is empty")
)

// ValidationError is a recoverable, user facing rejection of a cart operation
type ValidationError struct {
	Op        string
	ProductID models.ProductID
	Err       error
}

func (e *ValidationError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("%s product %s: %v", e.Op, e.ProductID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a cart validation failure
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StockAdjuster receives the optimistic stock side effects of cart mutations
type StockAdjuster interface {
	Adjust(id models.ProductID, delta int) (int, bool)
}

// Store holds the line items of one cashier session. It is not safe for
// concurrent use; the controller serializes access.
type Store struct {
	items  []models.LineItem
	mirror StockAdjuster
	logger *zap.Logger
}

// NewStore creates an empty cart reporting stock changes to mirror
func NewStore(mirror StockAdjuster) *Store {
	return &Store{
		mirror: mirror,
		logger: util.ComponentLogger("cart"),
	}
}

func (s *Store) reject(op string, id models.ProductID, err error) error {
	util.CartRejectionsTotal.WithLabelValues(reasonLabel(err)).Inc()
	s.logger.Debug("Cart operation rejected",
		zap.String("op", op),
		zap.String("product_id", string(id)),
		zap.Error(err))
	return &ValidationError{Op: op, ProductID: id, Err: err}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrStockExceeded):
		return "stock_exceeded"
	case errors.Is(err, ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, ErrClearNotConfirmed):
		return "not_confirmed"
	default:
		return "other"
	}
}

// Add puts one unit of p in the cart. p.Stock is the currently mirrored stock.
func (s *Store) Add(p models.Product) error {
	if p.Stock < 1 {
		return s.reject("add", p.ID, ErrOutOfStock)
	}

	if i := s.indexOf(p.ID); i >= 0 {
		item := &s.items[i]
		if item.Quantity >= item.StockAtAdd {
			return s.reject("add", p.ID, ErrStockExceeded)
		}
		item.Quantity++
	} else {
		s.items = append(s.items, models.LineItem{
			ProductID:  p.ID,
			Name:       p.Name,
			UnitPrice:  p.Price,
			Quantity:   1,
			StockAtAdd: p.Stock,
		})
	}

	s.mirror.Adjust(p.ID, -1)
	util.CartOperationsTotal.WithLabelValues("add").Inc()
	return nil
}

// AdjustQuantity changes the quantity of the item at index by delta. A result
// below one removes the item; a result above the recorded stock is rejected.
func (s *Store) AdjustQuantity(index, delta int) error {
	if index < 0 || index >= len(s.items) {
		return s.reject("adjust", "", ErrItemNotFound)
	}
	if delta == 0 {
		return nil
	}

	item := &s.items[index]
	newQuantity := item.Quantity + delta
	if newQuantity < 1 {
		return s.Remove(index)
	}
	if newQuantity > item.StockAtAdd {
		return s.reject("adjust", item.ProductID, ErrStockExceeded)
	}

	item.Quantity = newQuantity
	s.mirror.Adjust(item.ProductID, -delta)
	util.CartOperationsTotal.WithLabelValues("adjust").Inc()
	return nil
}

// Remove deletes the item at index and gives its quantity back to the mirror
func (s *Store) Remove(index int) error {
	if index < 0 || index >= len(s.items) {
		return s.reject("remove", "", ErrItemNotFound)
	}

	item := s.items[index]
	s.mirror.Adjust(item.ProductID, item.Quantity)
	s.items = append(s.items[:index], s.items[index+1:]...)
	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear restores the mirrored stock of every item and empties the cart.
// Clearing an empty cart is a no-op and needs no confirmation.
func (s *Store) Clear(confirmed bool) error {
	if len(s.items) == 0 {
		return nil
	}
	if !confirmed {
		return s.reject("clear", "", ErrClearNotConfirmed)
	}

	for _, item := range s.items {
		s.mirror.Adjust(item.ProductID, item.Quantity)
	}
	s.items = nil
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// Reset empties the cart without touching the mirror. Used once the server
// owns the sold quantities.
func (s *Store) Reset() {
	s.items = nil
}

// Items returns a copy of the line items in insertion order
func (s *Store) Items() []models.LineItem {
	out := make([]models.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of line items
func (s *Store) Len() int {
	return len(s.items)
}

// HeldQuantities returns the quantity held in the cart per product
func (s *Store) HeldQuantities() map[models.ProductID]int {
	held := make(map[models.ProductID]int, len(s.items))
	for _, item := range s.items {
		held[item.ProductID] += item.Quantity
	}
	return held
}

func (s *Store) indexOf(id models.ProductID) int {
	for i := range s.items {
		if s.items[i].ProductID == id {
			return i
		}
	}
	return -1
}
