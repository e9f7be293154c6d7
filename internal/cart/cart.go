package cart

import (
	"errors"
	"sync"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("requested quantity exceeds available stock")
	ErrInactiveProduct   = errors.New("product is not available for purchase")
	ErrNotInCart         = errors.New("product not in cart")
)

// Store holds the cart for one client process. Quantities are bounded by
// product stock at every mutation.
type Store struct {
	mu    sync.Mutex
	items map[string]*models.CartItem
	order []string
}

// NewStore creates an empty cart
func NewStore() *Store {
	return &Store{items: make(map[string]*models.CartItem)}
}

// Add puts a product in the cart or increases its quantity.
func (s *Store) Add(product models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if !product.Active {
		return ErrInactiveProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[product.ID]; ok {
		if item.Quantity+quantity > product.Stock {
			return ErrInsufficientStock
		}
		item.Quantity += quantity
		return nil
	}

	if quantity > product.Stock {
		return ErrInsufficientStock
	}

	s.items[product.ID] = &models.CartItem{Product: product, Quantity: quantity}
	s.order = append(s.order, product.ID)
	return nil
}

// UpdateQuantity sets the quantity for a product already in the cart.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productID]
	if !ok {
		return ErrNotInCart
	}
	if quantity > item.Product.Stock {
		return ErrInsufficientStock
	}

	item.Quantity = quantity
	return nil
}

// Remove deletes a product from the cart
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[productID]; !ok {
		return
	}
	delete(s.items, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*models.CartItem)
	s.order = nil
}

// Items returns the cart contents in insertion order.
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CartItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// TotalPrice returns the cart total in Pi.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, item := range s.items {
		total += item.Product.PricePi * float64(item.Quantity)
	}
	return total
}

// TotalItems returns the total quantity across all cart lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}
