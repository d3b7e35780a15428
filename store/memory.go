package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store with the same semantics as
// PostgresStore. It backs local development when no DSN is configured and
// the concurrency property tests. The single mutex stands in for the
// database transaction: every multi-record mutation holds it for the whole
// read-validate-write cycle.
type MemoryStore struct {
	mu       sync.Mutex
	products map[int64]*ProductRow
	carts    map[string]map[int64]*CartRow
	orders   []OrderRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*ProductRow),
		carts:    make(map[string]map[int64]*CartRow),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetProduct(productID int64) (ProductRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return ProductRow{}, ErrProductNotFound
	}
	return *p, nil
}

func (s *MemoryStore) ListProducts() ([]ProductRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProductRow, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SeedCatalog(seed []ProductSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.products) > 0 {
		return nil
	}
	for _, p := range seed {
		s.products[p.ID] = &ProductRow{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
	}
	return nil
}

func (s *MemoryStore) IncrementStock(productID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock += amount
	return nil
}

func (s *MemoryStore) DecrementStock(productID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < amount {
		return ErrInsufficientStock
	}
	p.Stock -= amount
	return nil
}

func (s *MemoryStore) AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if priceHint.Valid && priceHint.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}

	p.Stock -= qty

	cart := s.carts[userID]
	if cart == nil {
		cart = make(map[int64]*CartRow)
		s.carts[userID] = cart
	}
	if line, ok := cart[productID]; ok {
		line.Quantity += qty
		return nil
	}

	name, price := p.Name, p.Price
	if nameHint != "" {
		name = nameHint
	}
	if priceHint.Valid {
		price = priceHint.Decimal
	}
	cart[productID] = &CartRow{UserID: userID, ProductID: productID, Name: name, Price: price, Quantity: qty}
	return nil
}

func (s *MemoryStore) IncreaseQuantity(userID string, productID int64, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.carts[userID][productID]
	if !ok {
		return ErrCartItemNotFound
	}
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock < delta {
		return ErrInsufficientStock
	}
	p.Stock -= delta
	line.Quantity += delta
	return nil
}

func (s *MemoryStore) DecreaseQuantity(userID string, productID int64, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.carts[userID][productID]
	if !ok {
		return ErrCartItemNotFound
	}
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}

	giveBack := delta
	if delta >= line.Quantity {
		giveBack = line.Quantity
		delete(s.carts[userID], productID)
	} else {
		line.Quantity -= delta
	}
	p.Stock += giveBack
	return nil
}

func (s *MemoryStore) RemoveItem(userID string, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.carts[userID][productID]
	if !ok {
		return ErrCartItemNotFound
	}
	if p, ok := s.products[productID]; ok {
		p.Stock += line.Quantity
	}
	delete(s.carts[userID], productID)
	return nil
}

func (s *MemoryStore) ClearCart(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for productID, line := range s.carts[userID] {
		if p, ok := s.products[productID]; ok {
			p.Stock += line.Quantity
		}
		delete(s.carts[userID], productID)
	}
	return nil
}

func (s *MemoryStore) ListItems(userID string) ([]CartRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []CartRow{}
	for _, line := range s.carts[userID] {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *MemoryStore) Checkout(userID string) (OrderRow, []OrderItemRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[userID]
	if len(cart) == 0 {
		return OrderRow{}, nil, fmt.Errorf("%w: cart is empty", ErrCheckoutFailed)
	}

	productIDs := make([]int64, 0, len(cart))
	for id := range cart {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	// Validate before mutating anything; a failed checkout leaves the cart
	// exactly as it was.
	items := make([]OrderItemRow, 0, len(cart))
	total := decimal.Zero
	for _, id := range productIDs {
		line := cart[id]
		p, ok := s.products[id]
		if !ok || p.Stock < 0 {
			return OrderRow{}, nil, fmt.Errorf("%w: corrupted stock for product %d", ErrCheckoutFailed, id)
		}
		items = append(items, OrderItemRow{ProductID: id, Name: line.Name, Quantity: line.Quantity, Price: line.Price})
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order := OrderRow{ID: uuid.NewString(), UserID: userID, Total: total, CreatedAt: time.Now().UTC()}
	s.orders = append(s.orders, order)
	delete(s.carts, userID)
	return order, items, nil
}
