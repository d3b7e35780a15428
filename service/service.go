package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront-ledger/store"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) GetProduct(productID int64) (ProductDTO, error) {
	p, err := s.store.GetProduct(productID)
	if err != nil {
		return ProductDTO{}, err
	}
	return ProductDTO{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}, nil
}

func (s *Service) ListProducts() ([]ProductDTO, error) {
	rows, err := s.store.ListProducts()
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProductDTO{ID: r.ID, Name: r.Name, Price: r.Price, Stock: r.Stock})
	}
	return out, nil
}

func (s *Service) SeedCatalog(seed []store.ProductSeed) error {
	for _, p := range seed {
		if p.Name == "" || p.Price.IsNegative() || p.Stock < 0 {
			return fmt.Errorf("%w: bad seed product %d", store.ErrInvalidInput, p.ID)
		}
	}
	return s.store.SeedCatalog(seed)
}

func (s *Service) RestockProduct(productID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", store.ErrInvalidInput)
	}
	return s.store.IncrementStock(productID, amount)
}

func (s *Service) AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", store.ErrInvalidInput)
	}
	if priceHint.Valid && priceHint.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", store.ErrInvalidInput)
	}
	return s.store.AddItem(userID, productID, qty, nameHint, priceHint)
}

func (s *Service) IncreaseQuantity(userID string, productID int64, delta int) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", store.ErrInvalidInput)
	}
	return s.store.IncreaseQuantity(userID, productID, delta)
}

func (s *Service) DecreaseQuantity(userID string, productID int64, delta int) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", store.ErrInvalidInput)
	}
	return s.store.DecreaseQuantity(userID, productID, delta)
}

func (s *Service) RemoveItem(userID string, productID int64) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	return s.store.RemoveItem(userID, productID)
}

func (s *Service) ClearCart(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	return s.store.ClearCart(userID)
}

// GetCart returns the user's cart lines plus the running total computed from
// the line snapshots.
func (s *Service) GetCart(userID string) ([]CartLineDTO, decimal.Decimal, error) {
	if userID == "" {
		return nil, decimal.Zero, fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	rows, err := s.store.ListItems(userID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	out := make([]CartLineDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, CartLineDTO{ProductID: r.ProductID, Name: r.Name, Price: r.Price, Quantity: r.Quantity})
		total = total.Add(r.Price.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}
	return out, total, nil
}

func (s *Service) Checkout(userID string) (OrderDTO, error) {
	if userID == "" {
		return OrderDTO{}, fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	orderRow, items, err := s.store.Checkout(userID)
	if err != nil {
		return OrderDTO{}, err
	}
	od := OrderDTO{
		ID:        orderRow.ID,
		UserID:    orderRow.UserID,
		Total:     orderRow.Total,
		CreatedAt: orderRow.CreatedAt,
		Items:     make([]CartLineDTO, 0, len(items)),
	}
	for _, it := range items {
		od.Items = append(od.Items, CartLineDTO{ProductID: it.ProductID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	return od, nil
}

// DTOs
type ProductDTO struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type CartLineDTO struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type OrderDTO struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []CartLineDTO   `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
