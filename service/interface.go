package service

import (
	"github.com/shopspring/decimal"

	"storefront-ledger/store"
)

type ServiceInterface interface {
	GetProduct(productID int64) (ProductDTO, error)
	ListProducts() ([]ProductDTO, error)
	SeedCatalog(seed []store.ProductSeed) error
	RestockProduct(productID int64, amount int) error

	AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error
	IncreaseQuantity(userID string, productID int64, delta int) error
	DecreaseQuantity(userID string, productID int64, delta int) error
	RemoveItem(userID string, productID int64) error
	ClearCart(userID string) error
	GetCart(userID string) ([]CartLineDTO, decimal.Decimal, error)

	Checkout(userID string) (OrderDTO, error)
}
