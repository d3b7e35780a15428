package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRow, CartRow, OrderRow etc are simple structs representing store records.
type ProductRow struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// CartRow is one reserved line of a user's cart. Name and Price are
// snapshots taken when the line was created; Quantity is stock already
// subtracted from the product's available count.
type CartRow struct {
	UserID    string
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

type OrderRow struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	CreatedAt time.Time
}

type OrderItemRow struct {
	ProductID int64
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// ProductSeed is one entry of the initial catalog passed to SeedCatalog.
type ProductSeed struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// Store is the ledger's storage adapter. Every method that touches more
// than one record applies its reads and writes as a single atomic
// transaction: no caller ever observes stock decremented without the
// matching cart line, or vice versa. Keys are typed (userID, productID)
// pairs; callers never see raw key strings.
type Store interface {
	// Catalog.
	GetProduct(productID int64) (ProductRow, error)
	ListProducts() ([]ProductRow, error)
	// SeedCatalog inserts the given products once, iff the catalog is
	// empty. Calling it against a non-empty catalog is a no-op.
	SeedCatalog(seed []ProductSeed) error
	IncrementStock(productID int64, amount int) error
	DecrementStock(productID int64, amount int) error

	// Cart ledger. AddItem reserves stock: it decrements the product's
	// stock and upserts the cart line in one transaction. The snapshot
	// name/price come from the hints when set, else from the product.
	AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error
	IncreaseQuantity(userID string, productID int64, delta int) error
	// DecreaseQuantity returns delta units to stock; if the line drops to
	// zero or below it is deleted and its full remainder returned.
	DecreaseQuantity(userID string, productID int64, delta int) error
	RemoveItem(userID string, productID int64) error
	ClearCart(userID string) error
	ListItems(userID string) ([]CartRow, error)

	// Checkout converts the user's reservations into an immutable order
	// and clears the cart, atomically. Stock is not touched: it was
	// already decremented when the lines were added.
	Checkout(userID string) (OrderRow, []OrderItemRow, error)

	Close() error
}
