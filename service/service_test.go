package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"storefront-ledger/store"
)

// ---- fakeStore implementing store.Store via function fields ----
type fakeStore struct {
	GetProductFn       func(productID int64) (store.ProductRow, error)
	ListProductsFn     func() ([]store.ProductRow, error)
	SeedCatalogFn      func(seed []store.ProductSeed) error
	IncrementStockFn   func(productID int64, amount int) error
	DecrementStockFn   func(productID int64, amount int) error
	AddItemFn          func(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error
	IncreaseQuantityFn func(userID string, productID int64, delta int) error
	DecreaseQuantityFn func(userID string, productID int64, delta int) error
	RemoveItemFn       func(userID string, productID int64) error
	ClearCartFn        func(userID string) error
	ListItemsFn        func(userID string) ([]store.CartRow, error)
	CheckoutFn         func(userID string) (store.OrderRow, []store.OrderItemRow, error)
}

func (f *fakeStore) GetProduct(productID int64) (store.ProductRow, error) {
	return f.GetProductFn(productID)
}
func (f *fakeStore) ListProducts() ([]store.ProductRow, error)   { return f.ListProductsFn() }
func (f *fakeStore) SeedCatalog(seed []store.ProductSeed) error  { return f.SeedCatalogFn(seed) }
func (f *fakeStore) IncrementStock(productID int64, n int) error { return f.IncrementStockFn(productID, n) }
func (f *fakeStore) DecrementStock(productID int64, n int) error { return f.DecrementStockFn(productID, n) }
func (f *fakeStore) AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error {
	return f.AddItemFn(userID, productID, qty, nameHint, priceHint)
}
func (f *fakeStore) IncreaseQuantity(userID string, productID int64, delta int) error {
	return f.IncreaseQuantityFn(userID, productID, delta)
}
func (f *fakeStore) DecreaseQuantity(userID string, productID int64, delta int) error {
	return f.DecreaseQuantityFn(userID, productID, delta)
}
func (f *fakeStore) RemoveItem(userID string, productID int64) error {
	return f.RemoveItemFn(userID, productID)
}
func (f *fakeStore) ClearCart(userID string) error { return f.ClearCartFn(userID) }
func (f *fakeStore) ListItems(userID string) ([]store.CartRow, error) {
	return f.ListItemsFn(userID)
}
func (f *fakeStore) Checkout(userID string) (store.OrderRow, []store.OrderItemRow, error) {
	return f.CheckoutFn(userID)
}
func (f *fakeStore) Close() error { return nil }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// ---- Tests ----

func TestAddItemValidation(t *testing.T) {
	called := false
	svc := NewService(&fakeStore{
		AddItemFn: func(string, int64, int, string, decimal.NullDecimal) error {
			called = true
			return nil
		},
	})

	if err := svc.AddItem("", 1, 1, "", decimal.NullDecimal{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("empty user: expected ErrInvalidInput, got %v", err)
	}
	if err := svc.AddItem("u", 1, 0, "", decimal.NullDecimal{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("zero qty: expected ErrInvalidInput, got %v", err)
	}
	neg := decimal.NewNullDecimal(dec("-0.01"))
	if err := svc.AddItem("u", 1, 1, "", neg); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("negative price: expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Fatalf("store must not be reached on invalid input")
	}

	if err := svc.AddItem("u", 1, 1, "", decimal.NullDecimal{}); err != nil || !called {
		t.Fatalf("valid add should forward to store: err=%v called=%v", err, called)
	}
}

func TestQuantityDeltaValidation(t *testing.T) {
	svc := NewService(&fakeStore{
		IncreaseQuantityFn: func(string, int64, int) error { return nil },
		DecreaseQuantityFn: func(string, int64, int) error { return nil },
	})

	if err := svc.IncreaseQuantity("u", 1, 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.DecreaseQuantity("u", 1, -1); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.IncreaseQuantity("", 1, 1); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.IncreaseQuantity("u", 1, 2); err != nil {
		t.Fatalf("valid delta: %v", err)
	}
}

func TestGetCartComputesTotal(t *testing.T) {
	svc := NewService(&fakeStore{
		ListItemsFn: func(userID string) ([]store.CartRow, error) {
			return []store.CartRow{
				{UserID: userID, ProductID: 1, Name: "P", Price: dec("2.50"), Quantity: 4},
				{UserID: userID, ProductID: 2, Name: "Q", Price: dec("3.00"), Quantity: 2},
			}, nil
		},
	})

	items, total, err := svc.GetCart("alice")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if want := dec("16.00"); !total.Equal(want) {
		t.Fatalf("total: got %s want %s", total, want)
	}
}

func TestCheckoutMapsOrder(t *testing.T) {
	svc := NewService(&fakeStore{
		CheckoutFn: func(userID string) (store.OrderRow, []store.OrderItemRow, error) {
			return store.OrderRow{ID: "ord-1", UserID: userID, Total: dec("16.00")},
				[]store.OrderItemRow{
					{ProductID: 1, Name: "P", Quantity: 4, Price: dec("2.50")},
					{ProductID: 2, Name: "Q", Quantity: 2, Price: dec("3.00")},
				}, nil
		},
	})

	ord, err := svc.Checkout("alice")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if ord.ID != "ord-1" || ord.UserID != "alice" || len(ord.Items) != 2 {
		t.Fatalf("unexpected order: %+v", ord)
	}
	if !ord.Total.Equal(dec("16.00")) {
		t.Fatalf("total: got %s", ord.Total)
	}
}

func TestCheckoutRequiresUser(t *testing.T) {
	svc := NewService(&fakeStore{})
	if _, err := svc.Checkout(""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSeedCatalogValidation(t *testing.T) {
	svc := NewService(&fakeStore{
		SeedCatalogFn: func([]store.ProductSeed) error { return nil },
	})

	bad := []store.ProductSeed{{ID: 1, Name: "", Price: dec("2"), Stock: 1}}
	if err := svc.SeedCatalog(bad); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
	bad = []store.ProductSeed{{ID: 1, Name: "P", Price: dec("-2"), Stock: 1}}
	if err := svc.SeedCatalog(bad); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative price, got %v", err)
	}
	ok := []store.ProductSeed{{ID: 1, Name: "P", Price: dec("2"), Stock: 1}}
	if err := svc.SeedCatalog(ok); err != nil {
		t.Fatalf("valid seed: %v", err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	svc := NewService(&fakeStore{
		AddItemFn: func(string, int64, int, string, decimal.NullDecimal) error {
			return store.ErrInsufficientStock
		},
		ListItemsFn: func(string) ([]store.CartRow, error) {
			return nil, fmt.Errorf("db down")
		},
		CheckoutFn: func(string) (store.OrderRow, []store.OrderItemRow, error) {
			return store.OrderRow{}, nil, store.ErrCheckoutFailed
		},
		RemoveItemFn: func(string, int64) error { return store.ErrCartItemNotFound },
	})

	if err := svc.AddItem("u", 1, 1, "", decimal.NullDecimal{}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, _, err := svc.GetCart("u"); err == nil {
		t.Fatalf("expected store error to propagate")
	}
	if _, err := svc.Checkout("u"); !errors.Is(err, store.ErrCheckoutFailed) {
		t.Fatalf("expected ErrCheckoutFailed, got %v", err)
	}
	if err := svc.RemoveItem("u", 1); !errors.Is(err, store.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}
