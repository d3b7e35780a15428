package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// DefaultMaxRetries bounds how often a conflicted transaction is re-run
// before the operation surfaces ErrTransactionAborted.
const DefaultMaxRetries = 3

// PostgresStore is a Store backed by Postgres and has in-process locks
type PostgresStore struct {
	DB *sql.DB

	// MaxRetries overrides DefaultMaxRetries when > 0.
	MaxRetries int

	// per-user mutexes to avoid concurrent goroutines in this process
	// racing on the same cart. Keys are user_id -> *sync.Mutex
	locks sync.Map
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// helper: acquire per-user lock (process-local). Returns unlock func.
func (s *PostgresStore) lockForUser(userID string) func() {
	// fast path Load
	if v, ok := s.locks.Load(userID); ok {
		m := v.(*sync.Mutex)
		m.Lock()
		return func() { m.Unlock() }
	}

	// Otherwise create and store a new mutex (race-safe via LoadOrStore)
	m := &sync.Mutex{}
	actual, _ := s.locks.LoadOrStore(userID, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return func() { mtx.Unlock() }
}

// transact runs fn inside a DB transaction. Serialization failures and
// deadlocks are retried up to the configured bound; once exhausted the
// caller gets ErrTransactionAborted with no partial effect.
func (s *PostgresStore) transact(fn func(tx *sql.Tx) error) error {
	retries := s.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	var err error
	for attempt := 0; attempt < retries; attempt++ {
		err = s.runTx(fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
}

func (s *PostgresStore) runTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// isRetryable reports whether err is a serialization failure (40001) or a
// deadlock (40P01), the two conflict classes worth another attempt.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// lockStock reads a product's stock under FOR UPDATE, serializing all stock
// movement on that product for the rest of the transaction.
func lockStock(tx *sql.Tx, productID int64) (int, error) {
	var stock int
	err := tx.QueryRow(`SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, ErrProductNotFound
	}
	return stock, err
}

func (s *PostgresStore) GetProduct(productID int64) (ProductRow, error) {
	var p ProductRow
	err := s.DB.QueryRow(`SELECT id, name, price, stock FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if err == sql.ErrNoRows {
		return ProductRow{}, ErrProductNotFound
	}
	if err != nil {
		return ProductRow{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProducts() ([]ProductRow, error) {
	rows, err := s.DB.Query(`SELECT id, name, price, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ProductRow{}
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeedCatalog bulk-inserts the initial products iff the catalog is empty.
func (s *PostgresStore) SeedCatalog(seed []ProductSeed) error {
	return s.transact(func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT count(*) FROM products`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		stmt, err := tx.Prepare(`INSERT INTO products (id, name, price, stock) VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range seed {
			if _, err := stmt.Exec(p.ID, p.Name, p.Price, p.Stock); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) IncrementStock(productID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	res, err := s.DB.Exec(`UPDATE products SET stock = stock + $1 WHERE id = $2`, amount, productID)
	if err != nil {
		return err
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) DecrementStock(productID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	}
	return s.transact(func(tx *sql.Tx) error {
		stock, err := lockStock(tx, productID)
		if err != nil {
			return err
		}
		if stock < amount {
			return ErrInsufficientStock
		}
		_, err = tx.Exec(`UPDATE products SET stock = stock - $1 WHERE id = $2`, amount, productID)
		return err
	})
}

// AddItem reserves qty units: stock decrement and cart-line upsert happen in
// the same transaction, so no reader ever sees one without the other.
func (s *PostgresStore) AddItem(userID string, productID int64, qty int, nameHint string, priceHint decimal.NullDecimal) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if priceHint.Valid && priceHint.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}

	// process-local lock to avoid concurrent goroutines in same process
	unlock := s.lockForUser(userID)
	defer unlock()

	return s.transact(func(tx *sql.Tx) error {
		var p ProductRow
		err := tx.QueryRow(`SELECT id, name, price, stock FROM products WHERE id = $1 FOR UPDATE`, productID).
			Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
		if err == sql.ErrNoRows {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}
		if p.Stock < qty {
			return ErrInsufficientStock
		}

		name, price := p.Name, p.Price
		if nameHint != "" {
			name = nameHint
		}
		if priceHint.Valid {
			price = priceHint.Decimal
		}

		// decrement product stock (reserved)
		if _, err := tx.Exec(`UPDATE products SET stock = stock - $1 WHERE id = $2`, qty, productID); err != nil {
			return err
		}

		// Upsert cart line (add quantity); name/price snapshots stick from
		// the first add.
		_, err = tx.Exec(`
		INSERT INTO cart_items (user_id, product_id, name, price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, productID, name, price, qty)
		return err
	})
}

func (s *PostgresStore) IncreaseQuantity(userID string, productID int64, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", ErrInvalidInput)
	}

	unlock := s.lockForUser(userID)
	defer unlock()

	return s.transact(func(tx *sql.Tx) error {
		var qty int
		err := tx.QueryRow(`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`, userID, productID).Scan(&qty)
		if err == sql.ErrNoRows {
			return ErrCartItemNotFound
		}
		if err != nil {
			return err
		}

		stock, err := lockStock(tx, productID)
		if err != nil {
			return err
		}
		if stock < delta {
			return ErrInsufficientStock
		}

		if _, err := tx.Exec(`UPDATE products SET stock = stock - $1 WHERE id = $2`, delta, productID); err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE cart_items SET quantity = quantity + $1 WHERE user_id = $2 AND product_id = $3`, delta, userID, productID)
		return err
	})
}

func (s *PostgresStore) DecreaseQuantity(userID string, productID int64, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be > 0", ErrInvalidInput)
	}

	unlock := s.lockForUser(userID)
	defer unlock()

	return s.transact(func(tx *sql.Tx) error {
		var qty int
		err := tx.QueryRow(`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`, userID, productID).Scan(&qty)
		if err == sql.ErrNoRows {
			return ErrCartItemNotFound
		}
		if err != nil {
			return err
		}

		// Dropping to zero (or past it) deletes the line and returns the
		// full remaining reservation.
		giveBack := delta
		if delta >= qty {
			giveBack = qty
			if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(`UPDATE cart_items SET quantity = quantity - $1 WHERE user_id = $2 AND product_id = $3`, delta, userID, productID); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`UPDATE products SET stock = stock + $1 WHERE id = $2`, giveBack, productID)
		return err
	})
}

func (s *PostgresStore) RemoveItem(userID string, productID int64) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	return s.transact(func(tx *sql.Tx) error {
		var qty int
		err := tx.QueryRow(`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`, userID, productID).Scan(&qty)
		if err == sql.ErrNoRows {
			return ErrCartItemNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
			return err
		}

		// restore reserved stock
		_, err = tx.Exec(`UPDATE products SET stock = stock + $1 WHERE id = $2`, qty, productID)
		return err
	})
}

// ClearCart returns every reservation of the user to stock and deletes the
// cart lines. An empty cart is a no-op, not an error.
func (s *PostgresStore) ClearCart(userID string) error {
	unlock := s.lockForUser(userID)
	defer unlock()

	return s.transact(func(tx *sql.Tx) error {
		// ORDER BY keeps product-lock acquisition ordered to avoid deadlocks.
		rows, err := tx.Query(`SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id FOR UPDATE`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		type line struct {
			productID int64
			qty       int
		}
		var lines []line
		for rows.Next() {
			var l line
			if err := rows.Scan(&l.productID, &l.qty); err != nil {
				return err
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}

		stmt, err := tx.Prepare(`UPDATE products SET stock = stock + $1 WHERE id = $2`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range lines {
			if _, err := stmt.Exec(l.qty, l.productID); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`DELETE FROM cart_items WHERE user_id = $1`, userID)
		return err
	})
}

func (s *PostgresStore) ListItems(userID string) ([]CartRow, error) {
	rows, err := s.DB.Query(`SELECT user_id, product_id, name, price, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CartRow{}
	for rows.Next() {
		var c CartRow
		if err := rows.Scan(&c.UserID, &c.ProductID, &c.Name, &c.Price, &c.Quantity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Checkout when stock was already reserved on AddItem.
// Creates the order + order_items and clears the cart in one transaction.
// Does NOT modify products.stock.
func (s *PostgresStore) Checkout(userID string) (OrderRow, []OrderItemRow, error) {
	var order OrderRow
	var items []OrderItemRow

	unlock := s.lockForUser(userID)
	defer unlock()

	err := s.transact(func(tx *sql.Tx) error {
		items = items[:0]

		// Read cart lines and lock product rows defensively (ORDER BY to
		// avoid deadlocks).
		rows, err := tx.Query(`
		SELECT ci.product_id, ci.name, ci.quantity, ci.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY p.id
		FOR UPDATE
	`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		total := decimal.Zero
		for rows.Next() {
			var it OrderItemRow
			var stock int
			if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.Price, &stock); err != nil {
				return err
			}
			// Reservations were taken at add time, so stock can only be
			// short here if something outside the ledger corrupted it.
			if stock < 0 {
				return fmt.Errorf("%w: corrupted stock for product %d", ErrCheckoutFailed, it.ProductID)
			}
			items = append(items, it)
			total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: cart is empty", ErrCheckoutFailed)
		}

		orderID := uuid.NewString()
		var createdAt time.Time
		if err := tx.QueryRow(`INSERT INTO orders (id, user_id, total) VALUES ($1,$2,$3) RETURNING created_at`, orderID, userID, total).Scan(&createdAt); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO order_items (order_id, product_id, name, quantity, price) VALUES ($1,$2,$3,$4,$5)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, it := range items {
			if _, err := stmt.Exec(orderID, it.ProductID, it.Name, it.Quantity, it.Price); err != nil {
				return err
			}
		}

		// Drop the reservations: consumed by the order, not returned to stock.
		if _, err := tx.Exec(`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return err
		}

		order = OrderRow{ID: orderID, UserID: userID, Total: total, CreatedAt: createdAt}
		return nil
	})
	if err != nil {
		return OrderRow{}, nil, err
	}
	return order, items, nil
}
