package store

import "errors"

// Error kinds surfaced by Store implementations. Callers match them with
// errors.Is; implementations may wrap them with extra context.
var (
	// ErrInvalidInput means the caller passed a malformed quantity, price
	// or id. Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProductNotFound means no product exists for the given id.
	ErrProductNotFound = errors.New("product not found")

	// ErrCartItemNotFound means the (user, product) pair has no cart line.
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrInsufficientStock means the requested quantity exceeds available
	// stock. Reported verbatim to the shopper.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTransactionAborted means the operation lost a write conflict even
	// after retrying. No partial effect occurred; safe to retry.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrCheckoutFailed means checkout validation failed at commit time.
	// The cart is left intact; the shopper may retry.
	ErrCheckoutFailed = errors.New("checkout failed")
)
