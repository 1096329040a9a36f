package orders

import (
	"errors"
	"fmt"
)

// Business-rule outcomes a caller is expected to handle. Storage faults are
// wrapped with ErrStoreUnavailable so callers can tell "your request was
// invalid" apart from "the system could not process it".
var (
	ErrEmptyOrder      = errors.New("order has no line items")
	ErrUnknownCustomer = errors.New("unknown customer")
	ErrNoSuchProducts  = errors.New("none of the requested products exist")

	// ErrTransientContention: the reservation could not be serialized within
	// the retry budget; the whole request may be retried.
	ErrTransientContention = errors.New("reservation conflicts with concurrent orders, retry")

	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is the storage-level miss; the validation pipeline maps it
	// to ErrUnknownCustomer / UnknownProductError.
	ErrNotFound = errors.New("not found")

	ErrEmailTaken       = errors.New("email already registered")
	ErrProductNameTaken = errors.New("product name already registered")
)

// UnknownProductError names the first requested product id (in request order)
// that does not resolve.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown product %s", e.ProductID)
}

// InsufficientStockError names the first product id (in request order) whose
// requested quantity exceeds availability, at pre-check or at commit time.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// InvalidQuantityError rejects non-positive requested quantities.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity for product %s", e.ProductID)
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransientContention, op, err)
}
