package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const DefaultReserveAttempts = 3

// Engine turns a (customer id, line requests) pair into a persisted order
// with the matching stock decrements, or rejects it with no side effects.
// Safe for concurrent use; the stores carry all shared state.
type Engine struct {
	Customers    CustomerStore
	Products     ProductStore
	Reservations ReservationStore

	// MaxAttempts bounds retries of the atomic unit on serialization
	// conflicts. Zero means DefaultReserveAttempts.
	MaxAttempts int
}

// Reserve validates the request, then commits order + stock decrement as one
// atomic unit. The pre-check read is advisory; the unit re-verifies every
// line under the row lock, so two concurrent reservations can never jointly
// oversell a product.
func (e *Engine) Reserve(ctx context.Context, customerID string, lines []LineRequest) (*Order, error) {
	resolved, err := e.validate(ctx, customerID, lines)
	if err != nil {
		return nil, err
	}

	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultReserveAttempts
	}
	for i := 0; i < attempts; i++ {
		o, err := e.commit(ctx, customerID, resolved)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrTransientContention) {
			return nil, err
		}
	}
	return nil, ErrTransientContention
}

func (e *Engine) commit(ctx context.Context, customerID string, resolved []ResolvedLine) (*Order, error) {
	tx, err := e.Reservations.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock rows in request order so all units touching the same products
	// acquire them in a consistent sequence.
	for _, rl := range resolved {
		stock, err := tx.StockForUpdate(ctx, rl.ProductID)
		if errors.Is(err, ErrNotFound) {
			// Product vanished since the pre-check.
			return nil, &UnknownProductError{ProductID: rl.ProductID}
		}
		if err != nil {
			return nil, err
		}
		if stock < rl.Qty {
			return nil, &InsufficientStockError{ProductID: rl.ProductID}
		}
		if err := tx.DecrementStock(ctx, rl.ProductID, rl.Qty); err != nil {
			return nil, err
		}
	}

	o := &Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Lines:      make([]OrderLine, 0, len(resolved)),
		CreatedAt:  time.Now().UTC(),
	}
	for _, rl := range resolved {
		o.Lines = append(o.Lines, OrderLine(rl))
		o.TotalCents += rl.PriceCents * rl.Qty
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}
