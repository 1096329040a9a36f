package orders

import (
	"context"
	"errors"
)

// validate runs the read-only pre-check: existence and sufficiency against a
// possibly stale catalog snapshot, producing resolved lines with prices
// captured at lookup time. It performs no mutation and is safe to re-run;
// the commit step re-verifies stock under the lock.
func (e *Engine) validate(ctx context.Context, customerID string, lines []LineRequest) ([]ResolvedLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: l.ProductID}
		}
	}

	if _, err := e.Customers.CustomerByID(ctx, customerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownCustomer
		}
		return nil, err
	}

	found, err := e.Products.ProductsByIDs(ctx, distinctIDs(lines))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNoSuchProducts
	}

	// Report the first offending id in request order, one category at a
	// time: all existence failures outrank all stock failures.
	for _, l := range lines {
		if _, ok := found[l.ProductID]; !ok {
			return nil, &UnknownProductError{ProductID: l.ProductID}
		}
	}
	for _, l := range lines {
		if found[l.ProductID].Stock < l.Qty {
			return nil, &InsufficientStockError{ProductID: l.ProductID}
		}
	}

	resolved := make([]ResolvedLine, 0, len(lines))
	for _, l := range lines {
		resolved = append(resolved, ResolvedLine{
			ProductID:  l.ProductID,
			PriceCents: found[l.ProductID].PriceCents,
			Qty:        l.Qty,
		})
	}
	return resolved, nil
}

func distinctIDs(lines []LineRequest) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		ids = append(ids, l.ProductID)
	}
	return ids
}
