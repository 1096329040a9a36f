package orders

import "context"

// CustomerStore is a plain key/value read/create surface; no invariants of
// its own beyond referential correctness.
type CustomerStore interface {
	CustomerByID(ctx context.Context, id string) (Customer, error)
	CustomerByEmail(ctx context.Context, email string) (Customer, error)
	CreateCustomer(ctx context.Context, name, email string) (Customer, error)
}

type ProductStore interface {
	// ProductsByIDs batch-fetches by the distinct id set; absent ids are
	// simply missing from the returned map.
	ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	CreateProduct(ctx context.Context, name string, priceCents, stock int) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

type OrderStore interface {
	OrderByID(ctx context.Context, id string) (Order, error)
}

// ReservationTx is one atomic unit: every read/write through it commits or
// rolls back as a whole, isolated from concurrent units touching the same
// products. InsertOrder must only ever run inside such a unit.
type ReservationTx interface {
	// StockForUpdate reads a product's available quantity with intent to
	// update: the row stays locked until Commit or Rollback.
	StockForUpdate(ctx context.Context, productID string) (int, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
	Commit(ctx context.Context) error
	// Rollback after a successful Commit is a no-op.
	Rollback(ctx context.Context) error
}

type ReservationStore interface {
	Begin(ctx context.Context) (ReservationTx, error)
}

// Store is the full capability set a backend provides. The engine only
// depends on the narrow pieces; handlers use the rest.
type Store interface {
	CustomerStore
	ProductStore
	OrderStore
	ReservationStore
}
