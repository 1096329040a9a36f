package orders

import "time"

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LineRequest is one requested (product, quantity) pair. Transient input,
// never persisted.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// ResolvedLine is a line after the catalog lookup: the unit price has been
// captured from the current catalog record so later price changes do not
// affect the order.
type ResolvedLine struct {
	ProductID  string `json:"product_id"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"qty"`
}

type OrderLine struct {
	ProductID  string `json:"product_id"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"qty"`
}

// Order is the durable record of a successful reservation. Lines keep the
// request order. Immutable once created.
type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
	TotalCents int         `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
}
