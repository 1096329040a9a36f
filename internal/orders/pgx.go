package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxStore backs the store contracts with Postgres. Schema:
//
//	customers(id, name, email unique, created_at)
//	products(id, name unique, price_cents, stock, created_at, updated_at)
//	orders(id, customer_id, total_cents, created_at)
//	order_lines(id, order_id, product_id, line_no, price_cents, qty)
//
// line_no preserves request order.
type PgxStore struct {
	DB *pgxpool.Pool

	// LockWait bounds blocking row-lock waits inside a reservation; hitting
	// it surfaces as ErrTransientContention. Zero disables the bound.
	LockWait time.Duration
}

func (s *PgxStore) CustomerByID(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := s.DB.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, storeUnavailable("customer by id", err)
	}
	return c, nil
}

func (s *PgxStore) CustomerByEmail(ctx context.Context, email string) (Customer, error) {
	var c Customer
	err := s.DB.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE email=$1`, email).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, storeUnavailable("customer by email", err)
	}
	return c, nil
}

func (s *PgxStore) CreateCustomer(ctx context.Context, name, email string) (Customer, error) {
	c := Customer{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	_, err := s.DB.Exec(ctx,
		`INSERT INTO customers(id, name, email, created_at) VALUES ($1,$2,$3,$4)`,
		c.ID, c.Name, c.Email, c.CreatedAt)
	if isUniqueViolation(err) {
		return Customer{}, ErrEmailTaken
	}
	if err != nil {
		return Customer{}, storeUnavailable("create customer", err)
	}
	return c, nil
}

func (s *PgxStore) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	rows, err := s.DB.Query(ctx,
		`SELECT id, name, price_cents, stock, created_at, updated_at
		   FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storeUnavailable("products by ids", err)
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, storeUnavailable("products by ids", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable("products by ids", err)
	}
	return out, nil
}

func (s *PgxStore) CreateProduct(ctx context.Context, name string, priceCents, stock int) (Product, error) {
	now := time.Now().UTC()
	p := Product{ID: uuid.NewString(), Name: name, PriceCents: priceCents, Stock: stock, CreatedAt: now, UpdatedAt: now}
	_, err := s.DB.Exec(ctx,
		`INSERT INTO products(id, name, price_cents, stock, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.PriceCents, p.Stock, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return Product{}, ErrProductNameTaken
	}
	if err != nil {
		return Product{}, storeUnavailable("create product", err)
	}
	return p, nil
}

func (s *PgxStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id, name, price_cents, stock, created_at, updated_at
		   FROM products ORDER BY name`)
	if err != nil {
		return nil, storeUnavailable("list products", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, storeUnavailable("list products", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable("list products", err)
	}
	return out, nil
}

func (s *PgxStore) OrderByID(ctx context.Context, id string) (Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx,
		`SELECT id, customer_id, total_cents, created_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, storeUnavailable("order by id", err)
	}

	rows, err := s.DB.Query(ctx,
		`SELECT product_id, price_cents, qty FROM order_lines
		  WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return Order{}, storeUnavailable("order lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ProductID, &l.PriceCents, &l.Qty); err != nil {
			return Order{}, storeUnavailable("order lines", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Order{}, storeUnavailable("order lines", err)
	}
	return o, nil
}

func (s *PgxStore) Begin(ctx context.Context) (ReservationTx, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeUnavailable("begin reservation", err)
	}
	if s.LockWait > 0 {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, s.LockWait.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return nil, storeUnavailable("set lock_timeout", err)
		}
	}
	return &pgxTx{tx: tx}, nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) StockForUpdate(ctx context.Context, productID string) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx,
		`SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, classify("stock for update", err)
	}
	return stock, nil
}

func (t *pgxTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
		productID, qty)
	if err != nil {
		return classify("decrement stock", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (t *pgxTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO orders(id, customer_id, total_cents, created_at)
		 VALUES ($1,$2,$3,$4)`,
		o.ID, o.CustomerID, o.TotalCents, o.CreatedAt)
	if err != nil {
		return classify("insert order", err)
	}
	for i, l := range o.Lines {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO order_lines(id, order_id, product_id, line_no, price_cents, qty)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), o.ID, l.ProductID, i, l.PriceCents, l.Qty)
		if err != nil {
			return classify("insert order line", err)
		}
	}
	return nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classify("commit reservation", err)
	}
	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storeUnavailable("rollback reservation", err)
	}
	return nil
}

// classify maps serialization failures (40001), deadlocks (40P01) and lock
// timeouts (55P03) to ErrTransientContention so the engine retries the whole
// unit; everything else is a StoreUnavailable fault.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return transient(op, err)
		}
	}
	return storeUnavailable(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
