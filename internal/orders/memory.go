package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errInjectedConflict = errors.New("injected serialization conflict")

// MemoryStore is the in-process backend used for local development and
// tests. Reservation units are serialized by a store-wide mutex held from
// Begin to Commit/Rollback; an undo journal restores prior state exactly
// when a unit aborts.
type MemoryStore struct {
	mu        sync.Mutex
	customers map[string]Customer
	emails    map[string]string // email -> customer id
	names     map[string]string // product name -> product id
	products  map[string]Product
	orders    map[string]Order

	// failCommits makes the next N commits abort with a transient error,
	// for exercising the engine's retry path.
	failCommits int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]Customer),
		emails:    make(map[string]string),
		names:     make(map[string]string),
		products:  make(map[string]Product),
		orders:    make(map[string]Order),
	}
}

func (s *MemoryStore) CustomerByID(ctx context.Context, id string) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) CustomerByEmail(ctx context.Context, email string) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[email]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return s.customers[id], nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, name, email string) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[email]; taken {
		return Customer{}, ErrEmailTaken
	}
	c := Customer{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	s.customers[c.ID] = c
	s.emails[email] = c.ID
	return c, nil
}

func (s *MemoryStore) ProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, name string, priceCents, stock int) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[name]; taken {
		return Product{}, ErrProductNameTaken
	}
	now := time.Now().UTC()
	p := Product{ID: uuid.NewString(), Name: name, PriceCents: priceCents, Stock: stock, CreatedAt: now, UpdatedAt: now}
	s.products[p.ID] = p
	s.names[name] = p.ID
	return p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) OrderByID(ctx context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o, nil
}

// Begin takes the store mutex; the unit owns all shared state until it
// commits or rolls back, which makes units trivially serializable.
func (s *MemoryStore) Begin(ctx context.Context) (ReservationTx, error) {
	s.mu.Lock()
	return &memoryTx{s: s}, nil
}

type memoryTx struct {
	s    *MemoryStore
	undo []func()
	done bool
}

func (t *memoryTx) StockForUpdate(ctx context.Context, productID string) (int, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return 0, ErrNotFound
	}
	return p.Stock, nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return ErrNotFound
	}
	prev := p
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	t.s.products[productID] = p
	t.undo = append(t.undo, func() { t.s.products[productID] = prev })
	return nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, o *Order) error {
	cp := *o
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	t.s.orders[o.ID] = cp
	id := o.ID
	t.undo = append(t.undo, func() { delete(t.s.orders, id) })
	return nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if t.s.failCommits > 0 {
		t.s.failCommits--
		t.rewind()
		t.s.mu.Unlock()
		return transient("commit reservation", errInjectedConflict)
	}
	t.undo = nil
	t.s.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.rewind()
	t.s.mu.Unlock()
	return nil
}

func (t *memoryTx) rewind() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
