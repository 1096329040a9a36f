package orders

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	s := NewMemoryStore()
	return &Engine{Customers: s, Products: s, Reservations: s}, s
}

func seedCustomer(t *testing.T, s *MemoryStore) Customer {
	t.Helper()
	c, err := s.CreateCustomer(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)
	return c
}

func seedProduct(t *testing.T, s *MemoryStore, name string, priceCents, stock int) Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), name, priceCents, stock)
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, s *MemoryStore, id string) int {
	t.Helper()
	got, err := s.ProductsByIDs(context.Background(), []string{id})
	require.NoError(t, err)
	p, ok := got[id]
	require.True(t, ok)
	return p.Stock
}

func TestReserveSuccessAndExhaustion(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "keyboard", 1000, 5)
	ctx := context.Background()

	o, err := e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: 3}})
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, p.ID, o.Lines[0].ProductID)
	assert.Equal(t, 1000, o.Lines[0].PriceCents)
	assert.Equal(t, 3, o.Lines[0].Qty)
	assert.Equal(t, 3000, o.TotalCents)
	assert.Equal(t, c.ID, o.CustomerID)
	assert.Equal(t, 2, stockOf(t, s, p.ID))

	persisted, err := s.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, persisted.ID)
	assert.Equal(t, o.Lines, persisted.Lines)

	// an identical follow-up request no longer fits
	_, err = e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: 3}})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, p.ID, insufficient.ProductID)
	assert.Equal(t, 2, stockOf(t, s, p.ID))
}

func TestReserveEmptyOrder(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)

	_, err := e.Reserve(context.Background(), c.ID, nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestReserveInvalidQuantity(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "mouse", 500, 5)

	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{{ProductID: p.ID, Qty: 0}})
	var invalid *InvalidQuantityError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, p.ID, invalid.ProductID)
	assert.Equal(t, 5, stockOf(t, s, p.ID))
}

func TestReserveUnknownCustomer(t *testing.T) {
	e, s := newTestEngine(t)
	p := seedProduct(t, s, "mouse", 500, 5)

	_, err := e.Reserve(context.Background(), "nope", []LineRequest{{ProductID: p.ID, Qty: 1}})
	assert.ErrorIs(t, err, ErrUnknownCustomer)
	assert.Equal(t, 5, stockOf(t, s, p.ID))
}

func TestReserveNoSuchProducts(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)

	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{
		{ProductID: "ghost-1", Qty: 1},
		{ProductID: "ghost-2", Qty: 2},
	})
	assert.ErrorIs(t, err, ErrNoSuchProducts)
}

func TestReserveUnknownProductReportsFirstInRequestOrder(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "mouse", 500, 5)

	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{
		{ProductID: p.ID, Qty: 1},
		{ProductID: "ghost-a", Qty: 1},
		{ProductID: "ghost-b", Qty: 1},
	})
	var unknown *UnknownProductError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost-a", unknown.ProductID)
	assert.Equal(t, 5, stockOf(t, s, p.ID))
}

func TestReserveInsufficientStockReportsFirstAndMutatesNothing(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	ok := seedProduct(t, s, "cable", 200, 10)
	low1 := seedProduct(t, s, "monitor", 25000, 1)
	low2 := seedProduct(t, s, "desk", 90000, 0)

	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{
		{ProductID: ok.ID, Qty: 2},
		{ProductID: low1.ID, Qty: 3},
		{ProductID: low2.ID, Qty: 1},
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, low1.ID, insufficient.ProductID)

	// the valid line was not decremented either
	assert.Equal(t, 10, stockOf(t, s, ok.ID))
	assert.Equal(t, 1, stockOf(t, s, low1.ID))
	assert.Equal(t, 0, stockOf(t, s, low2.ID))
}

func TestReserveCapturesPriceAtOrderTime(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "ssd", 8000, 4)
	ctx := context.Background()

	o, err := e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: 1}})
	require.NoError(t, err)

	// catalog price changes after the order
	s.mu.Lock()
	changed := s.products[p.ID]
	changed.PriceCents = 12000
	s.products[p.ID] = changed
	s.mu.Unlock()

	persisted, err := s.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 8000, persisted.Lines[0].PriceCents)
}

func TestCommitRechecksStockUnderLock(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "gpu", 50000, 5)
	ctx := context.Background()

	resolved, err := e.validate(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: 4}})
	require.NoError(t, err)

	// a concurrent order consumes the stock between pre-check and commit
	s.mu.Lock()
	drained := s.products[p.ID]
	drained.Stock = 2
	s.products[p.ID] = drained
	s.mu.Unlock()

	_, err = e.commit(ctx, c.ID, resolved)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, p.ID, insufficient.ProductID)
	assert.Equal(t, 2, stockOf(t, s, p.ID))
}

func TestReserveDuplicateLinesCannotJointlyOversell(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "hub", 1500, 3)

	// each line alone fits, together they do not; the re-check inside the
	// atomic unit sees the first decrement and aborts the whole order
	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{
		{ProductID: p.ID, Qty: 2},
		{ProductID: p.ID, Qty: 2},
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, stockOf(t, s, p.ID))
}

func TestReserveRetriesTransientConflicts(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "dock", 7000, 5)
	ctx := context.Background()

	s.failCommits = 1
	o, err := e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, s, p.ID))
	_, err = s.OrderByID(ctx, o.ID)
	assert.NoError(t, err)
}

func TestReserveSurfacesContentionAfterRetryBudget(t *testing.T) {
	e, s := newTestEngine(t)
	e.MaxAttempts = 2
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "dock", 7000, 5)

	s.failCommits = 5
	_, err := e.Reserve(context.Background(), c.ID, []LineRequest{{ProductID: p.ID, Qty: 2}})
	assert.ErrorIs(t, err, ErrTransientContention)
	assert.Equal(t, 5, stockOf(t, s, p.ID))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "widget", 300, 10)
	ctx := context.Background()

	const attempts = 8
	const qty = 3

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: qty}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		rejected++
	}

	// 10 / 3 = exactly 3 winners, stock left at 1
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, attempts-3, rejected)
	assert.Equal(t, 1, stockOf(t, s, p.ID))
}

func TestConcurrentMixedQuantitiesStayWithinStock(t *testing.T) {
	e, s := newTestEngine(t)
	c := seedCustomer(t, s)
	const initial = 20
	p := seedProduct(t, s, "gadget", 450, initial)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(1))
	qtys := make([]int, 16)
	for i := range qtys {
		qtys[i] = 1 + rng.Intn(4)
	}

	type outcome struct {
		qty int
		err error
	}
	var wg sync.WaitGroup
	outcomes := make(chan outcome, len(qtys))
	for _, q := range qtys {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			_, err := e.Reserve(ctx, c.ID, []LineRequest{{ProductID: p.ID, Qty: q}})
			outcomes <- outcome{qty: q, err: err}
		}(q)
	}
	wg.Wait()
	close(outcomes)

	total := 0
	for o := range outcomes {
		if o.err == nil {
			total += o.qty
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, o.err, &insufficient)
	}
	remaining := stockOf(t, s, p.ID)
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, initial-total, remaining)
	assert.LessOrEqual(t, total, initial)
}
