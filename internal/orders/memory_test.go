package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCustomers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c, err := s.CreateCustomer(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	got, err := s.CustomerByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	byEmail, err := s.CustomerByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byEmail.ID)

	_, err = s.CreateCustomer(ctx, "Other Ana", "ana@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.CustomerByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreProducts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b, err := s.CreateProduct(ctx, "banana", 150, 10)
	require.NoError(t, err)
	a, err := s.CreateProduct(ctx, "apple", 100, 5)
	require.NoError(t, err)

	_, err = s.CreateProduct(ctx, "apple", 999, 1)
	assert.ErrorIs(t, err, ErrProductNameTaken)

	got, err := s.ProductsByIDs(ctx, []string{a.ID, "missing", b.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[a.ID])

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "apple", list[0].Name)
	assert.Equal(t, "banana", list[1].Name)
}

func TestMemoryStoreRollbackRestoresState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, "pencil", 50, 7)
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	stock, err := tx.StockForUpdate(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
	require.NoError(t, tx.DecrementStock(ctx, p.ID, 4))
	require.NoError(t, tx.InsertOrder(ctx, &Order{ID: "o1", CustomerID: "c1"}))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, 7, stockOf(t, s, p.ID))
	_, err = s.OrderByID(ctx, "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreOrderNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.OrderByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
