package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type countingStore struct {
	*store.Memory
	mu    sync.Mutex
	lists int
}

func (c *countingStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.Memory.ListProducts(ctx)
}

func newService(t *testing.T) (*catalog.Service, *countingStore) {
	t.Helper()
	mem := store.NewMemory()
	_, err := store.Seed(context.Background(), mem, model.SeedProducts())
	require.NoError(t, err)
	cs := &countingStore{Memory: mem}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := &catalog.Service{
		Store:  cs,
		Locker: lock.NewLocal(),
		Cache:  catalog.NewCache(rdb, time.Minute, "test:"),
		Now:    func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	}
	return svc, cs
}

func TestDecrementStockRejectsOversell(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.DecrementStock(ctx, 1, 3))
	p, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 47, p.Stock)

	err = svc.DecrementStock(ctx, 1, 48)
	require.ErrorIs(t, err, model.ErrInsufficientStock)
	var se *model.StockError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 47, se.Available)

	p, _ = svc.Get(ctx, 1)
	require.Equal(t, 47, p.Stock)
}

func TestIncrementStockUnconditional(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.IncrementStock(context.Background(), 3, 5))
	p, _ := svc.Get(context.Background(), 3)
	require.Equal(t, 25, p.Stock)

	require.ErrorIs(t, svc.IncrementStock(context.Background(), 3, 0), model.ErrValidation)
	require.ErrorIs(t, svc.IncrementStock(context.Background(), 404, 1), model.ErrNotFound)
}

func TestConcurrentDecrementsSerialised(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.DecrementStock(ctx, 8, 1) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 25, succeeded)
	p, _ := svc.Get(ctx, 8)
	require.Zero(t, p.Stock)
}

func TestListUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	svc, cs := newService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, catalog.ListParams{})
	require.NoError(t, err)
	_, err = svc.List(ctx, catalog.ListParams{Category: "Minuman"})
	require.NoError(t, err)
	require.Equal(t, 1, cs.lists)

	require.NoError(t, svc.DecrementStock(ctx, 1, 1))
	items, err := svc.List(ctx, catalog.ListParams{Query: "latte"})
	require.NoError(t, err)
	require.Equal(t, 2, cs.lists)
	require.Len(t, items, 1)
	require.Equal(t, 49, items[0].Stock)
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	items, err := svc.List(ctx, catalog.ListParams{Category: "makanan"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	items, err = svc.List(ctx, catalog.ListParams{Query: "tea001"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Green Tea", items[0].Name)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Dessert", "Makanan", "Minuman", "Snack"}, cats)
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	svc, cs := newService(t)
	ctx := context.Background()
	require.NoError(t, cs.CreateProduct(ctx, model.Product{ID: 1_700_000_000_000, Name: "Taken", Status: model.ProductActive}))

	p, err := svc.Create(ctx, catalog.ProductInput{Name: " Es Teh ", SKU: "tea002", Category: "Minuman", Price: 5000, Stock: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1_700_000_000_001), p.ID)
	require.Equal(t, "Es Teh", p.Name)
	require.Equal(t, "TEA002", p.SKU)
	require.Equal(t, model.ProductActive, p.Status)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), catalog.ProductInput{Name: "", Price: -1})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Update(ctx, 2, catalog.ProductInput{Name: "Burger Deluxe", Category: "Makanan", Price: 47000, Stock: 12, Status: "inactive"})
	require.NoError(t, err)
	require.Equal(t, int64(47000), p.Price)
	require.False(t, p.Sellable())

	_, err = svc.Update(ctx, 99, catalog.ProductInput{Name: "x"})
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, 2))
	_, err = svc.Get(ctx, 2)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 2), model.ErrNotFound)
}
