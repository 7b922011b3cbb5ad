package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/model"
)

type fakeCatalog map[int64]model.Product

func (f fakeCatalog) Get(_ context.Context, id int64) (model.Product, error) {
	p, ok := f[id]
	if !ok {
		return model.Product{}, model.NewError(model.ErrNotFound, "produk tidak ditemukan")
	}
	return p, nil
}

func catalogWith(products ...model.Product) fakeCatalog {
	f := fakeCatalog{}
	for _, p := range products {
		f[p.ID] = p
	}
	return f
}

var latte = model.Product{ID: 1, Name: "Coffee Latte", Price: 25000, Stock: 10, Category: "Minuman", Status: model.ProductActive}

func TestAddLineSnapshotsAndIncrements(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(latte)
	c := cart.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddLine(ctx, cat, 1))
	}
	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 3, lines[0].Quantity)
	require.Equal(t, int64(25000), lines[0].UnitPrice)
	require.Equal(t, "Minuman", lines[0].Category)

	cat[1] = model.Product{ID: 1, Name: "Coffee Latte", Price: 30000, Stock: 10, Status: model.ProductActive}
	require.NoError(t, c.AddLine(ctx, cat, 1))
	require.Equal(t, int64(25000), c.Lines()[0].UnitPrice)
}

func TestAddLineAtStockLeavesQuantity(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(model.Product{ID: 2, Name: "Burger", Price: 45000, Stock: 2, Status: model.ProductActive})
	c := cart.New()
	require.NoError(t, c.AddLine(ctx, cat, 2))
	require.NoError(t, c.AddLine(ctx, cat, 2))

	err := c.AddLine(ctx, cat, 2)
	require.ErrorIs(t, err, model.ErrInsufficientStock)
	require.Equal(t, 2, c.Lines()[0].Quantity)
}

func TestAddLineRejectsOutOfStockAndUnknown(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(
		model.Product{ID: 3, Name: "Pizza", Price: 80000, Stock: 0, Status: model.ProductActive},
		model.Product{ID: 4, Name: "Old", Price: 1000, Stock: 5, Status: model.ProductInactive},
	)
	c := cart.New()
	require.ErrorIs(t, c.AddLine(ctx, cat, 3), model.ErrInsufficientStock)
	require.ErrorIs(t, c.AddLine(ctx, cat, 99), model.ErrNotFound)
	require.ErrorIs(t, c.AddLine(ctx, cat, 4), model.ErrValidation)
	require.Zero(t, c.Len())
}

func TestSetQuantityClampsToStock(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(model.Product{ID: 5, Name: "Cookie", Price: 10000, Stock: 5, Status: model.ProductActive})
	c := cart.New()
	require.NoError(t, c.AddLine(ctx, cat, 5))

	err := c.SetQuantity(ctx, cat, 5, 100)
	require.ErrorIs(t, err, model.ErrInsufficientStock)
	var se *model.StockError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 5, se.Available)
	require.Equal(t, 5, c.Lines()[0].Quantity)
}

func TestSetQuantityNonPositiveRemoves(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(latte)
	c := cart.New()
	require.NoError(t, c.AddLine(ctx, cat, 1))
	require.NoError(t, c.AddLine(ctx, cat, 1))

	require.NoError(t, c.SetQuantity(ctx, cat, 1, -1))
	require.Equal(t, 1, c.Lines()[0].Quantity)
	require.NoError(t, c.SetQuantity(ctx, cat, 1, -1))
	require.Zero(t, c.Len())

	require.ErrorIs(t, c.SetQuantity(ctx, cat, 1, 1), model.ErrNotFound)
}

func TestSetQuantityReclampsWhenStockDrops(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(latte)
	c := cart.New()
	for i := 0; i < 6; i++ {
		require.NoError(t, c.AddLine(ctx, cat, 1))
	}

	sold := latte
	sold.Stock = 2
	cat[1] = sold
	err := c.SetQuantity(ctx, cat, 1, -1)
	require.ErrorIs(t, err, model.ErrInsufficientStock)
	require.Equal(t, 2, c.Lines()[0].Quantity)

	sold.Stock = 0
	cat[1] = sold
	require.ErrorIs(t, c.SetQuantity(ctx, cat, 1, -1), model.ErrInsufficientStock)
	require.Zero(t, c.Len())
}

func TestRemoveClearAndOrder(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(latte,
		model.Product{ID: 6, Name: "Green Tea", Price: 20000, Stock: 3, Status: model.ProductActive},
		model.Product{ID: 7, Name: "Fries", Price: 18000, Stock: 3, Status: model.ProductActive},
	)
	c := cart.New()
	for _, id := range []int64{7, 1, 6} {
		require.NoError(t, c.AddLine(ctx, cat, id))
	}
	c.RemoveLine(1)
	c.RemoveLine(42)
	lines := c.Lines()
	require.Equal(t, []int64{7, 6}, []int64{lines[0].ProductID, lines[1].ProductID})

	c.Clear()
	require.Empty(t, c.Lines())
}

func TestPricingWorkedExample(t *testing.T) {
	ctx := context.Background()
	cat := catalogWith(latte)
	c := cart.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddLine(ctx, cat, 1))
	}
	s := c.Pricing(0, 1000)
	require.Equal(t, int64(75000), s.Subtotal)
	require.Equal(t, int64(0), s.Discount)
	require.Equal(t, int64(7500), s.Tax)
	require.Equal(t, int64(82500), s.Total)
}
