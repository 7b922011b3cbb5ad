// Package cart holds the in-progress sale: an ordered list of line items whose
// quantities never exceed the product's current stock.
package cart

import (
	"context"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Catalog resolves products for the cart.
type Catalog interface {
	Get(ctx context.Context, id int64) (model.Product, error)
}

// Cart is an ordered list of line items. It is not safe for concurrent use;
// callers serialise access per terminal session.
type Cart struct {
	lines []model.LineItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID int64) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddLine adds one unit of productID. An existing line is incremented; a new
// line snapshots the product's price and category. When stock is exhausted
// the cart is left unchanged and an INSUFFICIENT_STOCK error is returned.
func (c *Cart) AddLine(ctx context.Context, catalog Catalog, productID int64) error {
	p, err := catalog.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Sellable() {
		return model.Errorf(model.ErrValidation, "produk %s tidak aktif", p.Name)
	}
	if i := c.index(productID); i >= 0 {
		want := c.lines[i].Quantity + 1
		if want > p.Stock {
			return model.NewStockError(productID, want, p.Stock)
		}
		c.lines[i].Quantity = want
		return nil
	}
	if p.Stock < 1 {
		return model.NewStockError(productID, 1, p.Stock)
	}
	c.lines = append(c.lines, model.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
		Category:  p.Category,
	})
	return nil
}

// SetQuantity changes a line's quantity by delta. A resulting quantity of
// zero or less removes the line. Stock is reread on every adjustment: a
// quantity above it is clamped and an INSUFFICIENT_STOCK error is returned
// with the clamped state kept.
func (c *Cart) SetQuantity(ctx context.Context, catalog Catalog, productID int64, delta int) error {
	i := c.index(productID)
	if i < 0 {
		return model.Errorf(model.ErrNotFound, "produk %d tidak ada di keranjang", productID)
	}
	want := c.lines[i].Quantity + delta
	if want <= 0 {
		c.RemoveLine(productID)
		return nil
	}
	p, err := catalog.Get(ctx, productID)
	if err != nil {
		return err
	}
	if want > p.Stock {
		if p.Stock <= 0 {
			c.RemoveLine(productID)
		} else {
			c.lines[i].Quantity = p.Stock
		}
		return model.NewStockError(productID, want, p.Stock)
	}
	c.lines[i].Quantity = want
	return nil
}

// RemoveLine drops the line for productID; absent lines are ignored.
func (c *Cart) RemoveLine(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []model.LineItem {
	out := make([]model.LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Pricing prices the current lines.
func (c *Cart) Pricing(discountBps, taxBps int) pricing.Summary {
	return pricing.Price(Items(c.lines), discountBps, taxBps)
}

// Items converts line items to pricing input.
func Items(lines []model.LineItem) []pricing.Item {
	items := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}
