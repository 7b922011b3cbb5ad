package model

import (
	"strings"
	"time"
)

// ProductStatus marks whether a product can be sold.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

// Product is a sellable, stock-tracked catalog entry. Price is in the minor
// currency unit.
type Product struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name" validate:"required,max=120"`
	SKU       string        `json:"sku" validate:"max=40"`
	Category  string        `json:"category" validate:"max=60"`
	Price     int64         `json:"price" validate:"gte=0"`
	Stock     int           `json:"stock" validate:"gte=0"`
	Status    ProductStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Sellable reports whether the product may be added to a cart.
func (p Product) Sellable() bool {
	return p.Status == "" || p.Status == ProductActive
}

// Normalize trims text fields and fills defaults.
func (p Product) Normalize() Product {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Category = strings.TrimSpace(p.Category)
	if p.Status == "" {
		p.Status = ProductActive
	}
	return p
}

// StockDelta is a signed stock adjustment for one product.
type StockDelta struct {
	ProductID int64 `json:"productId"`
	Delta     int   `json:"delta"`
}

// SeedProducts returns the demo catalog loaded into empty stores.
func SeedProducts() []Product {
	return []Product{
		{ID: 1, Name: "Coffee Latte", Price: 25000, Stock: 50, Category: "Minuman", SKU: "COF001", Status: ProductActive},
		{ID: 2, Name: "Burger Deluxe", Price: 45000, Stock: 30, Category: "Makanan", SKU: "BRG001", Status: ProductActive},
		{ID: 3, Name: "Pizza Margherita", Price: 80000, Stock: 20, Category: "Makanan", SKU: "PIZ001", Status: ProductActive},
		{ID: 4, Name: "Ice Cream Vanilla", Price: 15000, Stock: 40, Category: "Dessert", SKU: "ICE001", Status: ProductActive},
		{ID: 5, Name: "Chocolate Cookie", Price: 10000, Stock: 60, Category: "Snack", SKU: "COK001", Status: ProductActive},
		{ID: 6, Name: "Green Tea", Price: 20000, Stock: 35, Category: "Minuman", SKU: "TEA001", Status: ProductActive},
		{ID: 7, Name: "French Fries", Price: 18000, Stock: 45, Category: "Snack", SKU: "FRI001", Status: ProductActive},
		{ID: 8, Name: "Chicken Wings", Price: 35000, Stock: 25, Category: "Makanan", SKU: "WNG001", Status: ProductActive},
	}
}
