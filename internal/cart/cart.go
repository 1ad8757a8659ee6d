// Package cart holds the line items of the checkout in progress.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

// StockLookup resolves the live stock of a product.
type StockLookup interface {
	Stock(productID string) (int, bool)
}

// Cart is an ordered set of line items keyed by product id. Quantities never
// exceed the stock known at the time they were raised.
type Cart struct {
	mu    sync.Mutex
	items []ledger.SaleItem
	stock StockLookup
}

// New returns an empty cart that checks quantity changes against stock.
func New(stock StockLookup) *Cart {
	return &Cart{stock: stock}
}

// AddItem adds one unit of product. It reports false, leaving the cart
// unchanged, when the extra unit would exceed product.Stock.
func (c *Cart) AddItem(product catalog.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.find(product.ID); i >= 0 {
		if c.items[i].Quantity+1 > product.Stock {
			return false
		}
		c.items[i].Quantity++
		return true
	}
	if product.Stock < 1 {
		return false
	}
	c.items = append(c.items, ledger.SaleItem{
		ProductID:   product.ID,
		Name:        product.Name,
		Quantity:    1,
		PriceAtSale: product.RetailPrice,
	})
	return true
}

// RemoveItem drops the line for productID.
func (c *Cart) RemoveItem(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(productID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// ChangeQuantity adjusts a line by delta. The change is rejected when the new
// quantity drops below one or exceeds the product's current stock. Lines
// whose product has left the catalog may only shrink.
func (c *Cart) ChangeQuantity(productID string, delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(productID)
	if i < 0 || delta == 0 {
		return false
	}
	next := c.items[i].Quantity + delta
	if next < 1 {
		return false
	}
	stock, ok := c.stock.Stock(productID)
	if !ok && delta > 0 {
		return false
	}
	if ok && next > stock {
		return false
	}
	c.items[i].Quantity = next
	return true
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []ledger.SaleItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ledger.SaleItem, len(c.items))
	copy(out, c.items)
	return out
}

// Total returns Σ quantity × priceAtSale.
func (c *Cart) Total() decimal.Decimal {
	return ledger.Sum(c.Items())
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

func (c *Cart) find(productID string) int {
	for i, item := range c.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
