// Package ledger keeps the append-only record of completed sales.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SaleItem is one line of a cart or a completed sale. Name and PriceAtSale are
// copied from the product when the line is created and never recomputed.
type SaleItem struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	PriceAtSale float64 `json:"priceAtSale"`
}

// Subtotal returns quantity × priceAtSale.
func (i SaleItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.PriceAtSale).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Sale is an immutable completed transaction.
type Sale struct {
	ID          string     `json:"id"`
	Date        time.Time  `json:"date"`
	Items       []SaleItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

// Sum totals the subtotals of items.
func Sum(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Ledger holds sales newest first.
type Ledger struct {
	mu    sync.RWMutex
	sales []Sale
}

// New returns a ledger over existing sales, which must already be newest first.
func New(sales []Sale) *Ledger {
	l := &Ledger{sales: make([]Sale, 0, len(sales))}
	for _, s := range sales {
		l.sales = append(l.sales, cloneSale(s))
	}
	return l
}

// Record prepends a sale.
func (l *Ledger) Record(s Sale) {
	s = cloneSale(s)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sales = append([]Sale{s}, l.sales...)
}

// List returns up to limit sales, newest first. A non-positive limit returns all.
func (l *Ledger) List(limit int) []Sale {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.sales)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Sale, n)
	for i := 0; i < n; i++ {
		out[i] = cloneSale(l.sales[i])
	}
	return out
}

// Len returns the number of recorded sales.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sales)
}

func cloneSale(s Sale) Sale {
	items := make([]SaleItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}
