// Package checkout turns a cart into a recorded sale.
package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

// ErrEmptyCart is returned when checking out a cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// StockWriter decrements catalog stock. All quantities of one sale are
// applied together.
type StockWriter interface {
	DecrementMany(qty map[string]int) int
}

// SaleRecorder stores completed sales.
type SaleRecorder interface {
	Record(sale ledger.Sale)
}

// Cart is the subset of the cart the engine consumes.
type Cart interface {
	Items() []ledger.SaleItem
	Clear()
}

// Engine commits sales against the catalog and the ledger.
type Engine struct {
	stock StockWriter
	sales SaleRecorder
	now   func() time.Time
	newID func() string
}

// NewEngine builds an Engine.
func NewEngine(stock StockWriter, sales SaleRecorder) *Engine {
	return &Engine{
		stock: stock,
		sales: sales,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Checkout records the cart as a sale, decrements stock for every line
// (clamped at zero) and clears the cart. Lines whose product no longer exists
// are still sold; only their stock decrement is skipped.
func (e *Engine) Checkout(cart Cart) (ledger.Sale, error) {
	items := cart.Items()
	if len(items) == 0 {
		return ledger.Sale{}, ErrEmptyCart
	}
	sale := ledger.Sale{
		ID:          e.newID(),
		Date:        e.now(),
		Items:       items,
		TotalAmount: ledger.Sum(items).InexactFloat64(),
	}
	qty := make(map[string]int, len(items))
	for _, item := range items {
		qty[item.ProductID] += item.Quantity
	}
	e.stock.DecrementMany(qty)
	e.sales.Record(sale)
	cart.Clear()
	return sale, nil
}
