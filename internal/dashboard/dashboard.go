// Package dashboard derives read-only summaries from the catalog and ledger.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

const (
	trendDays       = 7
	stockChartItems = 8
)

// DailyPoint is one day of the sales trend.
type DailyPoint struct {
	Date    string  `json:"date"`
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// StockPoint is one bar of the stock chart.
type StockPoint struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Stock         int    `json:"stock"`
	MinStockLevel int    `json:"minStockLevel"`
}

// Summary is the dashboard projection.
type Summary struct {
	InventoryValue float64           `json:"inventoryValue"`
	TotalRevenue   float64           `json:"totalRevenue"`
	SalesCount     int               `json:"salesCount"`
	LowStockCount  int               `json:"lowStockCount"`
	TotalItems     int               `json:"totalItems"`
	Last7Days      []DailyPoint      `json:"last7Days"`
	StockLevels    []StockPoint      `json:"stockLevels"`
	LowStock       []catalog.Product `json:"lowStock"`
}

// Compute builds the summary as of now. Days are calendar days in now's
// location, oldest first.
func Compute(products []catalog.Product, sales []ledger.Sale, now time.Time) Summary {
	inventoryValue := decimal.Zero
	totalItems := 0
	for _, p := range products {
		inventoryValue = inventoryValue.Add(decimal.NewFromFloat(p.WholesalePrice).Mul(decimal.NewFromInt(int64(p.Stock))))
		totalItems += p.Stock
	}

	revenue := decimal.Zero
	for _, s := range sales {
		revenue = revenue.Add(decimal.NewFromFloat(s.TotalAmount))
	}

	lowStock := LowStock(products)
	levels := make([]StockPoint, 0, stockChartItems)
	for i, p := range products {
		if i == stockChartItems {
			break
		}
		levels = append(levels, StockPoint{ProductID: p.ID, Name: p.Name, Stock: p.Stock, MinStockLevel: p.MinStockLevel})
	}

	return Summary{
		InventoryValue: inventoryValue.InexactFloat64(),
		TotalRevenue:   revenue.InexactFloat64(),
		SalesCount:     len(sales),
		LowStockCount:  len(lowStock),
		TotalItems:     totalItems,
		Last7Days:      Trend(sales, now, trendDays),
		StockLevels:    levels,
		LowStock:       lowStock,
	}
}

// LowStock returns products at or under their reorder threshold.
func LowStock(products []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

// Trend buckets sales into the last days calendar days ending today, where
// days are counted in now's location.
func Trend(sales []ledger.Sale, now time.Time, days int) []DailyPoint {
	loc := now.Location()
	today := calendarDay(now, loc)
	start := today.AddDate(0, 0, -(days - 1))
	revenue := make([]decimal.Decimal, days)
	points := make([]DailyPoint, days)
	for i := range points {
		day := start.AddDate(0, 0, i)
		points[i] = DailyPoint{Date: day.Format(time.DateOnly), Label: day.Format("Mon")}
		revenue[i] = decimal.Zero
	}
	for _, s := range sales {
		day := calendarDay(s.Date, loc)
		if day.Before(start) || day.After(today) {
			continue
		}
		i := int(day.Sub(start) / (24 * time.Hour))
		revenue[i] = revenue[i].Add(decimal.NewFromFloat(s.TotalAmount))
		points[i].Orders++
	}
	for i := range points {
		points[i].Revenue = revenue[i].InexactFloat64()
	}
	return points
}

// calendarDay maps t to midnight UTC of its date in loc, so day arithmetic
// is unaffected by offsets and DST.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
