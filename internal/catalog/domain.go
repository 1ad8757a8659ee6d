package catalog

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateID is returned when a product id is already present.
	ErrDuplicateID = errors.New("catalog: duplicate product id")
	// ErrNegativeStock is returned when a product would hold negative stock.
	ErrNegativeStock = errors.New("catalog: stock must not be negative")
	// ErrMissingID is returned when a product carries no id.
	ErrMissingID = errors.New("catalog: product id required")
)

// Product is a sellable catalog entry.
type Product struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	WholesalePrice float64 `json:"wholesalePrice"`
	RetailPrice    float64 `json:"retailPrice"`
	Stock          int     `json:"stock"`
	MinStockLevel  int     `json:"minStockLevel"`
}

// LowStock reports whether the product is at or under its reorder threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStockLevel
}

// Patch carries a partial product update. Nil fields are left untouched.
type Patch struct {
	Name           *string  `json:"name,omitempty"`
	Category       *string  `json:"category,omitempty"`
	WholesalePrice *float64 `json:"wholesalePrice,omitempty"`
	RetailPrice    *float64 `json:"retailPrice,omitempty"`
	Stock          *int     `json:"stock,omitempty"`
	MinStockLevel  *int     `json:"minStockLevel,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.WholesalePrice == nil &&
		p.RetailPrice == nil && p.Stock == nil && p.MinStockLevel == nil
}

// Apply returns a copy of product with the patch fields replaced.
func (p Patch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.WholesalePrice != nil {
		product.WholesalePrice = *p.WholesalePrice
	}
	if p.RetailPrice != nil {
		product.RetailPrice = *p.RetailPrice
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.MinStockLevel != nil {
		product.MinStockLevel = *p.MinStockLevel
	}
	return product
}

// NewID issues an identifier for a locally created product.
func NewID() string {
	return uuid.NewString()
}
