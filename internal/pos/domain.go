package pos

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/remotesync"
	"github.com/wholesale-pos/wholesale-pos/internal/shared"
)

var (
	// ErrProductNotFound is returned when a product id is unknown.
	ErrProductNotFound = errors.New("pos: product not found")
	// ErrCartItemNotFound is returned when the cart has no line for a product.
	ErrCartItemNotFound = errors.New("pos: product is not in the cart")
	// ErrDuplicateCheckout is returned when an idempotency key is replayed.
	ErrDuplicateCheckout = errors.New("pos: checkout already processed for this idempotency key")
	// ErrIDMismatch is returned when a body id disagrees with the path id.
	ErrIDMismatch = errors.New("pos: product id in body does not match the path")
	// ErrAssistantUnavailable is returned when no assistant is wired.
	ErrAssistantUnavailable = errors.New("pos: assistant is not available")
)

const idempotencyModule = "checkout"

var validate = validator.New()

// ProductInput is the payload for creating or fully replacing a product.
type ProductInput struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name" validate:"required,max=200"`
	Category       string  `json:"category" validate:"max=100"`
	WholesalePrice float64 `json:"wholesalePrice" validate:"gte=0"`
	RetailPrice    float64 `json:"retailPrice" validate:"gte=0"`
	Stock          int     `json:"stock" validate:"gte=0"`
	MinStockLevel  int     `json:"minStockLevel" validate:"gte=0"`
}

func (in ProductInput) normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

func (in ProductInput) product(id string) catalog.Product {
	return catalog.Product{
		ID:             id,
		Name:           in.Name,
		Category:       in.Category,
		WholesalePrice: in.WholesalePrice,
		RetailPrice:    in.RetailPrice,
		Stock:          in.Stock,
		MinStockLevel:  in.MinStockLevel,
	}
}

func (in ProductInput) validate() error {
	if err := validate.Struct(in); err != nil {
		return shared.NewValidationError(err)
	}
	return nil
}

// ProductPatchInput is the payload for a partial product update.
type ProductPatchInput struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Category       *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	WholesalePrice *float64 `json:"wholesalePrice,omitempty" validate:"omitempty,gte=0"`
	RetailPrice    *float64 `json:"retailPrice,omitempty" validate:"omitempty,gte=0"`
	Stock          *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
	MinStockLevel  *int     `json:"minStockLevel,omitempty" validate:"omitempty,gte=0"`
}

func (in ProductPatchInput) validate() error {
	if err := validate.Struct(in); err != nil {
		return shared.NewValidationError(err)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return &shared.ValidationError{Fields: map[string]string{"Name": "name must not be blank"}}
	}
	return nil
}

func (in ProductPatchInput) patch() catalog.Patch {
	p := catalog.Patch{
		WholesalePrice: in.WholesalePrice,
		RetailPrice:    in.RetailPrice,
		Stock:          in.Stock,
		MinStockLevel:  in.MinStockLevel,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		p.Name = &name
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		p.Category = &category
	}
	return p
}

// CartView is the cart as returned to clients. Applied is false when the
// requested change was rejected by a stock or quantity bound.
type CartView struct {
	Items   []ledger.SaleItem `json:"items"`
	Total   float64           `json:"total"`
	Applied bool              `json:"applied"`
}

// SyncStatus extends the syncer status with the local catalog fingerprint.
type SyncStatus struct {
	remotesync.Status
	Enabled          bool   `json:"enabled"`
	LocalFingerprint string `json:"localFingerprint"`
	InSync           bool   `json:"inSync"`
}
