package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
)

// Document keys.
const (
	KeyProducts = "products"
	KeySales    = "sales"
	KeyConfig   = "config"
)

// Snapshot is the persisted application state.
type Snapshot struct {
	Products []catalog.Product
	Sales    []ledger.Sale
	Config   settings.AppConfig
	// Seeded is true when no product list was stored and the seed catalog
	// was substituted.
	Seeded bool
}

// Repository reads and writes application state documents.
type Repository struct {
	kv KV
}

// NewRepository builds a Repository over kv.
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Load reads all documents. Missing documents fall back to the seed catalog,
// an empty ledger and defaultConfig.
func (r *Repository) Load(ctx context.Context, defaultConfig settings.AppConfig) (Snapshot, error) {
	snap := Snapshot{Sales: []ledger.Sale{}, Config: defaultConfig}

	products, found, err := r.LoadProducts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		products = catalog.SeedProducts()
		snap.Seeded = true
	}
	snap.Products = products

	if _, err := r.get(ctx, KeySales, &snap.Sales); err != nil {
		return Snapshot{}, err
	}
	if _, err := r.get(ctx, KeyConfig, &snap.Config); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LoadProducts reads the stored product list and reports whether one existed.
func (r *Repository) LoadProducts(ctx context.Context) ([]catalog.Product, bool, error) {
	var products []catalog.Product
	found, err := r.get(ctx, KeyProducts, &products)
	if err != nil || !found {
		return nil, found, err
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, true, nil
}

// SaveProducts writes the full catalog.
func (r *Repository) SaveProducts(ctx context.Context, products []catalog.Product) error {
	return r.set(ctx, map[string]any{KeyProducts: nonNilProducts(products)})
}

// SaveCheckout writes the catalog and the ledger together.
func (r *Repository) SaveCheckout(ctx context.Context, products []catalog.Product, sales []ledger.Sale) error {
	if sales == nil {
		sales = []ledger.Sale{}
	}
	return r.set(ctx, map[string]any{KeyProducts: nonNilProducts(products), KeySales: sales})
}

// SaveConfig writes the app config.
func (r *Repository) SaveConfig(ctx context.Context, cfg settings.AppConfig) error {
	return r.set(ctx, map[string]any{KeyConfig: cfg})
}

// Reset overwrites every document with the given state.
func (r *Repository) Reset(ctx context.Context, snap Snapshot) error {
	sales := snap.Sales
	if sales == nil {
		sales = []ledger.Sale{}
	}
	return r.set(ctx, map[string]any{
		KeyProducts: nonNilProducts(snap.Products),
		KeySales:    sales,
		KeyConfig:   snap.Config,
	})
}

func (r *Repository) get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) set(ctx context.Context, docs map[string]any) error {
	entries := make(map[string][]byte, len(docs))
	for k, v := range docs {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("storage: encode %s: %w", k, err)
		}
		entries[k] = raw
	}
	return r.kv.SetMany(ctx, entries)
}

func nonNilProducts(products []catalog.Product) []catalog.Product {
	if products == nil {
		return []catalog.Product{}
	}
	return products
}
