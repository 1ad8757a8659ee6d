package catalog

import (
	"sort"
	"strings"
)

// DefaultCategories are the category suggestions offered when editing products.
var DefaultCategories = []string{
	"Grains",
	"Oils",
	"Flour",
	"Pulses",
	"Spices",
	"Snacks",
	"Beverages",
	"Cleaning",
	"Personal Care",
	"Sweeteners",
}

// SeedProducts returns the starter catalog used when nothing has been persisted yet.
func SeedProducts() []Product {
	return []Product{
		{ID: "1", Name: "Basmati Rice (Premium)", Category: "Grains", WholesalePrice: 80, RetailPrice: 110, Stock: 500, MinStockLevel: 50},
		{ID: "2", Name: "Sunflower Oil (1L)", Category: "Oils", WholesalePrice: 120, RetailPrice: 150, Stock: 100, MinStockLevel: 20},
		{ID: "3", Name: "Wheat Flour (10kg)", Category: "Flour", WholesalePrice: 350, RetailPrice: 420, Stock: 40, MinStockLevel: 10},
		{ID: "4", Name: "Toor Dal", Category: "Pulses", WholesalePrice: 90, RetailPrice: 130, Stock: 150, MinStockLevel: 30},
		{ID: "5", Name: "Sugar", Category: "Sweeteners", WholesalePrice: 38, RetailPrice: 45, Stock: 200, MinStockLevel: 50},
	}
}

// Categories merges the default categories with those in use, defaults first.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(DefaultCategories))
	out := make([]string, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		seen[strings.ToLower(c)] = struct{}{}
		out = append(out, c)
	}
	var extra []string
	for _, p := range products {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Filter selects products whose name or category contains query
// (case-insensitive) and, when category is set, whose category matches exactly.
func Filter(products []Product, query, category string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Category), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}
