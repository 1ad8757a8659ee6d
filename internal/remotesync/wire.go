package remotesync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

// Push actions understood by the endpoint.
const (
	ActionUpdateInventory = "UPDATE_INVENTORY"
	ActionRecordSale      = "RECORD_SALE"
)

type inventoryPayload struct {
	Action    string            `json:"action"`
	Inventory []catalog.Product `json:"inventory"`
}

type salePayload struct {
	Action    string            `json:"action"`
	Sale      ledger.Sale       `json:"sale"`
	Inventory []catalog.Product `json:"inventory"`
}

// DecodeInventory parses a pull response into products. Every field is
// validated; anything missing, null, boolean or out of range fails closed.
func DecodeInventory(body []byte) ([]catalog.Product, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &MalformedResponseError{Reason: "empty response body"}
	}
	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		if looksLikeSignIn(trimmed) {
			return nil, &PermissionError{}
		}
		return nil, &MalformedResponseError{Reason: "response is not JSON"}
	}

	switch v := doc.(type) {
	case map[string]any:
		if status, _ := v["status"].(string); status == "error" {
			msg, _ := v["message"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, &RemoteError{Message: msg}
		}
		return nil, &MalformedResponseError{Reason: "expected a product array"}
	case []any:
		products := make([]catalog.Product, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for i, raw := range v {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, &MalformedResponseError{Index: i, Reason: fmt.Sprintf("item %d is not an object", i)}
			}
			p, err := decodeProduct(i, obj)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[p.ID]; dup {
				return nil, &MalformedResponseError{Index: i, Field: "id", Reason: "duplicate id " + p.ID}
			}
			seen[p.ID] = struct{}{}
			products = append(products, p)
		}
		return products, nil
	default:
		return nil, &MalformedResponseError{Reason: "expected a product array"}
	}
}

func looksLikeSignIn(body []byte) bool {
	if body[0] == '<' {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "google") || strings.Contains(lower, "signin")
}

func decodeProduct(i int, obj map[string]any) (catalog.Product, error) {
	var (
		p   catalog.Product
		err error
	)
	if p.ID, err = stringField(i, obj, "id"); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, &MalformedResponseError{Index: i, Field: "id", Reason: "empty"}
	}
	if p.Name, err = stringField(i, obj, "name"); err != nil {
		return p, err
	}
	if p.Category, err = stringField(i, obj, "category"); err != nil {
		return p, err
	}
	if p.WholesalePrice, err = numberField(i, obj, "wholesalePrice"); err != nil {
		return p, err
	}
	if p.RetailPrice, err = numberField(i, obj, "retailPrice"); err != nil {
		return p, err
	}
	if p.Stock, err = countField(i, obj, "stock"); err != nil {
		return p, err
	}
	if p.MinStockLevel, err = countField(i, obj, "minStockLevel"); err != nil {
		return p, err
	}
	return p, nil
}

func present(i int, obj map[string]any, field string) (any, error) {
	v, ok := obj[field]
	if !ok {
		return nil, &MalformedResponseError{Index: i, Field: field, Reason: "missing"}
	}
	switch v.(type) {
	case nil:
		return nil, &MalformedResponseError{Index: i, Field: field, Reason: "null"}
	case bool:
		return nil, &MalformedResponseError{Index: i, Field: field, Reason: "boolean not allowed"}
	case map[string]any, []any:
		return nil, &MalformedResponseError{Index: i, Field: field, Reason: "expected a scalar"}
	}
	return v, nil
}

func stringField(i int, obj map[string]any, field string) (string, error) {
	v, err := present(i, obj, field)
	if err != nil {
		return "", err
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &MalformedResponseError{Index: i, Field: field, Reason: err.Error()}
	}
	return strings.TrimSpace(s), nil
}

func numberField(i int, obj map[string]any, field string) (float64, error) {
	v, err := present(i, obj, field)
	if err != nil {
		return 0, err
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, &MalformedResponseError{Index: i, Field: field, Reason: "empty"}
		}
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &MalformedResponseError{Index: i, Field: field, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MalformedResponseError{Index: i, Field: field, Reason: "not a finite number"}
	}
	if f < 0 {
		return 0, &MalformedResponseError{Index: i, Field: field, Reason: "negative"}
	}
	return f, nil
}

func countField(i int, obj map[string]any, field string) (int, error) {
	f, err := numberField(i, obj, field)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &MalformedResponseError{Index: i, Field: field, Reason: "not an integer"}
	}
	if f > math.MaxInt32 {
		return 0, &MalformedResponseError{Index: i, Field: field, Reason: "out of range"}
	}
	return int(f), nil
}
