package catalog

import "sync"

// Store is the authoritative in-memory product list. Products keep their
// insertion order; ids are unique and stock never drops below zero.
type Store struct {
	mu    sync.RWMutex
	items []Product
	index map[string]int
}

// NewStore builds a store seeded with products.
func NewStore(products []Product) (*Store, error) {
	s := &Store{}
	if err := s.ReplaceAll(products); err != nil {
		return nil, err
	}
	return s, nil
}

// Add inserts a new product.
func (s *Store) Add(p Product) error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[p.ID]; ok {
		return ErrDuplicateID
	}
	s.index[p.ID] = len(s.items)
	s.items = append(s.items, p)
	return nil
}

// Update replaces every field of the product sharing p.ID. Updating an
// unknown id is a no-op and reports false.
func (s *Store) Update(p Product) (bool, error) {
	if p.Stock < 0 {
		return false, ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[p.ID]
	if !ok {
		return false, nil
	}
	s.items[i] = p
	return true, nil
}

// Patch applies a partial update and returns the resulting product.
func (s *Store) Patch(id string, patch Patch) (Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Product{}, false, nil
	}
	next := patch.Apply(s.items[i])
	if next.Stock < 0 {
		return Product{}, false, ErrNegativeStock
	}
	s.items[i] = next
	return next, true, nil
}

// Delete removes a product. Carts and sales referencing it are untouched.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
	return true
}

// ReplaceAll overwrites the whole catalog. The store is left untouched when
// products contain a duplicate id, a missing id or negative stock.
func (s *Store) ReplaceAll(products []Product) error {
	items := make([]Product, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" {
			return ErrMissingID
		}
		if p.Stock < 0 {
			return ErrNegativeStock
		}
		if _, dup := index[p.ID]; dup {
			return ErrDuplicateID
		}
		index[p.ID] = i
		items[i] = p
	}
	s.mu.Lock()
	s.items = items
	s.index = index
	s.mu.Unlock()
	return nil
}

// DecrementStock lowers stock by qty, clamping at zero. Unknown ids are ignored.
func (s *Store) DecrementStock(id string, qty int) bool {
	return s.DecrementMany(map[string]int{id: qty}) == 1
}

// DecrementMany applies every decrement under one lock so readers never see
// a partially applied sale. Quantities are keyed by product id; unknown ids
// are ignored. It returns the number of products changed.
func (s *Store) DecrementMany(qty map[string]int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, n := range qty {
		i, ok := s.index[id]
		if !ok {
			continue
		}
		s.items[i].Stock = max(s.items[i].Stock-n, 0)
		changed++
	}
	return changed
}

// Get returns the product with id.
func (s *Store) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Product{}, false
	}
	return s.items[i], true
}

// Stock returns the live stock of a product.
func (s *Store) Stock(id string) (int, bool) {
	p, ok := s.Get(id)
	return p.Stock, ok
}

// List returns a copy of the catalog in insertion order.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, p := range s.items {
		s.index[p.ID] = i
	}
}
