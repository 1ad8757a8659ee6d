// Package pos holds the live store state: catalog, sales ledger, the active
// cart and the sync settings. Every mutation persists the affected documents
// and dispatches the matching remote push.
package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wholesale-pos/wholesale-pos/internal/cart"
	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/checkout"
	"github.com/wholesale-pos/wholesale-pos/internal/dashboard"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/remotesync"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
	"github.com/wholesale-pos/wholesale-pos/internal/shared"
	"github.com/wholesale-pos/wholesale-pos/internal/storage"
)

const persistTimeout = 5 * time.Second

// Persistence stores the documents that make up the store state.
type Persistence interface {
	SaveProducts(ctx context.Context, products []catalog.Product) error
	SaveCheckout(ctx context.Context, products []catalog.Product, sales []ledger.Sale) error
	SaveConfig(ctx context.Context, cfg settings.AppConfig) error
}

// Sync pushes local state to the remote sheet and pulls the catalog back.
type Sync interface {
	PushInventory(cfg settings.AppConfig, products []catalog.Product) *remotesync.Pending
	PushSale(cfg settings.AppConfig, sale ledger.Sale, products []catalog.Product) *remotesync.Pending
	Pull(ctx context.Context, endpoint string) ([]catalog.Product, error)
	Status() remotesync.Status
}

// Idempotency guards checkout replays.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Assistant answers questions about a snapshot of the store.
type Assistant interface {
	Ask(ctx context.Context, query string, products []catalog.Product, sales []ledger.Sale) (string, error)
}

// Metrics receives business counters.
type Metrics interface {
	RecordCheckout(total float64)
	RecordPersistFailure(document string)
}

// Deps groups Service collaborators. Store and Sync are required; the rest
// may be nil.
type Deps struct {
	Store       Persistence
	Sync        Sync
	Idempotency Idempotency
	Assistant   Assistant
	Metrics     Metrics
	Logger      *slog.Logger
	// Location sets the calendar days of the dashboard trend. Nil means UTC.
	Location *time.Location
}

// Service serializes all state changes behind one mutex so that the persisted
// documents and the pushed snapshots always reflect the same state. Readers
// take the same lock and never observe a half-applied checkout.
type Service struct {
	mu      sync.RWMutex
	catalog *catalog.Store
	ledger  *ledger.Ledger
	cart    *cart.Cart
	engine  *checkout.Engine
	config  settings.AppConfig

	store     Persistence
	sync      Sync
	idem      Idempotency
	assistant Assistant
	metrics   Metrics
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

// NewService builds the live state from a loaded snapshot.
func NewService(snap storage.Snapshot, deps Deps) (*Service, error) {
	if deps.Store == nil || deps.Sync == nil {
		return nil, errors.New("pos: store and sync are required")
	}
	products, err := catalog.NewStore(snap.Products)
	if err != nil {
		return nil, fmt.Errorf("pos: load catalog: %w", err)
	}
	sales := ledger.New(snap.Sales)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		catalog:   products,
		ledger:    sales,
		cart:      cart.New(products),
		engine:    checkout.NewEngine(products, sales),
		config:    snap.Config.Normalize(),
		store:     deps.Store,
		sync:      deps.Sync,
		idem:      deps.Idempotency,
		assistant: deps.Assistant,
		metrics:   deps.Metrics,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
		newID:     catalog.NewID,
	}, nil
}

// Inventory returns every product in catalog order.
func (s *Service) Inventory() []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog.List()
}

// SearchProducts filters the catalog by a name query and an exact category.
func (s *Service) SearchProducts(query, category string) []catalog.Product {
	s.mu.RLock()
	products := s.catalog.List()
	s.mu.RUnlock()
	return catalog.Filter(products, query, category)
}

// Product returns one product.
func (s *Service) Product(id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.catalog.Get(id)
	if !ok {
		return catalog.Product{}, ErrProductNotFound
	}
	return p, nil
}

// Categories lists the default categories plus any used by the catalog.
func (s *Service) Categories() []string {
	s.mu.RLock()
	products := s.catalog.List()
	s.mu.RUnlock()
	return catalog.Categories(products)
}

// AddProduct creates a product with a generated id.
func (s *Service) AddProduct(ctx context.Context, in ProductInput) (catalog.Product, *remotesync.Pending, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return catalog.Product{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := in.product(s.newID())
	if err := s.catalog.Add(p); err != nil {
		return catalog.Product{}, nil, err
	}
	return p, s.inventoryChanged(ctx), nil
}

// UpdateProduct replaces the product with the given id.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (catalog.Product, *remotesync.Pending, error) {
	in = in.normalize()
	if in.ID != "" && in.ID != id {
		return catalog.Product{}, nil, ErrIDMismatch
	}
	if err := in.validate(); err != nil {
		return catalog.Product{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := in.product(id)
	ok, err := s.catalog.Update(p)
	if err != nil {
		return catalog.Product{}, nil, err
	}
	if !ok {
		return catalog.Product{}, nil, ErrProductNotFound
	}
	return p, s.inventoryChanged(ctx), nil
}

// PatchProduct applies a partial update.
func (s *Service) PatchProduct(ctx context.Context, id string, in ProductPatchInput) (catalog.Product, *remotesync.Pending, error) {
	if err := in.validate(); err != nil {
		return catalog.Product{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := s.catalog.Patch(id, in.patch())
	if err != nil {
		return catalog.Product{}, nil, err
	}
	if !ok {
		return catalog.Product{}, nil, ErrProductNotFound
	}
	return p, s.inventoryChanged(ctx), nil
}

// DeleteProduct removes a product. Cart lines for it are left alone.
func (s *Service) DeleteProduct(ctx context.Context, id string) (*remotesync.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.catalog.Delete(id) {
		return nil, ErrProductNotFound
	}
	return s.inventoryChanged(ctx), nil
}

// Cart returns the active cart.
func (s *Service) Cart() CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartView(true)
}

// AddToCart adds one unit of a product.
func (s *Service) AddToCart(productID string) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.catalog.Get(productID)
	if !ok {
		return CartView{}, ErrProductNotFound
	}
	return s.cartView(s.cart.AddItem(p)), nil
}

// ChangeCartQuantity adjusts a cart line by delta.
func (s *Service) ChangeCartQuantity(productID string, delta int) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inCart(productID) {
		return CartView{}, ErrCartItemNotFound
	}
	return s.cartView(s.cart.ChangeQuantity(productID, delta)), nil
}

// RemoveFromCart drops a cart line.
func (s *Service) RemoveFromCart(productID string) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cart.RemoveItem(productID) {
		return CartView{}, ErrCartItemNotFound
	}
	return s.cartView(true), nil
}

// ClearCart empties the cart.
func (s *Service) ClearCart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Clear()
	return s.cartView(true)
}

// Checkout converts the cart into a sale. A non-empty key makes the call
// idempotent: a replay fails with ErrDuplicateCheckout.
func (s *Service) Checkout(ctx context.Context, key string) (ledger.Sale, *remotesync.Pending, error) {
	key = strings.TrimSpace(key)
	guarded := key != "" && s.idem != nil
	if guarded {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ledger.Sale{}, nil, ErrDuplicateCheckout
			}
			return ledger.Sale{}, nil, fmt.Errorf("pos: idempotency: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, err := s.engine.Checkout(s.cart)
	if err != nil {
		if guarded {
			if delErr := s.idem.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return ledger.Sale{}, nil, err
	}

	products := s.catalog.List()
	sales := s.ledger.List(0)
	s.persist(ctx, "checkout", func(ctx context.Context) error {
		return s.store.SaveCheckout(ctx, products, sales)
	})
	if s.metrics != nil {
		s.metrics.RecordCheckout(sale.TotalAmount)
	}
	s.logger.Info("checkout completed",
		slog.String("sale_id", sale.ID),
		slog.Int("lines", len(sale.Items)),
		slog.Float64("total", sale.TotalAmount))
	return sale, s.sync.PushSale(s.config, sale, products), nil
}

// Sales returns up to limit sales, newest first. limit <= 0 returns all.
func (s *Service) Sales(limit int) []ledger.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.List(limit)
}

// Dashboard computes the summary as of now in the store's time zone.
func (s *Service) Dashboard() dashboard.Summary {
	s.mu.RLock()
	products := s.catalog.List()
	sales := s.ledger.List(0)
	s.mu.RUnlock()
	return dashboard.Compute(products, sales, s.now().In(s.loc))
}

// Settings returns the sync configuration.
func (s *Service) Settings() settings.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateSettings validates, stores and persists a new sync configuration.
func (s *Service) UpdateSettings(ctx context.Context, cfg settings.AppConfig) (settings.AppConfig, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return settings.AppConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg
	s.persist(ctx, "config", func(ctx context.Context) error {
		return s.store.SaveConfig(ctx, cfg)
	})
	s.logger.Info("sync settings updated", slog.Bool("enabled", cfg.Enabled()))
	return cfg, nil
}

// LoadFromRemote replaces the catalog with the remote product table. On any
// error the local catalog is unchanged.
func (s *Service) LoadFromRemote(ctx context.Context) ([]catalog.Product, error) {
	endpoint, err := s.Settings().Endpoint()
	if err != nil {
		return nil, err
	}
	return s.pull(ctx, endpoint)
}

// TestConnection behaves like LoadFromRemote against url, or against the
// configured URL when url is blank.
func (s *Service) TestConnection(ctx context.Context, url string) ([]catalog.Product, error) {
	cfg := s.Settings()
	if url = strings.TrimSpace(url); url != "" {
		cfg.GoogleScriptURL = url
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	return s.pull(ctx, endpoint)
}

func (s *Service) pull(ctx context.Context, endpoint string) ([]catalog.Product, error) {
	products, err := s.sync.Pull(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.catalog.ReplaceAll(products); err != nil {
		return nil, fmt.Errorf("pos: apply remote catalog: %w", err)
	}
	current := s.catalog.List()
	s.persist(ctx, "products", func(ctx context.Context) error {
		return s.store.SaveProducts(ctx, current)
	})
	s.logger.Info("catalog loaded from remote", slog.Int("products", len(current)))
	return current, nil
}

// PushToRemote sends the full catalog to the configured URL even when
// automatic sync is switched off.
func (s *Service) PushToRemote() (*remotesync.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config
	if _, err := cfg.Endpoint(); err != nil {
		return nil, err
	}
	cfg.UseGoogleSheets = true
	return s.sync.PushInventory(cfg, s.catalog.List()), nil
}

// SyncStatus reports sync activity and whether the local catalog matches the
// last table seen on the remote.
func (s *Service) SyncStatus() SyncStatus {
	s.mu.RLock()
	cfg := s.config
	local := remotesync.Fingerprint(s.catalog.List())
	s.mu.RUnlock()

	st := s.sync.Status()
	return SyncStatus{
		Status:           st,
		Enabled:          cfg.Enabled(),
		LocalFingerprint: local,
		InSync:           st.RemoteFingerprint != "" && st.RemoteFingerprint == local,
	}
}

// Ask forwards a question to the assistant with a snapshot of the store.
func (s *Service) Ask(ctx context.Context, query string) (string, error) {
	if s.assistant == nil {
		return "", ErrAssistantUnavailable
	}
	s.mu.RLock()
	products := s.catalog.List()
	sales := s.ledger.List(0)
	s.mu.RUnlock()
	return s.assistant.Ask(ctx, query, products, sales)
}

// inventoryChanged persists the catalog and pushes it. Callers hold s.mu.
func (s *Service) inventoryChanged(ctx context.Context) *remotesync.Pending {
	products := s.catalog.List()
	s.persist(ctx, "products", func(ctx context.Context) error {
		return s.store.SaveProducts(ctx, products)
	})
	return s.sync.PushInventory(s.config, products)
}

// persist writes state detached from the caller's cancellation. Failures are
// logged and counted; the in-memory change stands.
func (s *Service) persist(ctx context.Context, document string, write func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := write(ctx); err != nil {
		s.logger.Error("persist state", slog.String("document", document), slog.Any("error", err))
		if s.metrics != nil {
			s.metrics.RecordPersistFailure(document)
		}
	}
}

func (s *Service) inCart(productID string) bool {
	for _, item := range s.cart.Items() {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

func (s *Service) cartView(applied bool) CartView {
	return CartView{
		Items:   s.cart.Items(),
		Total:   s.cart.Total().InexactFloat64(),
		Applied: applied,
	}
}
