package pos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/checkout"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/platform/httpx"
	"github.com/wholesale-pos/wholesale-pos/internal/remotesync"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
	"github.com/wholesale-pos/wholesale-pos/internal/shared"
	"github.com/wholesale-pos/wholesale-pos/internal/storage"
)

// sheet stands in for the spreadsheet script. GET serves pullBody when set,
// otherwise the last pushed inventory.
type sheet struct {
	mu        sync.Mutex
	pullBody  string
	inventory []catalog.Product
	actions   []string
}

func (s *sheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		if s.pullBody != "" {
			_, _ = io.WriteString(w, s.pullBody)
			return
		}
		inventory := s.inventory
		if inventory == nil {
			inventory = []catalog.Product{}
		}
		_ = json.NewEncoder(w).Encode(inventory)
		return
	}
	var payload struct {
		Action    string            `json:"action"`
		Sale      *ledger.Sale      `json:"sale"`
		Inventory []catalog.Product `json:"inventory"`
	}
	raw, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(raw, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.actions = append(s.actions, payload.Action)
	s.inventory = payload.Inventory
	_, _ = io.WriteString(w, `{"status":"success"}`)
}

func (s *sheet) setPullBody(body string) {
	s.mu.Lock()
	s.pullBody = body
	s.mu.Unlock()
}

func (s *sheet) pushed() ([]string, []catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...), append([]catalog.Product(nil), s.inventory...)
}

type fakeMetrics struct {
	mu        sync.Mutex
	checkouts []float64
	failures  []string
}

func (m *fakeMetrics) RecordCheckout(total float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts = append(m.checkouts, total)
}

func (m *fakeMetrics) RecordPersistFailure(document string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, document)
}

type failingStore struct{}

func (failingStore) SaveProducts(context.Context, []catalog.Product) error {
	return errors.New("disk full")
}

func (failingStore) SaveCheckout(context.Context, []catalog.Product, []ledger.Sale) error {
	return errors.New("disk full")
}

func (failingStore) SaveConfig(context.Context, settings.AppConfig) error {
	return errors.New("disk full")
}

type fakeAssistant struct {
	products []catalog.Product
	sales    []ledger.Sale
}

func (a *fakeAssistant) Ask(_ context.Context, query string, products []catalog.Product, sales []ledger.Sale) (string, error) {
	a.products = products
	a.sales = sales
	return "answer to " + query, nil
}

type fixture struct {
	svc     *Service
	repo    *storage.Repository
	sheet   *sheet
	url     string
	metrics *fakeMetrics
}

type fixtureOption func(*Deps, *storage.Snapshot)

func withStore(store Persistence) fixtureOption {
	return func(d *Deps, _ *storage.Snapshot) { d.Store = store }
}

func withSyncDisabled() fixtureOption {
	return func(_ *Deps, snap *storage.Snapshot) { snap.Config.UseGoogleSheets = false }
}

func withIdempotency(idem Idempotency) fixtureOption {
	return func(d *Deps, _ *storage.Snapshot) { d.Idempotency = idem }
}

func withProducts(products []catalog.Product) fixtureOption {
	return func(_ *Deps, snap *storage.Snapshot) { snap.Products = products }
}

func withLocation(loc *time.Location) fixtureOption {
	return func(d *Deps, _ *storage.Snapshot) { d.Location = loc }
}

func withAssistant(a Assistant) fixtureOption {
	return func(d *Deps, _ *storage.Snapshot) { d.Assistant = a }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	sh := &sheet{}
	srv := httptest.NewServer(sh)
	t.Cleanup(srv.Close)

	syncer := remotesync.NewSyncer(remotesync.SyncerConfig{
		Client: remotesync.NewClient(remotesync.ClientConfig{
			HTTPClient: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
			Timeout:    2 * time.Second,
		}),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = syncer.Close(ctx)
	})

	repo := storage.NewRepository(storage.NewMemoryKV())
	metrics := &fakeMetrics{}
	deps := Deps{Store: repo, Sync: syncer, Metrics: metrics}
	snap := storage.Snapshot{
		Products: catalog.SeedProducts(),
		Config:   settings.AppConfig{UseGoogleSheets: true, GoogleScriptURL: srv.URL},
	}
	for _, opt := range opts {
		opt(&deps, &snap)
	}
	svc, err := NewService(snap, deps)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, sheet: sh, url: srv.URL, metrics: metrics}
}

func wait(t *testing.T, p *remotesync.Pending) remotesync.Outcome {
	t.Helper()
	require.NotNil(t, p)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	outcome, err := p.Wait(ctx)
	require.NoError(t, err)
	return outcome
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(storage.Snapshot{}, Deps{})
	require.Error(t, err)

	_, err = NewService(storage.Snapshot{Products: []catalog.Product{{ID: "1"}, {ID: "1"}}}, Deps{
		Store: storage.NewRepository(storage.NewMemoryKV()),
		Sync:  remotesync.NewSyncer(remotesync.SyncerConfig{}),
	})
	require.ErrorIs(t, err, catalog.ErrDuplicateID)
}

func TestAddProductPersistsAndPushes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, pending, err := f.svc.AddProduct(ctx, ProductInput{
		Name: "  Mustard Oil (1L) ", Category: "Oils", WholesalePrice: 140, RetailPrice: 175, Stock: 60, MinStockLevel: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "Mustard Oil (1L)", p.Name)
	require.Equal(t, remotesync.OutcomeDispatched, wait(t, pending))

	actions, remote := f.sheet.pushed()
	require.Equal(t, []string{remotesync.ActionUpdateInventory}, actions)
	require.Len(t, remote, 6)
	require.Equal(t, p, remote[5])

	stored, ok, err := f.repo.LoadProducts(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.svc.Inventory(), stored)
}

func TestAddProductValidation(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.AddProduct(context.Background(), ProductInput{Name: " ", Stock: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)

	var fieldErr httpx.FieldErrors
	require.ErrorAs(t, err, &fieldErr)
	assert.Contains(t, fieldErr.FieldMessages(), "Name")
	assert.Contains(t, fieldErr.FieldMessages(), "Stock")
	require.Len(t, f.svc.Inventory(), 5)
}

func TestUpdatePatchDelete(t *testing.T) {
	f := newFixture(t, withSyncDisabled())
	ctx := context.Background()

	_, _, err := f.svc.UpdateProduct(ctx, "missing", ProductInput{Name: "x"})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, _, err = f.svc.UpdateProduct(ctx, "1", ProductInput{ID: "2", Name: "x"})
	require.ErrorIs(t, err, ErrIDMismatch)

	updated, pending, err := f.svc.UpdateProduct(ctx, "1", ProductInput{Name: "Rice", Category: "Grains", WholesalePrice: 70, RetailPrice: 100, Stock: 10, MinStockLevel: 5})
	require.NoError(t, err)
	require.Equal(t, "skipped", pending.State())
	require.Equal(t, "1", updated.ID)

	stock := 3
	patched, _, err := f.svc.PatchProduct(ctx, "1", ProductPatchInput{Stock: &stock})
	require.NoError(t, err)
	require.Equal(t, 3, patched.Stock)
	require.Equal(t, "Rice", patched.Name)

	blank := "  "
	_, _, err = f.svc.PatchProduct(ctx, "1", ProductPatchInput{Name: &blank})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = f.svc.PatchProduct(ctx, "missing", ProductPatchInput{Stock: &stock})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.svc.DeleteProduct(ctx, "1")
	require.NoError(t, err)
	_, err = f.svc.DeleteProduct(ctx, "1")
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = f.svc.Product("1")
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartBounds(t *testing.T) {
	f := newFixture(t, withSyncDisabled())
	ctx := context.Background()

	stock := 2
	_, _, err := f.svc.PatchProduct(ctx, "3", ProductPatchInput{Stock: &stock})
	require.NoError(t, err)

	view, err := f.svc.AddToCart("3")
	require.NoError(t, err)
	require.True(t, view.Applied)
	view, err = f.svc.AddToCart("3")
	require.NoError(t, err)
	require.True(t, view.Applied)
	view, err = f.svc.AddToCart("3")
	require.NoError(t, err)
	require.False(t, view.Applied)
	require.Equal(t, 2, view.Items[0].Quantity)

	view, err = f.svc.ChangeCartQuantity("3", -5)
	require.NoError(t, err)
	require.False(t, view.Applied)

	_, err = f.svc.AddToCart("missing")
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = f.svc.ChangeCartQuantity("4", 1)
	require.ErrorIs(t, err, ErrCartItemNotFound)
	_, err = f.svc.RemoveFromCart("4")
	require.ErrorIs(t, err, ErrCartItemNotFound)

	view, err = f.svc.RemoveFromCart("3")
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.Zero(t, view.Total)
}

func TestCheckoutRecordsSaleAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddToCart("3")
	require.NoError(t, err)
	view, err := f.svc.ChangeCartQuantity("3", 4)
	require.NoError(t, err)
	require.True(t, view.Applied)
	_, err = f.svc.AddToCart("5")
	require.NoError(t, err)
	require.Equal(t, 5*420.0+45, f.svc.Cart().Total)

	sale, pending, err := f.svc.Checkout(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2145.0, sale.TotalAmount)
	require.Len(t, sale.Items, 2)
	require.Equal(t, remotesync.OutcomeDispatched, wait(t, pending))

	p, err := f.svc.Product("3")
	require.NoError(t, err)
	require.Equal(t, 35, p.Stock)
	require.Empty(t, f.svc.Cart().Items)
	require.Equal(t, []ledger.Sale{sale}, f.svc.Sales(0))
	require.Equal(t, []float64{2145}, f.metrics.checkouts)

	snap, err := f.repo.Load(ctx, settings.AppConfig{})
	require.NoError(t, err)
	require.Len(t, snap.Sales, 1)
	require.Equal(t, 35, snap.Products[2].Stock)

	actions, remote := f.sheet.pushed()
	require.Equal(t, []string{remotesync.ActionRecordSale}, actions)
	require.Equal(t, 35, remote[2].Stock)

	_, _, err = f.svc.Checkout(ctx, "")
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestCheckoutIsAtomicForReaders(t *testing.T) {
	const stock = 10000
	f := newFixture(t, withSyncDisabled(), withProducts([]catalog.Product{
		{ID: "a", Name: "Jaggery", Category: "Sweeteners", RetailPrice: 60, Stock: stock},
		{ID: "b", Name: "Rock Salt", Category: "Spices", RetailPrice: 30, Stock: stock},
	}))
	ctx := context.Background()

	done := make(chan struct{})
	torn := make(chan string, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report := func(msg string) {
			select {
			case torn <- msg:
			default:
			}
		}
		for {
			select {
			case <-done:
				return
			default:
			}
			products := f.svc.Inventory()
			if products[0].Stock != products[1].Stock {
				report("inventory shows one line decremented without the other")
			}
			summary := f.svc.Dashboard()
			if summary.TotalItems != 2*stock-2*summary.SalesCount {
				report("dashboard shows a sale without its stock decrement")
			}
		}
	}()

	for i := 0; i < 300; i++ {
		_, err := f.svc.AddToCart("a")
		require.NoError(t, err)
		_, err = f.svc.AddToCart("b")
		require.NoError(t, err)
		_, _, err = f.svc.Checkout(ctx, "")
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	select {
	case msg := <-torn:
		t.Fatal(msg)
	default:
	}
	products := f.svc.Inventory()
	require.Equal(t, stock-300, products[0].Stock)
	require.Equal(t, stock-300, products[1].Stock)
	require.Len(t, f.svc.Sales(0), 300)
}

func TestCheckoutIdempotency(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, withSyncDisabled(), withIdempotency(shared.NewIdempotencyStore(client, "test", time.Hour)))
	ctx := context.Background()

	_, _, err := f.svc.Checkout(ctx, "order-1")
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = f.svc.AddToCart("1")
	require.NoError(t, err)
	_, _, err = f.svc.Checkout(ctx, "order-1")
	require.NoError(t, err)

	_, err = f.svc.AddToCart("1")
	require.NoError(t, err)
	_, _, err = f.svc.Checkout(ctx, "order-1")
	require.ErrorIs(t, err, ErrDuplicateCheckout)
	require.Len(t, f.svc.Sales(0), 1)
	require.Len(t, f.svc.Cart().Items, 1)
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	f := newFixture(t, withSyncDisabled(), withStore(failingStore{}))
	ctx := context.Background()

	_, err := f.svc.DeleteProduct(ctx, "2")
	require.NoError(t, err)
	require.Len(t, f.svc.Inventory(), 4)

	_, err = f.svc.AddToCart("1")
	require.NoError(t, err)
	_, _, err = f.svc.Checkout(ctx, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateSettings(ctx, settings.AppConfig{})
	require.NoError(t, err)
	require.Equal(t, []string{"products", "checkout", "config"}, f.metrics.failures)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateSettings(ctx, settings.AppConfig{UseGoogleSheets: true, GoogleScriptURL: "not a url"})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, f.url, f.svc.Settings().GoogleScriptURL)

	saved, err := f.svc.UpdateSettings(ctx, settings.AppConfig{GoogleScriptURL: "  https://script.example.com/exec "})
	require.NoError(t, err)
	require.Equal(t, "https://script.example.com/exec", saved.GoogleScriptURL)
	require.False(t, saved.Enabled())

	snap, err := f.repo.Load(ctx, settings.AppConfig{})
	require.NoError(t, err)
	require.Equal(t, saved, snap.Config)
}

func TestLoadFromRemoteReplacesCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sheet.setPullBody(`[{"id":"9","name":"Ghee","category":"Oils","wholesalePrice":"450","retailPrice":520,"stock":"12","minStockLevel":3}]`)

	products, err := f.svc.LoadFromRemote(ctx)
	require.NoError(t, err)
	require.Equal(t, []catalog.Product{{ID: "9", Name: "Ghee", Category: "Oils", WholesalePrice: 450, RetailPrice: 520, Stock: 12, MinStockLevel: 3}}, products)
	require.Equal(t, products, f.svc.Inventory())

	stored, _, err := f.repo.LoadProducts(ctx)
	require.NoError(t, err)
	require.Equal(t, products, stored)

	status := f.svc.SyncStatus()
	require.True(t, status.Enabled)
	require.True(t, status.InSync)
	require.Equal(t, remotesync.Fingerprint(products), status.LocalFingerprint)
}

func TestLoadFromRemoteFailureKeepsCatalog(t *testing.T) {
	f := newFixture(t)
	f.sheet.setPullBody(`[{"id":"9","name":"Ghee","stock":-4}]`)

	_, err := f.svc.LoadFromRemote(context.Background())
	var malformed *remotesync.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, catalog.SeedProducts(), f.svc.Inventory())
	require.False(t, f.svc.SyncStatus().InSync)
}

func TestRemoteOperationsNeedURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.UpdateSettings(ctx, settings.AppConfig{UseGoogleSheets: true})
	require.NoError(t, err)

	_, err = f.svc.LoadFromRemote(ctx)
	require.ErrorIs(t, err, settings.ErrSyncDisabled)
	_, err = f.svc.TestConnection(ctx, "")
	require.ErrorIs(t, err, settings.ErrSyncDisabled)
	_, err = f.svc.PushToRemote()
	require.ErrorIs(t, err, settings.ErrSyncDisabled)

	_, err = f.svc.TestConnection(ctx, "ftp://example.com")
	require.ErrorIs(t, err, httpx.ErrValidation)

	products, err := f.svc.TestConnection(ctx, f.url)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestPushToRemoteIgnoresToggle(t *testing.T) {
	f := newFixture(t, withSyncDisabled())

	_, pending, err := f.svc.AddProduct(context.Background(), ProductInput{Name: "Salt", Stock: 1})
	require.NoError(t, err)
	require.Equal(t, remotesync.OutcomeSkipped, wait(t, pending))

	pending, err = f.svc.PushToRemote()
	require.NoError(t, err)
	require.Equal(t, remotesync.OutcomeDispatched, wait(t, pending))
	_, remote := f.sheet.pushed()
	require.Len(t, remote, 6)
}

func TestAskUsesSnapshot(t *testing.T) {
	_, err := newFixture(t).svc.Ask(context.Background(), "hi")
	require.ErrorIs(t, err, ErrAssistantUnavailable)

	a := &fakeAssistant{}
	f := newFixture(t, withSyncDisabled(), withAssistant(a))
	answer, err := f.svc.Ask(context.Background(), "stock?")
	require.NoError(t, err)
	require.Equal(t, "answer to stock?", answer)
	require.Equal(t, catalog.SeedProducts(), a.products)
	require.Empty(t, a.sales)
}

func TestDashboardAndSearch(t *testing.T) {
	f := newFixture(t, withSyncDisabled())
	require.Len(t, f.svc.SearchProducts("rice", ""), 1)
	require.Len(t, f.svc.SearchProducts("", "Oils"), 1)
	require.Contains(t, f.svc.Categories(), "Personal Care")

	_, err := f.svc.AddToCart("2")
	require.NoError(t, err)
	_, _, err = f.svc.Checkout(context.Background(), "")
	require.NoError(t, err)

	summary := f.svc.Dashboard()
	require.Equal(t, 1, summary.SalesCount)
	require.Equal(t, 150.0, summary.TotalRevenue)
	require.Len(t, summary.Last7Days, 7)
}

func TestDashboardUsesStoreTimeZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	f := newFixture(t, withSyncDisabled(), withLocation(ist))
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) }

	summary := f.svc.Dashboard()
	require.Equal(t, "2026-03-11", summary.Last7Days[6].Date)

	utc := newFixture(t, withSyncDisabled())
	utc.svc.now = f.svc.now
	require.Equal(t, "2026-03-10", utc.svc.Dashboard().Last7Days[6].Date)
}
