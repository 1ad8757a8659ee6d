package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/platform/db"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"redis":  NewRedisKV(client, "wholesale"),
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	defaults := settings.AppConfig{UseGoogleSheets: true, GoogleScriptURL: "https://example.com/exec"}
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap, err := NewRepository(kv).Load(context.Background(), defaults)
			require.NoError(t, err)
			require.True(t, snap.Seeded)
			require.Equal(t, catalog.SeedProducts(), snap.Products)
			require.Empty(t, snap.Sales)
			require.NotNil(t, snap.Sales)
			require.Equal(t, defaults, snap.Config)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository(kv)
			products := []catalog.Product{{ID: "x", Name: "Cardamom", Category: "Spices", WholesalePrice: 1200, RetailPrice: 1500, Stock: 3, MinStockLevel: 1}}
			sales := []ledger.Sale{{
				ID:          "s1",
				Date:        time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
				Items:       []ledger.SaleItem{{ProductID: "x", Name: "Cardamom", Quantity: 1, PriceAtSale: 1500}},
				TotalAmount: 1500,
			}}
			cfg := settings.AppConfig{UseGoogleSheets: true, GoogleScriptURL: "https://script.example/exec"}

			require.NoError(t, repo.SaveCheckout(ctx, products, sales))
			require.NoError(t, repo.SaveConfig(ctx, cfg))

			snap, err := repo.Load(ctx, settings.AppConfig{})
			require.NoError(t, err)
			require.False(t, snap.Seeded)
			require.Equal(t, products, snap.Products)
			require.Equal(t, sales, snap.Sales)
			require.Equal(t, cfg, snap.Config)
		})
	}
}

func TestResetOverwritesEveryDocument(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewRepository(kv)
			require.NoError(t, repo.SaveCheckout(ctx, []catalog.Product{{ID: "old", Name: "Old", Stock: 1}}, []ledger.Sale{{ID: "s1", TotalAmount: 10}}))
			require.NoError(t, repo.SaveConfig(ctx, settings.AppConfig{UseGoogleSheets: true, GoogleScriptURL: "https://script.example/exec"}))

			require.NoError(t, repo.Reset(ctx, Snapshot{Products: catalog.SeedProducts()}))

			snap, err := repo.Load(ctx, settings.AppConfig{UseGoogleSheets: true})
			require.NoError(t, err)
			require.False(t, snap.Seeded)
			require.Equal(t, catalog.SeedProducts(), snap.Products)
			require.Empty(t, snap.Sales)
			require.Equal(t, settings.AppConfig{}, snap.Config)
		})
	}
}

func TestEmptyCatalogIsNotReseeded(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryKV())

	require.NoError(t, repo.SaveProducts(ctx, nil))
	snap, err := repo.Load(ctx, settings.AppConfig{})
	require.NoError(t, err)
	require.False(t, snap.Seeded)
	require.Empty(t, snap.Products)
}

func TestRedisKeysArePrefixed(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	repo := NewRepository(NewRedisKV(client, "shop1"))
	require.NoError(t, repo.SaveConfig(context.Background(), settings.AppConfig{UseGoogleSheets: true}))

	raw, err := srv.Get("shop1:config")
	require.NoError(t, err)
	require.JSONEq(t, `{"useGoogleSheets":true,"googleScriptUrl":""}`, raw)
}

func TestCorruptDocumentFailsLoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.SetMany(ctx, map[string][]byte{KeyProducts: []byte("{not json")}))

	_, err := NewRepository(kv).Load(ctx, settings.AppConfig{})
	require.Error(t, err)
}

func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("WHOLESALE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("WHOLESALE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, 2)
	require.NoError(t, err)
	defer pool.Close()

	kv := NewPostgresKV(pool, "test-"+time.Now().Format("150405.000000"))
	require.NoError(t, kv.EnsureSchema(ctx))

	_, err = kv.Get(ctx, KeyProducts)
	require.ErrorIs(t, err, ErrNotFound)

	repo := NewRepository(kv)
	require.NoError(t, repo.SaveProducts(ctx, catalog.SeedProducts()))
	products, found, err := repo.LoadProducts(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, catalog.SeedProducts(), products)
}
