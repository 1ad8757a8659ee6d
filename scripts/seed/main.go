package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/wholesale-pos/wholesale-pos/internal/app"
	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/storage"
)

func main() {
	demoSales := flag.Int("demo-sales", 0, "number of demo sales to spread over the last 7 days")
	keepConfig := flag.Bool("keep-config", true, "keep the stored sync settings")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver == app.StorageMemory {
		log.Fatalf("STORAGE_DRIVER=memory has nothing to seed; use redis or postgres")
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backends.Close()

	repo := storage.NewRepository(backends.KV)
	syncCfg := cfg.DefaultSyncSettings()
	if *keepConfig {
		current, err := repo.Load(ctx, syncCfg)
		if err != nil {
			log.Fatalf("load current state: %v", err)
		}
		syncCfg = current.Config
	}

	products := catalog.SeedProducts()
	sales := demoLedger(products, *demoSales, time.Now().UTC())

	fmt.Println("→ Seeding catalog and ledger...")
	if err := repo.Reset(ctx, storage.Snapshot{Products: products, Sales: sales, Config: syncCfg}); err != nil {
		log.Fatalf("reset storage: %v", err)
	}
	fmt.Printf("✓ Seeded %d products and %d sales at %s\n", len(products), len(sales), time.Now().Format(time.RFC3339))
}

// demoLedger builds n sales, newest first, cycling through the catalog.
func demoLedger(products []catalog.Product, n int, now time.Time) []ledger.Sale {
	if n <= 0 || len(products) == 0 {
		return []ledger.Sale{}
	}
	sales := make([]ledger.Sale, 0, n)
	for i := 0; i < n; i++ {
		p := products[i%len(products)]
		qty := 1 + i%4
		items := []ledger.SaleItem{{ProductID: p.ID, Name: p.Name, Quantity: qty, PriceAtSale: p.RetailPrice}}
		sales = append(sales, ledger.Sale{
			ID:          catalog.NewID(),
			Date:        now.Add(-time.Duration(i) * 7 * 24 * time.Hour / time.Duration(n)),
			Items:       items,
			TotalAmount: ledger.Sum(items).InexactFloat64(),
		})
	}
	return sales
}
