package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/dashboard"
	jobmetrics "github.com/wholesale-pos/wholesale-pos/internal/jobs"
)

// ProductSource loads the persisted catalog. The bool is false when no
// catalog has been stored yet.
type ProductSource interface {
	LoadProducts(ctx context.Context) ([]catalog.Product, bool, error)
}

// LowStockScanJob logs and counts products at or under their reorder level.
type LowStockScanJob struct {
	Source  ProductSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(source ProductSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan for an Asynq task.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Scan(ctx, payload)
	return err
}

// Scan returns the products at or under their reorder level.
func (j *LowStockScanJob) Scan(ctx context.Context, payload LowStockScanPayload) (low []catalog.Product, resultErr error) {
	start := j.clock()
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("source", payload.Source))
	if j.Source == nil {
		return nil, errors.New("low stock scan: product source not configured")
	}
	products, stored, err := j.Source.LoadProducts(ctx)
	if err != nil {
		logger.Error("load catalog", slog.Any("error", err))
		return nil, fmt.Errorf("low stock scan: %w", err)
	}
	if !stored {
		logger.Info("no persisted catalog, skipping low stock scan")
		j.Metrics.SetLowStock(0)
		return nil, nil
	}

	low = dashboard.LowStock(products)
	for _, p := range low {
		logger.Warn("product at or under reorder level",
			slog.String("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("stock", p.Stock),
			slog.Int("min_stock_level", p.MinStockLevel),
		)
	}
	j.Metrics.SetLowStock(len(low))
	logger.Info("completed low stock scan",
		slog.Int("products", len(products)),
		slog.Int("low_stock", len(low)),
		slog.Duration("duration", j.clock().Sub(start)),
	)
	return low, nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
