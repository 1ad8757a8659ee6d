package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wholesale-pos/wholesale-pos/internal/platform/cache"
	"github.com/wholesale-pos/wholesale-pos/internal/platform/db"
	"github.com/wholesale-pos/wholesale-pos/internal/shared"
	"github.com/wholesale-pos/wholesale-pos/internal/storage"
)

// Backends holds the connections opened for the configured storage driver.
// Redis is also opened for the memory and postgres drivers when reachable, so
// checkout idempotency works regardless of where documents live.
type Backends struct {
	KV    storage.KV
	Redis *redis.Client
	Pool  *pgxpool.Pool
}

// OpenBackends connects to the storage selected by cfg.StorageDriver.
func OpenBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	switch cfg.StorageDriver {
	case StorageRedis:
		client, err := cache.New(ctx, redisOptions(cfg))
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.KV = storage.NewRedisKV(client, cfg.StoragePrefix)
	case StoragePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		kv := storage.NewPostgresKV(pool, cfg.StoragePrefix)
		if err := kv.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		b.Pool = pool
		b.KV = kv
	case StorageMemory:
		b.KV = storage.NewMemoryKV()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if b.Redis == nil {
		client, err := cache.New(ctx, redisOptions(cfg))
		if err != nil {
			logger.Warn("redis unavailable, checkout idempotency disabled", slog.Any("error", err))
		} else {
			b.Redis = client
		}
	}
	return b, nil
}

// Idempotency returns the checkout idempotency store, or nil without Redis.
func (b *Backends) Idempotency(cfg *Config) *shared.IdempotencyStore {
	if b == nil || b.Redis == nil {
		return nil
	}
	return shared.NewIdempotencyStore(b.Redis, cfg.StoragePrefix, cfg.IdempotencyTTL)
}

// Close releases every open connection.
func (b *Backends) Close() error {
	if b == nil {
		return nil
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.Redis != nil {
		return b.Redis.Close()
	}
	return nil
}

func redisOptions(cfg *Config) cache.Options {
	return cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
