package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/wholesale-pos/wholesale-pos/internal/platform/httpx"
)

func newRedisStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, "wholesale", time.Hour), srv
}

func TestCheckAndInsertRejectsReplay(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "checkout"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "abc", "checkout"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "other"))

	require.True(t, srv.Exists("wholesale:idem:checkout:abc"))
	require.Equal(t, time.Hour, srv.TTL("wholesale:idem:checkout:abc"))

	srv.FastForward(2 * time.Hour)
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "checkout"))
}

func TestDeleteReleasesKey(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "checkout"))
	require.NoError(t, store.Delete(ctx, "k1", "checkout"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "checkout"))
}

func TestNilStore(t *testing.T) {
	var store *IdempotencyStore
	require.Error(t, store.CheckAndInsert(context.Background(), "k", "m"))
	require.NoError(t, store.Delete(context.Background(), "k", "m"))
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"Name": "required", "Stock": "gte"}}
	require.True(t, errors.Is(err, httpx.ErrValidation))
	require.Equal(t, "validation failed: Name, Stock", err.Error())

	plain := errors.New("boom")
	require.Equal(t, plain, NewValidationError(plain))
}
