package sharing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

func redisSharingConfig(addr string) config.SharingConfig {
	return config.SharingConfig{
		Backend: config.SharingBackendRedis,
		Redis: config.RedisConfig{
			Addr:      addr,
			KeyPrefix: "toolgate:sharing",
		},
		FetchTimeout: config.Duration(500 * time.Millisecond),
	}
}

func TestRedisStore_Fetch(t *testing.T) {
	mr := miniredis.RunT(t)

	mr.HSet("toolgate:sharing:resource-001",
		"tenant-b", `{"resourceId":"resource-001","ownerTenantId":"tenant-a","consumerTenantId":"tenant-b","visibility":"private","status":"active"}`,
		"tenant-c", `{"ownerTenantId":"tenant-a","visibility":"private","status":"revoked"}`,
	)

	store, err := newRedisStore(redisSharingConfig(mr.Addr()), observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	records, err := store.Fetch(context.Background(), "resource-001")
	require.NoError(t, err)
	require.Len(t, records, 2)

	byConsumer := make(map[string]Record, len(records))
	for _, rec := range records {
		byConsumer[rec.ConsumerTenantID] = rec
	}

	assert.Equal(t, "tenant-a", byConsumer["tenant-b"].OwnerTenantID)
	assert.Equal(t, StatusActive, byConsumer["tenant-b"].Status)

	// Missing record fields are filled from the hash layout.
	assert.Equal(t, "resource-001", byConsumer["tenant-c"].ResourceID)
	assert.Equal(t, "tenant-c", byConsumer["tenant-c"].ConsumerTenantID)
	assert.Equal(t, "revoked", byConsumer["tenant-c"].Status)
}

func TestRedisStore_FetchNotFound(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := newRedisStore(redisSharingConfig(mr.Addr()), observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Fetch(context.Background(), "resource-unknown")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRedisStore_FetchMalformedRecord(t *testing.T) {
	mr := miniredis.RunT(t)

	mr.HSet("toolgate:sharing:resource-001", "tenant-b", "{not json")

	store, err := newRedisStore(redisSharingConfig(mr.Addr()), observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Fetch(context.Background(), "resource-001")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRedisStore_FetchServerDown(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := newRedisStore(redisSharingConfig(mr.Addr()), observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	mr.Close()

	_, err = store.Fetch(context.Background(), "resource-001")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRedisStore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := redisSharingConfig(mr.Addr())
	cfg.Breaker = config.BreakerConfig{
		Enabled:             true,
		MaxRequests:         1,
		Interval:            config.Duration(time.Minute),
		Timeout:             config.Duration(time.Minute),
		ConsecutiveFailures: 2,
	}

	store, err := newRedisStore(cfg, observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	mr.Close()

	for i := 0; i < 2; i++ {
		_, err = store.Fetch(context.Background(), "resource-001")
		require.ErrorIs(t, err, ErrStoreUnavailable)
	}

	// The breaker is open now. Calls keep failing closed without
	// touching the server.
	_, err = store.Fetch(context.Background(), "resource-001")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRedisStore_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := newRedisStore(redisSharingConfig(mr.Addr()), observability.NopLogger(), &storeOptions{})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_RequiresAddr(t *testing.T) {
	t.Parallel()

	cfg := config.SharingConfig{Backend: config.SharingBackendRedis}
	_, err := newRedisStore(cfg, observability.NopLogger(), &storeOptions{})
	assert.Error(t, err)
}
