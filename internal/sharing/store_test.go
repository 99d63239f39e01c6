package sharing

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

func TestNewStore(t *testing.T) {
	t.Run("static backend", func(t *testing.T) {
		t.Parallel()

		store, err := NewStore(config.SharingConfig{
			Backend: config.SharingBackendStatic,
		}, observability.NopLogger())
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		_, ok := store.(*staticStore)
		assert.True(t, ok)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)

		store, err := NewStore(config.SharingConfig{
			Backend: config.SharingBackendRedis,
			Redis:   config.RedisConfig{Addr: mr.Addr()},
		}, observability.NopLogger())
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		_, ok := store.(*redisStore)
		assert.True(t, ok)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Parallel()

		_, err := NewStore(config.SharingConfig{Backend: "dynamo"}, observability.NopLogger())
		assert.Error(t, err)
	})
}

func TestStaticStore_Fetch(t *testing.T) {
	t.Parallel()

	store := newStaticStore([]config.StaticRecord{
		{
			ResourceID:       "resource-001",
			OwnerTenantID:    "tenant-a",
			ConsumerTenantID: "tenant-b",
			Visibility:       VisibilityPrivate,
			Status:           StatusActive,
		},
		{
			ResourceID:       "resource-001",
			OwnerTenantID:    "tenant-a",
			ConsumerTenantID: "tenant-c",
			Visibility:       VisibilityPrivate,
			Status:           "revoked",
		},
		{
			ResourceID:    "resource-002",
			OwnerTenantID: "tenant-a",
			Visibility:    VisibilityPublic,
		},
	})

	records, err := store.Fetch(context.Background(), "resource-001")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.Fetch(context.Background(), "resource-002")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, VisibilityPublic, records[0].Visibility)

	_, err = store.Fetch(context.Background(), "resource-unknown")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// Mutating the returned slice must not affect later fetches.
	records, err = store.Fetch(context.Background(), "resource-002")
	require.NoError(t, err)
	records[0].Visibility = VisibilityOwnerOnly

	records, err = store.Fetch(context.Background(), "resource-002")
	require.NoError(t, err)
	assert.Equal(t, VisibilityPublic, records[0].Visibility)
}

func TestStaticStore_CancelledContext(t *testing.T) {
	t.Parallel()

	store := newStaticStore(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Fetch(ctx, "resource-001")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")
	err := &StoreError{Op: "fetch", Cause: cause}

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRecordNotFound)
	assert.Contains(t, err.Error(), "fetch")
}
