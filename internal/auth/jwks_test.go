package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marshalJWKS builds a JWKS document holding the given public keys.
func marshalJWKS(t *testing.T, keys map[string]*rsa.PublicKey) []byte {
	t.Helper()

	set := jwk.NewSet()
	for kid, pub := range keys {
		jwkKey, err := jwk.FromRaw(pub)
		require.NoError(t, err)
		require.NoError(t, jwkKey.Set(jwk.KeyIDKey, kid))
		require.NoError(t, jwkKey.Set(jwk.AlgorithmKey, "RS256"))
		require.NoError(t, set.AddKey(jwkKey))
	}

	doc, err := json.Marshal(set)
	require.NoError(t, err)
	return doc
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestJWKSCache_Key(t *testing.T) {
	t.Parallel()

	privateKey := generateRSAKey(t)
	doc := marshalJWKS(t, map[string]*rsa.PublicKey{"key-1": &privateKey.PublicKey})

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	defer server.Close()

	cache := NewJWKSCache(JWKSConfig{URL: server.URL})

	raw, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)

	pub, ok := raw.(*rsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(&privateKey.PublicKey))
	assert.Equal(t, int32(1), fetches.Load())

	// Served from cache inside the TTL.
	_, err = cache.Key(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestJWKSCache_EmptyKID(t *testing.T) {
	t.Parallel()

	privateKey := generateRSAKey(t)

	t.Run("single key set matches", func(t *testing.T) {
		t.Parallel()

		doc := marshalJWKS(t, map[string]*rsa.PublicKey{"only": &privateKey.PublicKey})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(doc)
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		raw, err := cache.Key(context.Background(), "")
		require.NoError(t, err)
		assert.NotNil(t, raw)
	})

	t.Run("multi key set is ambiguous", func(t *testing.T) {
		t.Parallel()

		other := generateRSAKey(t)
		doc := marshalJWKS(t, map[string]*rsa.PublicKey{
			"key-a": &privateKey.PublicKey,
			"key-b": &other.PublicKey,
		})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(doc)
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		_, err := cache.Key(context.Background(), "")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestJWKSCache_UnknownKIDForcesRefresh(t *testing.T) {
	t.Parallel()

	oldKey := generateRSAKey(t)
	newKey := generateRSAKey(t)

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := fetches.Add(1)
		keys := map[string]*rsa.PublicKey{"old": &oldKey.PublicKey}
		if n > 1 {
			keys = map[string]*rsa.PublicKey{"rotated": &newKey.PublicKey}
		}
		_, _ = w.Write(marshalJWKS(t, keys))
	}))
	defer server.Close()

	cache := NewJWKSCache(JWKSConfig{URL: server.URL, CacheTTL: time.Hour})

	_, err := cache.Key(context.Background(), "old")
	require.NoError(t, err)
	require.Equal(t, int32(1), fetches.Load())

	// The rotated kid is not in the cached set, so a refresh is forced
	// even though the TTL has not elapsed.
	raw, err := cache.Key(context.Background(), "rotated")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load())

	pub, ok := raw.(*rsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(&newKey.PublicKey))
}

func TestJWKSCache_ServesStaleOnRefreshFailure(t *testing.T) {
	t.Parallel()

	privateKey := generateRSAKey(t)
	doc := marshalJWKS(t, map[string]*rsa.PublicKey{"key-1": &privateKey.PublicKey})

	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(doc)
	}))
	defer server.Close()

	cache := NewJWKSCache(JWKSConfig{URL: server.URL, CacheTTL: time.Millisecond})

	_, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)

	failing.Store(true)
	time.Sleep(5 * time.Millisecond)

	// The TTL has elapsed and the endpoint is failing. The last good key
	// set keeps serving rather than failing verification outright.
	raw, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)
	assert.NotNil(t, raw)

	// A kid the stale set never held still fails.
	_, err = cache.Key(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrJWKSUnavailable)
}

func TestJWKSCache_EndpointErrors(t *testing.T) {
	t.Parallel()

	t.Run("non-200 status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		_, err := cache.Key(context.Background(), "key-1")
		assert.ErrorIs(t, err, ErrJWKSUnavailable)
	})

	t.Run("invalid document", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not a jwks"))
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		_, err := cache.Key(context.Background(), "key-1")
		assert.ErrorIs(t, err, ErrJWKSUnavailable)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		t.Parallel()

		cache := NewJWKSCache(JWKSConfig{
			URL:          "http://127.0.0.1:1/jwks.json",
			FetchTimeout: 200 * time.Millisecond,
		})

		_, err := cache.Key(context.Background(), "key-1")
		assert.ErrorIs(t, err, ErrJWKSUnavailable)
	})
}

func TestJWKSCache_Ready(t *testing.T) {
	t.Parallel()

	t.Run("fetches key material once", func(t *testing.T) {
		t.Parallel()

		privateKey := generateRSAKey(t)
		doc := marshalJWKS(t, map[string]*rsa.PublicKey{"key-1": &privateKey.PublicKey})

		var fetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fetches.Add(1)
			_, _ = w.Write(doc)
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		require.NoError(t, cache.Ready(context.Background()))
		assert.Equal(t, int32(1), fetches.Load())

		require.NoError(t, cache.Ready(context.Background()))
		assert.Equal(t, int32(1), fetches.Load())
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		t.Parallel()

		cache := NewJWKSCache(JWKSConfig{
			URL:          "http://127.0.0.1:1/jwks.json",
			FetchTimeout: 200 * time.Millisecond,
		})

		assert.ErrorIs(t, cache.Ready(context.Background()), ErrJWKSUnavailable)
	})

	t.Run("empty key set", func(t *testing.T) {
		t.Parallel()

		doc := marshalJWKS(t, nil)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(doc)
		}))
		defer server.Close()

		cache := NewJWKSCache(JWKSConfig{URL: server.URL})

		assert.ErrorIs(t, cache.Ready(context.Background()), ErrKeyNotFound)
	})
}

func TestJWKSCache_RecordsRefreshMetrics(t *testing.T) {
	t.Parallel()

	privateKey := generateRSAKey(t)
	doc := marshalJWKS(t, map[string]*rsa.PublicKey{"key-1": &privateKey.PublicKey})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(doc)
	}))
	defer server.Close()

	metrics := NewMetricsWithRegisterer("toolgate_test", prometheus.NewRegistry())
	cache := NewJWKSCache(JWKSConfig{URL: server.URL}, WithJWKSMetrics(metrics))

	_, err := cache.Key(context.Background(), "key-1")
	require.NoError(t, err)
}
