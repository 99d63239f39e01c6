package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// storeTracerName is the OpenTelemetry tracer name for store operations.
const storeTracerName = "toolgate/sharing"

const (
	defaultFetchTimeout = 500 * time.Millisecond
	defaultKeyPrefix    = "toolgate:sharing"
	startupPingTimeout  = 5 * time.Second
)

// redisStore reads sharing records from redis. Records for one resource
// live in a single hash keyed by resource id, one field per consumer
// tenant with a JSON record value, so a fetch is one HGETALL.
type redisStore struct {
	client       *redis.Client
	keyPrefix    string
	fetchTimeout time.Duration
	breaker      *gobreaker.CircuitBreaker
	logger       observability.Logger
	metrics      *Metrics
}

var _ Store = (*redisStore)(nil)

// newRedisStore creates a redis-backed store. An unreachable server at
// startup is logged but not fatal: the interceptor keeps running and
// denies the calls that need the store.
func newRedisStore(cfg config.SharingConfig, logger observability.Logger, o *storeOptions) (*redisStore, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	fetchTimeout := cfg.FetchTimeout.Duration()
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	s := &redisStore{
		client:       client,
		keyPrefix:    keyPrefix,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      o.metrics,
	}

	if cfg.Breaker.Enabled {
		s.breaker = newStoreBreaker(cfg.Breaker, logger, o.metrics)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("sharing store unreachable at startup, calls needing it will be denied",
			observability.String("addr", cfg.Redis.Addr),
			observability.Error(err))
	} else {
		logger.Info("sharing store connected",
			observability.String("addr", cfg.Redis.Addr),
			observability.String("keyPrefix", keyPrefix),
			observability.Duration("fetchTimeout", fetchTimeout))
	}

	return s, nil
}

// newStoreBreaker builds the circuit breaker guarding store reads.
func newStoreBreaker(cfg config.BreakerConfig, logger observability.Logger, metrics *Metrics) *gobreaker.CircuitBreaker {
	consecutive := cfg.ConsecutiveFailures
	if consecutive == 0 {
		consecutive = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sharing-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutive
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("sharing store circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
			metrics.RecordBreakerTransition(from.String(), to.String())
		},
	})
}

func (s *redisStore) key(resourceID string) string {
	return s.keyPrefix + ":" + resourceID
}

// Fetch implements Store.
func (s *redisStore) Fetch(ctx context.Context, resourceID string) ([]Record, error) {
	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "sharing.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sharing.backend", "redis"),
			attribute.String("sharing.resource_id", resourceID),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.ObserveFetchDuration("redis", time.Since(start))
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	fields, err := s.fetchFields(fetchCtx, resourceID)
	if err != nil {
		s.metrics.RecordStoreError("redis")
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("sharing store fetch failed",
			observability.String("resourceId", resourceID),
			observability.Error(err))
		return nil, &StoreError{Op: "fetch", Cause: err}
	}

	if len(fields) == 0 {
		span.SetAttributes(attribute.Int("sharing.record_count", 0))
		return nil, ErrRecordNotFound
	}

	records, err := decodeRecords(resourceID, fields)
	if err != nil {
		s.metrics.RecordStoreError("redis")
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("sharing store returned malformed records",
			observability.String("resourceId", resourceID),
			observability.Error(err))
		return nil, &StoreError{Op: "decode", Cause: err}
	}

	span.SetAttributes(attribute.Int("sharing.record_count", len(records)))
	return records, nil
}

// fetchFields runs the HGETALL, through the breaker when enabled.
func (s *redisStore) fetchFields(ctx context.Context, resourceID string) (map[string]string, error) {
	if s.breaker == nil {
		return s.client.HGetAll(ctx, s.key(resourceID)).Result()
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.HGetAll(ctx, s.key(resourceID)).Result()
	})
	if err != nil {
		return nil, err
	}

	fields, ok := result.(map[string]string)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return fields, nil
}

// decodeRecords unmarshals hash fields into records. A malformed field
// poisons the whole read: a partially readable sharing picture must not
// grant access.
func decodeRecords(resourceID string, fields map[string]string) ([]Record, error) {
	records := make([]Record, 0, len(fields))
	for consumer, value := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return nil, fmt.Errorf("malformed record for consumer %q: %v", consumer, err)
		}
		if rec.ResourceID == "" {
			rec.ResourceID = resourceID
		}
		if rec.ConsumerTenantID == "" {
			rec.ConsumerTenantID = consumer
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping implements Store.
func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
