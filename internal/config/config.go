// Package config provides configuration management for the interceptor
// service. Configuration is loaded from a YAML file with environment
// variable substitution, then validated before use.
package config

import "time"

// Config holds all configuration for the interceptor service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Authz         AuthzConfig         `yaml:"authz"`
	Sharing       SharingConfig       `yaml:"sharing"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Issuer       string   `yaml:"issuer"`
	Audience     string   `yaml:"audience"`
	JWKSURL      string   `yaml:"jwksURL"`
	JWKSCacheTTL Duration `yaml:"jwksCacheTTL"`
	FetchTimeout Duration `yaml:"fetchTimeout"`
	RoleClaim    string   `yaml:"roleClaim"`
	TenantClaim  string   `yaml:"tenantClaim"`
	Algorithms   []string `yaml:"algorithms"`
}

// AuthzConfig holds the static permission table and method classification
// sets.
type AuthzConfig struct {
	Permissions      map[string][]string `yaml:"permissions"`
	LifecycleMethods []string            `yaml:"lifecycleMethods"`
	SystemTools      []string            `yaml:"systemTools"`
	ResourceArgument string              `yaml:"resourceArgument"`
}

// SharingConfig holds sharing store and decision cache settings.
type SharingConfig struct {
	Backend         string         `yaml:"backend"`
	Redis           RedisConfig    `yaml:"redis"`
	FetchTimeout    Duration       `yaml:"fetchTimeout"`
	CacheTTL        Duration       `yaml:"cacheTTL"`
	CacheMaxEntries int            `yaml:"cacheMaxEntries"`
	Breaker         BreakerConfig  `yaml:"breaker"`
	StaticRecords   []StaticRecord `yaml:"staticRecords"`
}

// Sharing store backends.
const (
	SharingBackendRedis  = "redis"
	SharingBackendStatic = "static"
)

// RedisConfig holds redis connection settings for the sharing store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// BreakerConfig holds circuit breaker settings for sharing store reads.
type BreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`
	MaxRequests         uint32   `yaml:"maxRequests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutiveFailures"`
}

// StaticRecord seeds the static sharing store backend.
type StaticRecord struct {
	ResourceID       string `yaml:"resourceId"`
	OwnerTenantID    string `yaml:"ownerTenantId"`
	ConsumerTenantID string `yaml:"consumerTenantId"`
	Visibility       string `yaml:"visibility"`
	Status           string `yaml:"status"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"logLevel"`
	LogFormat      string  `yaml:"logFormat"`
	TracingEnabled bool    `yaml:"tracingEnabled"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint"`
	SamplingRate   float64 `yaml:"samplingRate"`
}

// DefaultConfig returns a configuration populated with defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields with default values.
func (c *Config) SetDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8085"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(10 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(15 * time.Second)
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}

	if c.Auth.JWKSCacheTTL == 0 {
		c.Auth.JWKSCacheTTL = Duration(10 * time.Minute)
	}
	if c.Auth.FetchTimeout == 0 {
		c.Auth.FetchTimeout = Duration(2 * time.Second)
	}
	if c.Auth.RoleClaim == "" {
		c.Auth.RoleClaim = "role"
	}
	if c.Auth.TenantClaim == "" {
		c.Auth.TenantClaim = "tenant_id"
	}
	if len(c.Auth.Algorithms) == 0 {
		c.Auth.Algorithms = []string{"RS256"}
	}

	if c.Authz.Permissions == nil {
		c.Authz.Permissions = map[string][]string{
			"admin": {"*"},
			"user":  {"retrieve_doc", "list_tools"},
			"guest": {},
		}
	}
	if c.Authz.LifecycleMethods == nil {
		c.Authz.LifecycleMethods = []string{
			"initialize",
			"notifications/initialized",
			"ping",
		}
	}
	if c.Authz.SystemTools == nil {
		c.Authz.SystemTools = []string{"x_amz_bedrock_agentcore_search"}
	}
	if c.Authz.ResourceArgument == "" {
		c.Authz.ResourceArgument = "resource_id"
	}

	if c.Sharing.Backend == "" {
		c.Sharing.Backend = SharingBackendRedis
	}
	if c.Sharing.Redis.KeyPrefix == "" {
		c.Sharing.Redis.KeyPrefix = "toolgate:sharing"
	}
	if c.Sharing.FetchTimeout == 0 {
		c.Sharing.FetchTimeout = Duration(500 * time.Millisecond)
	}
	if c.Sharing.CacheTTL == 0 {
		c.Sharing.CacheTTL = Duration(60 * time.Second)
	}
	if c.Sharing.CacheMaxEntries == 0 {
		c.Sharing.CacheMaxEntries = 10000
	}
	if c.Sharing.Breaker.MaxRequests == 0 {
		c.Sharing.Breaker.MaxRequests = 1
	}
	if c.Sharing.Breaker.Interval == 0 {
		c.Sharing.Breaker.Interval = Duration(60 * time.Second)
	}
	if c.Sharing.Breaker.Timeout == 0 {
		c.Sharing.Breaker.Timeout = Duration(30 * time.Second)
	}
	if c.Sharing.Breaker.ConsecutiveFailures == 0 {
		c.Sharing.Breaker.ConsecutiveFailures = 5
	}

	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
	if c.Observability.SamplingRate == 0 {
		c.Observability.SamplingRate = 1.0
	}
}
