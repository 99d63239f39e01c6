package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStaticConfig() *Config {
	cfg := DefaultConfig()
	cfg.Sharing.Backend = SharingBackendStatic
	return cfg
}

func TestValidateConfigNil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
}

func TestValidateConfigValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validStaticConfig()))
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing listen address",
			mutate:  func(c *Config) { c.Server.ListenAddr = "" },
			wantErr: "server.listenAddr",
		},
		{
			name: "issuer without jwks url",
			mutate: func(c *Config) {
				c.Auth.Issuer = "https://issuer.example.com"
				c.Auth.JWKSURL = ""
			},
			wantErr: "auth.jwksURL",
		},
		{
			name:    "unsupported algorithm",
			mutate:  func(c *Config) { c.Auth.Algorithms = []string{"HS256"} },
			wantErr: "auth.algorithms",
		},
		{
			name:    "unknown sharing backend",
			mutate:  func(c *Config) { c.Sharing.Backend = "dynamo" },
			wantErr: "sharing.backend",
		},
		{
			name:    "redis backend without addr",
			mutate:  func(c *Config) { c.Sharing.Backend = SharingBackendRedis },
			wantErr: "sharing.redis.addr",
		},
		{
			name:    "non-positive cache ttl",
			mutate:  func(c *Config) { c.Sharing.CacheTTL = Duration(-time.Second) },
			wantErr: "sharing.cacheTTL",
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Observability.SamplingRate = 1.5 },
			wantErr: "observability.samplingRate",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: "observability.logLevel",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "observability.logFormat",
		},
		{
			name: "tracing enabled without endpoint",
			mutate: func(c *Config) {
				c.Observability.TracingEnabled = true
				c.Observability.OTLPEndpoint = ""
			},
			wantErr: "observability.otlpEndpoint",
		},
		{
			name: "static record without resource id",
			mutate: func(c *Config) {
				c.Sharing.StaticRecords = []StaticRecord{{OwnerTenantID: "tenant-a"}}
			},
			wantErr: "resourceId",
		},
		{
			name: "static record with unknown visibility",
			mutate: func(c *Config) {
				c.Sharing.StaticRecords = []StaticRecord{{
					ResourceID:    "resource-001",
					OwnerTenantID: "tenant-a",
					Visibility:    "secret",
				}}
			},
			wantErr: "visibility",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validStaticConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorsAggregation(t *testing.T) {
	t.Parallel()

	cfg := validStaticConfig()
	cfg.Server.ListenAddr = ""
	cfg.Observability.SamplingRate = 2

	err := ValidateConfig(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "2 validation errors")
}
