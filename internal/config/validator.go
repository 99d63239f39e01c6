package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates interceptor configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates an interceptor configuration.
func ValidateConfig(config *Config) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateAuth(&config.Auth)
	v.validateAuthz(&config.Authz)
	v.validateSharing(&config.Sharing)
	v.validateObservability(&config.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(server *ServerConfig) {
	if server.ListenAddr == "" {
		v.addError("server.listenAddr", "listen address is required")
	}
	if server.MaxBodyBytes < 0 {
		v.addError("server.maxBodyBytes", "must not be negative")
	}
}

func (v *Validator) validateAuth(auth *AuthConfig) {
	if auth.JWKSURL == "" && (auth.Issuer != "" || auth.Audience != "") {
		v.addError("auth.jwksURL", "jwksURL is required when issuer or audience is set")
	}
	if auth.FetchTimeout < 0 {
		v.addError("auth.fetchTimeout", "must not be negative")
	}
	for _, alg := range auth.Algorithms {
		switch alg {
		case "RS256", "RS384", "RS512":
		default:
			v.addError("auth.algorithms", fmt.Sprintf("unsupported algorithm %q", alg))
		}
	}
}

func (v *Validator) validateAuthz(authz *AuthzConfig) {
	if authz.ResourceArgument == "" {
		v.addError("authz.resourceArgument", "resource argument key is required")
	}
	for role, tools := range authz.Permissions {
		if role == "" {
			v.addError("authz.permissions", "role name must not be empty")
		}
		for _, tool := range tools {
			if tool == "" {
				v.addError("authz.permissions."+role, "tool name must not be empty")
			}
		}
	}
}

func (v *Validator) validateSharing(sharing *SharingConfig) {
	switch sharing.Backend {
	case SharingBackendRedis:
		if sharing.Redis.Addr == "" {
			v.addError("sharing.redis.addr", "redis address is required for the redis backend")
		}
	case SharingBackendStatic:
	default:
		v.addError("sharing.backend", fmt.Sprintf("unknown backend %q", sharing.Backend))
	}

	if sharing.FetchTimeout <= 0 {
		v.addError("sharing.fetchTimeout", "must be positive")
	}
	if sharing.CacheTTL <= 0 {
		v.addError("sharing.cacheTTL", "must be positive")
	}
	if sharing.CacheMaxEntries < 0 {
		v.addError("sharing.cacheMaxEntries", "must not be negative")
	}

	for i, record := range sharing.StaticRecords {
		path := fmt.Sprintf("sharing.staticRecords[%d]", i)
		if record.ResourceID == "" {
			v.addError(path+".resourceId", "resource id is required")
		}
		if record.OwnerTenantID == "" {
			v.addError(path+".ownerTenantId", "owner tenant id is required")
		}
		switch record.Visibility {
		case "", "public", "private", "owner_only":
		default:
			v.addError(path+".visibility", fmt.Sprintf("unknown visibility %q", record.Visibility))
		}
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig) {
	switch obs.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("observability.logLevel", fmt.Sprintf("unknown log level %q", obs.LogLevel))
	}
	switch obs.LogFormat {
	case "", "json", "console":
	default:
		v.addError("observability.logFormat", fmt.Sprintf("unknown log format %q", obs.LogFormat))
	}
	if obs.SamplingRate < 0 || obs.SamplingRate > 1 {
		v.addError("observability.samplingRate", "must be between 0 and 1")
	}
	if obs.TracingEnabled && obs.OTLPEndpoint == "" {
		v.addError("observability.otlpEndpoint", "endpoint is required when tracing is enabled")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
