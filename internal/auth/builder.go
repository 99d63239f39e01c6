package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// Builder derives an authorization context from request headers.
type Builder interface {
	// Build verifies the bearer token in headers and returns the caller's
	// context. Build never fails: a missing, malformed, expired, or
	// unverifiable token resolves to the anonymous context.
	Build(ctx context.Context, headers map[string]string) Context
}

// BuilderConfig configures token verification.
type BuilderConfig struct {
	// Issuer is the required iss claim. Empty disables the check.
	Issuer string

	// Audience is the required aud claim. Empty disables the check.
	Audience string

	// RoleClaim names the claim carrying the caller's role.
	RoleClaim string

	// TenantClaim names the claim carrying the caller's tenant.
	TenantClaim string

	// Algorithms lists the accepted signing algorithms.
	Algorithms []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*tokenBuilder)

// WithLogger sets the logger used for verification failures.
func WithLogger(logger observability.Logger) BuilderOption {
	return func(b *tokenBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *Metrics) BuilderOption {
	return func(b *tokenBuilder) {
		b.metrics = metrics
	}
}

type tokenBuilder struct {
	config  BuilderConfig
	keys    KeyProvider
	logger  observability.Logger
	metrics *Metrics
}

var _ Builder = (*tokenBuilder)(nil)

// NewBuilder creates a Builder verifying tokens against keys.
func NewBuilder(config BuilderConfig, keys KeyProvider, opts ...BuilderOption) Builder {
	if config.RoleClaim == "" {
		config.RoleClaim = "role"
	}
	if config.TenantClaim == "" {
		config.TenantClaim = "tenant_id"
	}
	if len(config.Algorithms) == 0 {
		config.Algorithms = []string{"RS256"}
	}

	b := &tokenBuilder{
		config: config,
		keys:   keys,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *tokenBuilder) Build(ctx context.Context, headers map[string]string) Context {
	token, err := bearerToken(headers)
	if err != nil {
		b.metrics.RecordTokenVerification("absent")
		b.logger.Debug("no usable bearer token, continuing as guest",
			observability.Error(err))
		return Anonymous()
	}

	claims, err := b.verify(ctx, token)
	if err != nil {
		b.metrics.RecordTokenVerification("rejected")
		b.logger.Warn("token verification failed, continuing as guest",
			observability.Error(err))
		return Anonymous()
	}

	caller := b.contextFromClaims(claims)
	b.metrics.RecordTokenVerification("verified")
	return caller
}

// verify parses and validates the token, resolving the signing key
// through the key provider.
func (b *tokenBuilder) verify(ctx context.Context, token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(b.config.Algorithms),
		jwt.WithExpirationRequired(),
	}
	if b.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(b.config.Issuer))
	}
	if b.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(b.config.Audience))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return b.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

// contextFromClaims maps verified claims onto a caller context. A missing
// role claim downgrades to guest rather than failing.
func (b *tokenBuilder) contextFromClaims(claims jwt.MapClaims) Context {
	caller := Context{Role: RoleGuest}

	if sub, ok := claims["sub"].(string); ok {
		caller.Subject = sub
	}
	if tenant, ok := claims[b.config.TenantClaim].(string); ok {
		caller.TenantID = tenant
	}
	if role, ok := claims[b.config.RoleClaim].(string); ok && role != "" {
		caller.Role = role
	} else {
		b.logger.Debug("token carries no role claim, downgrading to guest",
			observability.String("subject", caller.Subject))
	}

	return caller
}

// bearerToken extracts the bearer token from headers. Header names are
// matched case-insensitively.
func bearerToken(headers map[string]string) (string, error) {
	var value string
	for name, v := range headers {
		if strings.EqualFold(name, "Authorization") {
			value = v
			break
		}
	}
	if value == "" {
		return "", ErrNoAuthorizationHeader
	}

	parts := strings.Fields(value)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedAuthorizationHeader
	}
	return parts[1], nil
}
