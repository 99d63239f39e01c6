package authz

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/toolgate/internal/auth"
	"github.com/vyrodovalexey/toolgate/internal/mcp"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// authzTracer is the OTEL tracer used for authorization decisions.
var authzTracer = otel.Tracer("toolgate/authz")

// Decision reasons. Reasons stay in logs and metrics; callers only ever
// see the generic denial message.
const (
	ReasonLifecycle         = "lifecycle_bypass"
	ReasonSystemTool        = "system_tool_bypass"
	ReasonPassThrough       = "pass_through"
	ReasonRolePermitted     = "role_permitted"
	ReasonShared            = "shared"
	ReasonNoTool            = "no_tool"
	ReasonRoleNotPermitted  = "role_not_permitted"
	ReasonNotShared         = "not_shared"
	ReasonDependencyFailure = "dependency_failure"
)

// Decision is the outcome of authorizing one call.
type Decision struct {
	// Allowed indicates whether the call may proceed to the backend.
	Allowed bool

	// Reason names what produced the decision.
	Reason string

	// Kind is the envelope classification the decision was made under.
	Kind mcp.Kind

	// Tool is the prefix-stripped tool name, when the call carries one.
	Tool string
}

// SharingResolver answers cross-tenant resource sharing checks.
type SharingResolver interface {
	Resolve(ctx context.Context, resourceID, tenantID string) (bool, error)
}

// Authorizer runs the per-call decision pipeline: classify, check the
// role's static permissions, then check resource sharing when the call
// names a resource. It never fails open; dependency errors become
// denials.
type Authorizer struct {
	table       *PermissionTable
	resolver    SharingResolver
	resourceArg string
	logger      observability.Logger
	metrics     *Metrics
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithAuthorizerLogger sets the logger.
func WithAuthorizerLogger(logger observability.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthorizerMetrics sets the metrics recorder.
func WithAuthorizerMetrics(metrics *Metrics) AuthorizerOption {
	return func(a *Authorizer) {
		a.metrics = metrics
	}
}

// WithResourceArgument sets the tool argument that names a shared
// resource. Default: resource_id.
func WithResourceArgument(name string) AuthorizerOption {
	return func(a *Authorizer) {
		if name != "" {
			a.resourceArg = name
		}
	}
}

// NewAuthorizer creates an authorizer over the permission table and
// sharing resolver.
func NewAuthorizer(table *PermissionTable, resolver SharingResolver, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		table:       table,
		resolver:    resolver,
		resourceArg: "resource_id",
		logger:      observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize decides whether the call may proceed. It never returns an
// error: unknown states and dependency failures deny.
func (a *Authorizer) Authorize(ctx context.Context, caller auth.Context, req *mcp.Request) Decision {
	ctx, span := authzTracer.Start(ctx, "authz.authorize",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	decision := a.evaluate(ctx, caller, req)

	span.SetAttributes(
		attribute.String("authz.kind", decision.Kind.String()),
		attribute.String("authz.tool", decision.Tool),
		attribute.String("authz.role", caller.Role),
		attribute.Bool("authz.allowed", decision.Allowed),
		attribute.String("authz.reason", decision.Reason),
	)
	a.metrics.RecordDecision(decision.Allowed, decision.Reason)

	logger := a.logger.WithContext(ctx)
	if decision.Allowed {
		logger.Debug("call authorized",
			observability.String("kind", decision.Kind.String()),
			observability.String("tool", decision.Tool),
			observability.String("role", caller.Role),
			observability.String("reason", decision.Reason))
	} else {
		logger.Info("call denied",
			observability.String("kind", decision.Kind.String()),
			observability.String("tool", decision.Tool),
			observability.String("role", caller.Role),
			observability.String("tenantId", caller.TenantID),
			observability.String("reason", decision.Reason))
	}

	return decision
}

func (a *Authorizer) evaluate(ctx context.Context, caller auth.Context, req *mcp.Request) Decision {
	if req == nil {
		return Decision{Reason: ReasonNoTool, Kind: mcp.KindToolCall}
	}

	decision := Decision{Kind: req.Kind, Tool: req.ToolName}

	switch req.Kind {
	case mcp.KindLifecycle:
		decision.Allowed = true
		decision.Reason = ReasonLifecycle
		return decision

	case mcp.KindSystemTool:
		decision.Allowed = true
		decision.Reason = ReasonSystemTool
		return decision

	case mcp.KindToolList, mcp.KindOther:
		// Listings are filtered on the response side; other protocol
		// methods carry no tool semantics.
		decision.Allowed = true
		decision.Reason = ReasonPassThrough
		return decision
	}

	// Tool calls: a call whose tool cannot be identified is denied
	// before any table lookup, wildcard roles included.
	if req.ToolName == "" {
		decision.Reason = ReasonNoTool
		return decision
	}

	if !a.table.Allowed(caller.Role, req.ToolName) {
		decision.Reason = ReasonRoleNotPermitted
		return decision
	}

	resourceID, ok := req.StringArgument(a.resourceArg)
	if !ok {
		decision.Allowed = true
		decision.Reason = ReasonRolePermitted
		return decision
	}

	allowed, err := a.resolver.Resolve(ctx, resourceID, caller.TenantID)
	if err != nil {
		decision.Reason = ReasonDependencyFailure
		return decision
	}
	if !allowed {
		decision.Reason = ReasonNotShared
		return decision
	}

	decision.Allowed = true
	decision.Reason = ReasonShared
	return decision
}
