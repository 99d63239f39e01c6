package interceptor

import (
	"bytes"
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/toolgate/internal/auth"
	"github.com/vyrodovalexey/toolgate/internal/authz"
	"github.com/vyrodovalexey/toolgate/internal/mcp"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

var serviceTracer = otel.Tracer("toolgate/interceptor")

// Hook names and outcomes used in metrics and spans.
const (
	hookRequest  = "request"
	hookResponse = "response"

	outcomePass      = "pass"
	outcomeDeny      = "deny"
	outcomeFiltered  = "filtered"
	outcomeMalformed = "malformed"
)

// Service runs the authorization pipeline behind both hook endpoints.
type Service struct {
	builder    auth.Builder
	classifier *mcp.Classifier
	authorizer *authz.Authorizer
	filter     *authz.ResponseFilter
	logger     observability.Logger
	metrics    *Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger observability.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceMetrics sets the metrics recorder.
func WithServiceMetrics(metrics *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService wires the pipeline stages together.
func NewService(
	builder auth.Builder,
	classifier *mcp.Classifier,
	authorizer *authz.Authorizer,
	filter *authz.ResponseFilter,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		builder:    builder,
		classifier: classifier,
		authorizer: authorizer,
		filter:     filter,
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InterceptRequest authorizes an inbound MCP request. An allowed request
// comes back as a transformed request with headers and body untouched; a
// denied one comes back as a synthesized denial response. The hook never
// fails: payloads it cannot read are denied.
func (s *Service) InterceptRequest(ctx context.Context, payload *HookPayload) *HookOutput {
	ctx, span := serviceTracer.Start(ctx, "interceptor.request")
	defer span.End()
	ctx = observability.ContextWithSpanIDs(ctx, span)

	req := payload.request()
	if req == nil {
		s.metrics.RecordHook(hookRequest, outcomeMalformed)
		span.SetAttributes(attribute.String("hook.outcome", outcomeMalformed))
		s.logger.WithContext(ctx).Warn("request hook payload carries no gateway request, denying")
		return denyRequest(nil)
	}

	caller := s.builder.Build(ctx, req.Headers)
	parsed := s.classifier.ParseRequest(req.Body)
	decision := s.authorizer.Authorize(ctx, caller, parsed)

	if !decision.Allowed {
		s.metrics.RecordHook(hookRequest, outcomeDeny)
		span.SetAttributes(
			attribute.String("hook.outcome", outcomeDeny),
			attribute.String("hook.reason", decision.Reason),
		)
		return denyRequest(parsed.ID)
	}

	s.metrics.RecordHook(hookRequest, outcomePass)
	span.SetAttributes(
		attribute.String("hook.outcome", outcomePass),
		attribute.String("hook.reason", decision.Reason),
	)
	return passRequest(req)
}

// InterceptResponse rewrites tool listing responses down to what the
// caller's role may see. Responses that are not tool listings pass
// through byte for byte. Identity comes from the intercepted request
// headers; the response itself never carries credentials.
func (s *Service) InterceptResponse(ctx context.Context, payload *HookPayload) *HookOutput {
	ctx, span := serviceTracer.Start(ctx, "interceptor.response")
	defer span.End()
	ctx = observability.ContextWithSpanIDs(ctx, span)

	resp := payload.response()
	if resp == nil {
		s.metrics.RecordHook(hookResponse, outcomeMalformed)
		span.SetAttributes(attribute.String("hook.outcome", outcomeMalformed))
		s.logger.WithContext(ctx).Warn("response hook payload carries no gateway response")
		return transformResponse(nil, nil)
	}

	body, ok := mcp.NormalizeBody(resp.Body)
	if !ok {
		// Unreadable bodies cannot be tool listings; forward them as-is.
		s.metrics.RecordHook(hookResponse, outcomePass)
		span.SetAttributes(attribute.String("hook.outcome", outcomePass))
		return transformResponse(resp, resp.Body)
	}

	caller := s.builder.Build(ctx, payload.requestHeaders())
	filtered := s.filter.FilterToolsList(body, caller.Role)

	outcome := outcomePass
	if !bytes.Equal(body, filtered) {
		outcome = outcomeFiltered
	}
	s.metrics.RecordHook(hookResponse, outcome)
	span.SetAttributes(
		attribute.String("hook.outcome", outcome),
		attribute.String("authz.role", caller.Role),
	)
	return transformResponse(resp, filtered)
}
