package interceptor

import (
	"encoding/json"

	"github.com/vyrodovalexey/toolgate/internal/mcp"
)

// OutputVersion tags every hook output with the schema revision the
// gateway expects.
const OutputVersion = "1.0"

// HookPayload is the envelope the gateway posts to both hooks.
type HookPayload struct {
	MCP *HookMCP `json:"mcp"`
}

// HookMCP carries the intercepted exchange. The inbound hook fills only
// GatewayRequest; the outbound hook fills both, with the request reduced
// to its headers.
type HookMCP struct {
	GatewayRequest  *GatewayRequest  `json:"gatewayRequest,omitempty"`
	GatewayResponse *GatewayResponse `json:"gatewayResponse,omitempty"`
}

// GatewayRequest is the client request as the gateway saw it. Body may be
// a JSON object or a JSON string holding a serialized object.
type GatewayRequest struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// GatewayResponse is an upstream response, or a synthesized one when a
// hook denies the exchange.
type GatewayResponse struct {
	StatusCode int               `json:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
}

// HookOutput is the transformation returned to the gateway.
type HookOutput struct {
	InterceptorOutputVersion string        `json:"interceptorOutputVersion"`
	MCP                      HookOutputMCP `json:"mcp"`
}

// HookOutputMCP holds exactly one transformation. A transformed request
// lets the exchange continue; a transformed response short-circuits it.
type HookOutputMCP struct {
	TransformedGatewayRequest  *GatewayRequest  `json:"transformedGatewayRequest,omitempty"`
	TransformedGatewayResponse *GatewayResponse `json:"transformedGatewayResponse,omitempty"`
}

// request returns the gateway request, nil when the payload does not
// carry one.
func (p *HookPayload) request() *GatewayRequest {
	if p == nil || p.MCP == nil {
		return nil
	}
	return p.MCP.GatewayRequest
}

// response returns the gateway response, nil when the payload does not
// carry one.
func (p *HookPayload) response() *GatewayResponse {
	if p == nil || p.MCP == nil {
		return nil
	}
	return p.MCP.GatewayResponse
}

// requestHeaders returns the intercepted request headers, nil when absent.
func (p *HookPayload) requestHeaders() map[string]string {
	if req := p.request(); req != nil {
		return req.Headers
	}
	return nil
}

// passRequest forwards the request to the upstream unchanged.
func passRequest(req *GatewayRequest) *HookOutput {
	return &HookOutput{
		InterceptorOutputVersion: OutputVersion,
		MCP: HookOutputMCP{
			TransformedGatewayRequest: req,
		},
	}
}

// denyRequest short-circuits the exchange with a protocol-valid denial
// carrying the call's correlation id.
func denyRequest(id json.RawMessage) *HookOutput {
	return &HookOutput{
		InterceptorOutputVersion: OutputVersion,
		MCP: HookOutputMCP{
			TransformedGatewayResponse: &GatewayResponse{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       mcp.DenialBody(id),
			},
		},
	}
}

// transformResponse returns the response with body in place of the
// original one, status and headers preserved.
func transformResponse(resp *GatewayResponse, body json.RawMessage) *HookOutput {
	out := &GatewayResponse{Body: body}
	if resp != nil {
		out.StatusCode = resp.StatusCode
		out.Headers = resp.Headers
	}
	return &HookOutput{
		InterceptorOutputVersion: OutputVersion,
		MCP: HookOutputMCP{
			TransformedGatewayResponse: out,
		},
	}
}
