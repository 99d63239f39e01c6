// Package mcp parses and classifies MCP JSON-RPC envelopes as they
// traverse the gateway.
package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind classifies a protocol envelope for authorization purposes.
type Kind int

const (
	// KindOther is any method without tool semantics.
	KindOther Kind = iota
	// KindLifecycle is a protocol handshake or heartbeat method.
	KindLifecycle
	// KindSystemTool is an invocation of a built-in gateway tool.
	KindSystemTool
	// KindToolCall is an invocation of a named tool.
	KindToolCall
	// KindToolList is a tool listing request.
	KindToolList
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindLifecycle:
		return "lifecycle"
	case KindSystemTool:
		return "system_tool"
	case KindToolCall:
		return "tool_call"
	case KindToolList:
		return "tool_list"
	default:
		return "other"
	}
}

// JSONRPCVersion is the protocol version carried on synthesized envelopes.
const JSONRPCVersion = "2.0"

// Methods with fixed classification.
const (
	MethodToolsCall = "tools/call"
	MethodToolsList = "tools/list"
)

// toolPrefixSeparator joins the gateway target name and the tool name in
// gateway-qualified tool identifiers ({target}___{tool}).
const toolPrefixSeparator = "___"

// StripToolPrefix reduces a gateway-qualified tool name to the bare tool
// name. Names without a prefix are returned unchanged.
func StripToolPrefix(name string) string {
	if idx := strings.LastIndex(name, toolPrefixSeparator); idx >= 0 {
		return name[idx+len(toolPrefixSeparator):]
	}
	return name
}

// Request is one parsed inbound envelope. It is transient and scoped to a
// single call.
type Request struct {
	JSONRPC   string
	Method    string
	ID        json.RawMessage
	Params    json.RawMessage
	ToolName  string
	Kind      Kind
	Malformed bool
}

// wireRequest is the JSON-RPC request shape on the wire.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      json.RawMessage `json:"id"`
	Params  json.RawMessage `json:"params"`
}

// wireParams is the tools/call params shape.
type wireParams struct {
	Name      string                     `json:"name"`
	Arguments map[string]json.RawMessage `json:"arguments"`
}

// StringArgument returns the named call argument when it carries a string
// or number value.
func (r *Request) StringArgument(key string) (string, bool) {
	if len(r.Params) == 0 {
		return "", false
	}

	var params wireParams
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return "", false
	}

	raw, ok := params.Arguments[key]
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}

	return "", false
}

// Classifier classifies envelopes using the configured method sets.
type Classifier struct {
	lifecycle map[string]struct{}
	system    map[string]struct{}
}

// NewClassifier creates a classifier from the lifecycle method and system
// tool allow-lists.
func NewClassifier(lifecycleMethods, systemTools []string) *Classifier {
	c := &Classifier{
		lifecycle: make(map[string]struct{}, len(lifecycleMethods)),
		system:    make(map[string]struct{}, len(systemTools)),
	}
	for _, m := range lifecycleMethods {
		c.lifecycle[m] = struct{}{}
	}
	for _, tool := range systemTools {
		c.system[StripToolPrefix(tool)] = struct{}{}
	}
	return c
}

// ParseRequest parses a request body into a Request. The body may be a
// JSON object or a JSON string containing a serialized object; both forms
// parse identically. An unparseable body yields a tool call with no tool
// name, which downstream policy denies; parsing never fails the pipeline.
func (c *Classifier) ParseRequest(raw json.RawMessage) *Request {
	body, ok := NormalizeBody(raw)
	if !ok {
		return &Request{Kind: KindToolCall, Malformed: true}
	}

	var wire wireRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return &Request{Kind: KindToolCall, Malformed: true}
	}

	req := &Request{
		JSONRPC: wire.JSONRPC,
		Method:  wire.Method,
		ID:      wire.ID,
		Params:  wire.Params,
	}

	if wire.Method == MethodToolsCall {
		var params wireParams
		if len(wire.Params) > 0 {
			if err := json.Unmarshal(wire.Params, &params); err == nil {
				req.ToolName = StripToolPrefix(params.Name)
			}
		}
	}

	req.Kind = c.classify(req.Method, req.ToolName)
	return req
}

// classify maps a method and stripped tool name onto a Kind.
func (c *Classifier) classify(method, toolName string) Kind {
	if _, ok := c.lifecycle[method]; ok {
		return KindLifecycle
	}

	switch method {
	case MethodToolsList:
		return KindToolList
	case MethodToolsCall:
		if _, ok := c.system[toolName]; ok {
			return KindSystemTool
		}
		return KindToolCall
	default:
		return KindOther
	}
}

// NormalizeBody unwraps a string-form body into the JSON text it
// contains. Object bodies are returned as-is. The second return value is
// false when the body is empty or the string form does not hold JSON.
func NormalizeBody(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] != '"' {
		return trimmed, true
	}

	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, false
	}

	body := bytes.TrimSpace([]byte(inner))
	if len(body) == 0 || !json.Valid(body) {
		return nil, false
	}
	return body, true
}
