// Package interceptor implements the gateway hook endpoints. The inbound
// hook authorizes MCP requests before the gateway forwards them; the
// outbound hook filters tool listings before the gateway returns them.
// Every handler answers with a schema-tagged hook output, panics and
// malformed payloads included.
package interceptor
