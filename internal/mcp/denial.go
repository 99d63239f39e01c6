package mcp

import "encoding/json"

// DeniedMessage is the single generic message returned to callers for
// every denied call. Denial reasons stay in logs and metrics.
const DeniedMessage = "Access denied"

type denialContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type denialResult struct {
	IsError bool            `json:"isError"`
	Content []denialContent `json:"content"`
}

type denialEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  denialResult    `json:"result"`
}

// DenialBody builds a protocol-valid denial envelope carrying the
// original correlation id. A missing or invalid id becomes JSON null.
func DenialBody(id json.RawMessage) json.RawMessage {
	if len(id) == 0 || !json.Valid(id) {
		id = json.RawMessage("null")
	}

	body, _ := json.Marshal(denialEnvelope{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result: denialResult{
			IsError: true,
			Content: []denialContent{{Type: "text", Text: DeniedMessage}},
		},
	})
	return body
}
