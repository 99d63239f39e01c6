package authz

import (
	"encoding/json"

	"github.com/vyrodovalexey/toolgate/internal/mcp"
	"github.com/vyrodovalexey/toolgate/internal/observability"
)

// ResponseFilter rewrites tool listing responses so a caller only sees
// the tools its role may invoke. Entries and envelope fields it does not
// understand are spliced through unmodified; only the tool collection
// changes.
type ResponseFilter struct {
	table   *PermissionTable
	logger  observability.Logger
	metrics *Metrics
}

// FilterOption configures a ResponseFilter.
type FilterOption func(*ResponseFilter)

// WithFilterLogger sets the logger.
func WithFilterLogger(logger observability.Logger) FilterOption {
	return func(f *ResponseFilter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFilterMetrics sets the metrics recorder.
func WithFilterMetrics(metrics *Metrics) FilterOption {
	return func(f *ResponseFilter) {
		f.metrics = metrics
	}
}

// NewResponseFilter creates a filter over the permission table.
func NewResponseFilter(table *PermissionTable, opts ...FilterOption) *ResponseFilter {
	f := &ResponseFilter{
		table:  table,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FilterToolsList filters the tool collection of a listing response down
// to the tools role may invoke. Responses that do not carry a
// result.tools collection pass through untouched. A listing that cannot
// be filtered safely comes back with an empty collection.
func (f *ResponseFilter) FilterToolsList(body json.RawMessage, role string) json.RawMessage {
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}

	resultRaw, ok := envelope["result"]
	if !ok {
		return body
	}

	result := map[string]json.RawMessage{}
	if err := json.Unmarshal(resultRaw, &result); err != nil {
		return body
	}

	toolsRaw, ok := result["tools"]
	if !ok {
		return body
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(toolsRaw, &entries); err != nil {
		f.metrics.RecordFilterFault()
		f.logger.Warn("tool collection unreadable, emptying it",
			observability.String("role", role),
			observability.Error(err))
		return f.splice(envelope, result, nil)
	}

	kept := f.keepPermitted(entries, role)

	f.metrics.RecordFilterEntries(len(kept), len(entries)-len(kept))
	f.logger.Debug("tool listing filtered",
		observability.String("role", role),
		observability.Int("total", len(entries)),
		observability.Int("kept", len(kept)))

	return f.splice(envelope, result, kept)
}

// keepPermitted returns the entries whose prefix-stripped name the role
// may invoke. Entries without a readable name are dropped.
func (f *ResponseFilter) keepPermitted(entries []json.RawMessage, role string) []json.RawMessage {
	wildcard := f.table.HasWildcard(role)

	kept := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		var peek struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(entry, &peek); err != nil || peek.Name == "" {
			continue
		}
		if wildcard || f.table.Allowed(role, mcp.StripToolPrefix(peek.Name)) {
			kept = append(kept, entry)
		}
	}
	return kept
}

// splice rebuilds the envelope with the kept entries in place of the
// original collection. When even that fails, a minimal listing envelope
// with an empty collection is emitted rather than the unfiltered body.
func (f *ResponseFilter) splice(envelope, result map[string]json.RawMessage, kept []json.RawMessage) json.RawMessage {
	if kept == nil {
		kept = []json.RawMessage{}
	}

	toolsJSON, err := json.Marshal(kept)
	if err == nil {
		result["tools"] = toolsJSON
		if resultJSON, err := json.Marshal(result); err == nil {
			envelope["result"] = resultJSON
			if out, err := json.Marshal(envelope); err == nil {
				return out
			}
		}
	}

	f.metrics.RecordFilterFault()
	f.logger.Error("failed to rebuild tool listing, emitting empty collection")
	return emptyToolsBody(envelope["id"])
}

// emptyToolsBody builds a listing envelope with no tools.
func emptyToolsBody(id json.RawMessage) json.RawMessage {
	if len(id) == 0 || !json.Valid(id) {
		id = json.RawMessage("null")
	}

	body, _ := json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  struct {
			Tools []json.RawMessage `json:"tools"`
		} `json:"result"`
	}{
		JSONRPC: mcp.JSONRPCVersion,
		ID:      id,
		Result: struct {
			Tools []json.RawMessage `json:"tools"`
		}{Tools: []json.RawMessage{}},
	})
	return body
}
