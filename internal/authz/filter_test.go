package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolsListBody struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Result  struct {
		Tools      []map[string]any `json:"tools"`
		NextCursor string           `json:"nextCursor"`
	} `json:"result"`
}

func decodeListing(t *testing.T, body json.RawMessage) toolsListBody {
	t.Helper()

	var listing toolsListBody
	require.NoError(t, json.Unmarshal(body, &listing))
	return listing
}

func toolNames(listing toolsListBody) []string {
	names := make([]string, 0, len(listing.Result.Tools))
	for _, tool := range listing.Result.Tools {
		if name, ok := tool["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

const sampleListing = `{
	"jsonrpc": "2.0",
	"id": 42,
	"result": {
		"tools": [
			{"name": "retrieve_doc", "description": "Fetch a document", "inputSchema": {"type": "object", "properties": {"resource_id": {"type": "string"}}}},
			{"name": "docs-gw___list_tools", "description": "List tools"},
			{"name": "delete_data_source", "description": "Drop a data source"}
		],
		"nextCursor": "page-2"
	}
}`

func newTestFilter() *ResponseFilter {
	return NewResponseFilter(NewPermissionTable(defaultPermissions()))
}

func TestResponseFilter_FiltersByRole(t *testing.T) {
	t.Parallel()

	filtered := newTestFilter().FilterToolsList(json.RawMessage(sampleListing), "user")
	listing := decodeListing(t, filtered)

	assert.Equal(t, []string{"retrieve_doc", "docs-gw___list_tools"}, toolNames(listing))
	assert.Equal(t, "2.0", listing.JSONRPC)
	assert.Equal(t, 42, listing.ID)
	assert.Equal(t, "page-2", listing.Result.NextCursor)

	// Kept entries keep their full shape, schema included.
	schema, ok := listing.Result.Tools[0]["inputSchema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
}

func TestResponseFilter_WildcardKeepsAll(t *testing.T) {
	t.Parallel()

	filtered := newTestFilter().FilterToolsList(json.RawMessage(sampleListing), "admin")
	listing := decodeListing(t, filtered)

	assert.Len(t, listing.Result.Tools, 3)
}

func TestResponseFilter_UnknownRolesSeeNothing(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"guest", "", "auditor"} {
		t.Run("role "+role, func(t *testing.T) {
			t.Parallel()

			filtered := newTestFilter().FilterToolsList(json.RawMessage(sampleListing), role)
			listing := decodeListing(t, filtered)

			assert.Empty(t, listing.Result.Tools)
			assert.NotNil(t, listing.Result.Tools)
			assert.Equal(t, 42, listing.ID)
		})
	}
}

func TestResponseFilter_DropsUnreadableEntries(t *testing.T) {
	t.Parallel()

	body := `{
		"jsonrpc": "2.0",
		"id": 1,
		"result": {
			"tools": [
				{"name": "retrieve_doc"},
				{"description": "no name at all"},
				{"name": ""},
				42,
				"just a string"
			]
		}
	}`

	filtered := newTestFilter().FilterToolsList(json.RawMessage(body), "admin")
	listing := decodeListing(t, filtered)

	assert.Equal(t, []string{"retrieve_doc"}, toolNames(listing))
}

func TestResponseFilter_PassesThroughNonListings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "error envelope",
			body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`,
		},
		{
			name: "result without tools",
			body: `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"hi"}]}}`,
		},
		{
			name: "scalar result",
			body: `{"jsonrpc":"2.0","id":1,"result":"pong"}`,
		},
		{
			name: "array body",
			body: `[1,2,3]`,
		},
		{
			name: "not json",
			body: `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := json.RawMessage(tt.body)
			out := newTestFilter().FilterToolsList(in, "guest")
			assert.Equal(t, string(in), string(out))
		})
	}
}

func TestResponseFilter_UnreadableCollectionEmptied(t *testing.T) {
	t.Parallel()

	body := `{"jsonrpc":"2.0","id":9,"result":{"tools":"oops","nextCursor":"page-2"}}`

	filtered := newTestFilter().FilterToolsList(json.RawMessage(body), "admin")
	listing := decodeListing(t, filtered)

	assert.Empty(t, listing.Result.Tools)
	assert.NotNil(t, listing.Result.Tools)
	assert.Equal(t, 9, listing.ID)
	assert.Equal(t, "page-2", listing.Result.NextCursor)
}

func TestResponseFilter_PrefixedNamesMatchTable(t *testing.T) {
	t.Parallel()

	table := NewPermissionTable(map[string][]string{
		"user": {"retrieve_doc"},
	})
	filter := NewResponseFilter(table)

	body := `{"jsonrpc":"2.0","id":1,"result":{"tools":[
		{"name": "docs-gw___retrieve_doc"},
		{"name": "docs-gw___delete_data_source"}
	]}}`

	listing := decodeListing(t, filter.FilterToolsList(json.RawMessage(body), "user"))
	assert.Equal(t, []string{"docs-gw___retrieve_doc"}, toolNames(listing))
}
