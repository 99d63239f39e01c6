package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultPermissions() map[string][]string {
	return map[string][]string{
		"admin": {"*"},
		"user":  {"retrieve_doc", "list_tools"},
		"guest": {},
	}
}

func TestPermissionTable_Allowed(t *testing.T) {
	t.Parallel()

	table := NewPermissionTable(defaultPermissions())

	tests := []struct {
		name string
		role string
		tool string
		want bool
	}{
		{"wildcard role any tool", "admin", "delete_data_source", true},
		{"wildcard role unknown tool", "admin", "made_up_tool", true},
		{"granted tool", "user", "retrieve_doc", true},
		{"ungranted tool", "user", "delete_data_source", false},
		{"empty role set", "guest", "retrieve_doc", false},
		{"unknown role", "operator", "retrieve_doc", false},
		{"empty role", "", "retrieve_doc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, table.Allowed(tt.role, tt.tool))
		})
	}
}

func TestPermissionTable_HasWildcard(t *testing.T) {
	t.Parallel()

	table := NewPermissionTable(defaultPermissions())

	assert.True(t, table.HasWildcard("admin"))
	assert.False(t, table.HasWildcard("user"))
	assert.False(t, table.HasWildcard("guest"))
	assert.False(t, table.HasWildcard("unknown"))
}

func TestPermissionTable_Tools(t *testing.T) {
	t.Parallel()

	table := NewPermissionTable(defaultPermissions())

	assert.Equal(t, []string{"retrieve_doc", "list_tools"}, table.Tools("user"))
	assert.Empty(t, table.Tools("guest"))
	assert.Empty(t, table.Tools("unknown"))

	// The wildcard marker itself never shows up as a tool.
	assert.Empty(t, table.Tools("admin"))

	// Returned slices are copies.
	tools := table.Tools("user")
	tools[0] = "mutated"
	assert.Equal(t, []string{"retrieve_doc", "list_tools"}, table.Tools("user"))
}

func TestPermissionTable_NormalizesPrefixedNames(t *testing.T) {
	t.Parallel()

	table := NewPermissionTable(map[string][]string{
		"user": {"docs-gw___retrieve_doc", "retrieve_doc", "list_tools"},
	})

	assert.True(t, table.Allowed("user", "retrieve_doc"))
	// The duplicate collapses into one entry.
	assert.Equal(t, []string{"retrieve_doc", "list_tools"}, table.Tools("user"))
}
