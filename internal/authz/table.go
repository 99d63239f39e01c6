package authz

import (
	"github.com/vyrodovalexey/toolgate/internal/mcp"
)

// Wildcard grants a role every tool.
const Wildcard = "*"

// PermissionTable maps roles to the tools they may invoke. It is
// immutable after construction; lookups are safe for concurrent use.
type PermissionTable struct {
	tools     map[string]map[string]struct{}
	wildcards map[string]struct{}
	ordered   map[string][]string
}

// NewPermissionTable builds a table from role to tool-name lists. Tool
// names are normalized to their prefix-stripped form so gateway-qualified
// and bare names resolve identically.
func NewPermissionTable(permissions map[string][]string) *PermissionTable {
	t := &PermissionTable{
		tools:     make(map[string]map[string]struct{}, len(permissions)),
		wildcards: make(map[string]struct{}),
		ordered:   make(map[string][]string, len(permissions)),
	}

	for role, tools := range permissions {
		set := make(map[string]struct{}, len(tools))
		ordered := make([]string, 0, len(tools))
		for _, tool := range tools {
			if tool == Wildcard {
				t.wildcards[role] = struct{}{}
				continue
			}
			name := mcp.StripToolPrefix(tool)
			if _, seen := set[name]; seen {
				continue
			}
			set[name] = struct{}{}
			ordered = append(ordered, name)
		}
		t.tools[role] = set
		t.ordered[role] = ordered
	}

	return t
}

// Allowed reports whether role may invoke tool. Unknown roles have an
// empty tool set.
func (t *PermissionTable) Allowed(role, tool string) bool {
	if t.HasWildcard(role) {
		return true
	}
	_, ok := t.tools[role][tool]
	return ok
}

// HasWildcard reports whether role is granted every tool.
func (t *PermissionTable) HasWildcard(role string) bool {
	_, ok := t.wildcards[role]
	return ok
}

// Tools returns the tools granted to role, in configuration order. The
// wildcard is not expanded; callers check HasWildcard first.
func (t *PermissionTable) Tools(role string) []string {
	tools := t.ordered[role]
	out := make([]string, len(tools))
	copy(out, tools)
	return out
}
