// Package auth builds per-call authorization contexts from bearer tokens.
// Token verification failures never abort the pipeline; they resolve to
// the lowest-privilege context.
package auth

// RoleGuest is the lowest-privilege role, assigned whenever identity
// cannot be established or the role claim is absent.
const RoleGuest = "guest"

// Context carries the verified caller identity for a single call. It is
// built fresh per call and never persisted.
type Context struct {
	// Subject is the unique identifier for the caller.
	Subject string

	// TenantID is the caller's tenant in multi-tenant deployments.
	TenantID string

	// Role is the caller's role for permission table lookups.
	Role string
}

// Anonymous returns the lowest-privilege context.
func Anonymous() Context {
	return Context{Role: RoleGuest}
}

// IsAnonymous reports whether the context carries no verified subject.
func (c Context) IsAnonymous() bool {
	return c.Subject == ""
}
