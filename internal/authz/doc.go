// Package authz decides whether a classified MCP call may proceed and
// filters tool listings down to what the caller's role may see. Every
// failure path folds into a deny: the package never lets an error
// escalate into an implicit allow.
package authz
