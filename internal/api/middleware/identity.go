// Package middleware provides HTTP middleware components for the Chronicler API.
package middleware

import (
	"context"
	"time"
)

// Roles assigned to authenticated callers.
//
// RoleAdmin unlocks mutating dashboard operations (alert acknowledgement).
// RoleReadOnly is the default for any authenticated caller whose token does
// not carry an explicit role claim.
const (
	RoleAdmin    = "admin"
	RoleReadOnly = "read-only"
)

// identityContextKey is the context key for authenticated caller information.
// Using a struct type ensures type safety and prevents collisions with other context keys.
type identityContextKey struct{}

// Identity contains authenticated caller information enriched in the request context.
// This context is added by the authentication middleware after successful
// JWT or service token validation.
type Identity struct {
	// Subject is the authenticated principal (JWT "sub" claim, or a fixed
	// subject for service tokens and the development bypass)
	Subject string

	// Role is the authorization role granted to this caller (RoleAdmin or RoleReadOnly)
	Role string

	// Method records how the caller authenticated ("jwt", "service_token", "dev_bypass")
	Method string

	// AuthTime is the timestamp when authentication occurred (for latency tracking)
	AuthTime time.Time
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// GetIdentity extracts the caller identity from the request context.
// Returns (identity, true) if authenticated, (empty, false) if not found.
//
// Example usage:
//
//	identity, authenticated := middleware.GetIdentity(r.Context())
//	if !authenticated || !identity.IsAdmin() {
//	    // Reject the mutating request
//	    return
//	}
func GetIdentity(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)

	return identity, ok
}

// SetIdentity adds caller identity to the request context.
// Returns a new context with the identity attached.
//
// This function is used by the authentication middleware to enrich the request
// context after successful token validation.
func SetIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}
