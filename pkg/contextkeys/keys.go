// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware
	// Required by: tenant middleware, all protected endpoints
	PrincipalKey Key = "principal"

	// TenantKey contains *tenancy.Context
	// Set by: middleware.TenantMiddleware after resolution
	// Required by: every resource handler
	TenantKey Key = "tenant_context"

	// LinkGrantKey contains *sharing.LinkGrant when the request carried a
	// valid link token
	// Set by: middleware.AuthMiddleware
	// Used by: access resolver for anonymous and token-bearing callers
	LinkGrantKey Key = "link_grant"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	RequestIDKey Key = "request_id"
)
