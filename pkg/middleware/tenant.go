package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/inkwell-hq/inkwell/pkg/contextkeys"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

// HeaderWorkspace carries an explicit per-request workspace override, by
// id or slug.
const HeaderWorkspace = "X-Workspace"

// TenantMiddleware establishes the tenant context for every request. Link
// callers short-circuit through the grant's domain; authenticated callers
// go through full resolution. A resolution yielding no workspace is not
// rejected here: individual handlers decide whether they need one.
type TenantMiddleware struct {
	resolver *tenancy.Resolver
	logger   *observability.Logger
}

// NewTenantMiddleware creates the tenant middleware
func NewTenantMiddleware(resolver *tenancy.Resolver, logger *observability.Logger) *TenantMiddleware {
	return &TenantMiddleware{resolver: resolver, logger: logger}
}

// Handler wraps an HTTP handler with tenant resolution
func (m *TenantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)

		if principal == nil {
			grant := GetLinkGrant(r)
			if grant == nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			tc := m.resolver.ResolveLink(grant.Domain)
			next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tc)))
			return
		}

		hint := r.Header.Get(HeaderWorkspace)
		if hint == "" {
			hint = r.URL.Query().Get("workspace")
		}

		tc, err := m.resolver.Resolve(r.Context(), principal, hint)
		if err != nil {
			switch {
			case errors.Is(err, tenancy.ErrWorkspaceNotFound):
				httputil.WriteError(w, http.StatusNotFound, err)
			case errors.Is(err, tenancy.ErrAccessDenied):
				httputil.WriteError(w, http.StatusForbidden, err)
			default:
				m.logger.WithError(err).Error("tenant resolution failed")
				httputil.WriteInternalError(w, err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tc)))
	})
}

func withTenant(ctx context.Context, tc *tenancy.Context) context.Context {
	return context.WithValue(ctx, contextkeys.TenantKey, tc)
}

// GetTenant extracts the tenant context from a request
func GetTenant(r *http.Request) *tenancy.Context {
	tc, _ := r.Context().Value(contextkeys.TenantKey).(*tenancy.Context)
	return tc
}

// RequireWorkspace rejects requests whose tenant context carries no
// workspace. Mounted on routes that cannot bootstrap without one.
func RequireWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := GetTenant(r)
		if tc == nil {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !tc.ViaLink {
			if err := tc.RequireWorkspace(); err != nil {
				httputil.WriteError(w, http.StatusPreconditionRequired, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
