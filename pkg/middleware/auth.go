package middleware

import (
	"context"
	"net/http"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/contextkeys"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
)

// Identity headers set by the authenticating reverse proxy. Token issuance
// and verification happen upstream; by the time a request reaches this
// service the headers are trusted.
const (
	HeaderUserID      = "X-User-Id"
	HeaderUserEmail   = "X-User-Email"
	HeaderUserDomain  = "X-User-Domain"
	HeaderDomainAdmin = "X-Domain-Admin"
	HeaderShareToken  = "X-Share-Token"
)

// AuthMiddleware builds the request principal from identity headers and
// resolves a share-link token when one is presented. Requests carrying
// neither are rejected; a valid link token alone is enough.
type AuthMiddleware struct {
	links  *sharing.Issuer
	logger *observability.Logger
}

// NewAuthMiddleware creates the authentication middleware
func NewAuthMiddleware(links *sharing.Issuer, logger *observability.Logger) *AuthMiddleware {
	return &AuthMiddleware{links: links, logger: logger}
}

// Handler wraps an HTTP handler with principal and link-grant extraction
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := r.Header.Get(HeaderShareToken)
		if token == "" {
			token = r.URL.Query().Get("share_token")
		}
		if token != "" {
			grant, err := m.links.Resolve(ctx, token)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, err)
				return
			}
			ctx = context.WithValue(ctx, contextkeys.LinkGrantKey, grant)
		}

		principal := principalFromHeaders(r)
		if principal == nil && token == "" {
			httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if principal != nil {
			ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
			ctx = observability.WithUserID(ctx, principal.UserID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromHeaders(r *http.Request) *auth.Principal {
	userID := r.Header.Get(HeaderUserID)
	domain := r.Header.Get(HeaderUserDomain)
	if userID == "" || domain == "" {
		return nil
	}
	return &auth.Principal{
		UserID:        userID,
		Email:         r.Header.Get(HeaderUserEmail),
		Domain:        domain,
		IsDomainAdmin: r.Header.Get(HeaderDomainAdmin) == "true",
	}
}

// GetPrincipal extracts the principal from a request, nil for link-only
// callers
func GetPrincipal(r *http.Request) *auth.Principal {
	principal, _ := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
	return principal
}

// GetLinkGrant extracts the link grant from a request, nil when the
// request carried no token
func GetLinkGrant(r *http.Request) *sharing.LinkGrant {
	grant, _ := r.Context().Value(contextkeys.LinkGrantKey).(*sharing.LinkGrant)
	return grant
}
