package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
)

// staticLinkStore serves one link share for issuer-backed middleware tests
type staticLinkStore struct {
	share *sharing.SharePermission
}

func (s *staticLinkStore) GrantShare(_ context.Context, _ *sharing.SharePermission) error { return nil }
func (s *staticLinkStore) RevokeShare(_ context.Context, _ string, _ int64) error         { return nil }

func (s *staticLinkStore) ListSharesForResource(_ context.Context, _ string, _ resources.ResourceType, _ string) ([]*sharing.SharePermission, error) {
	return nil, nil
}

func (s *staticLinkStore) GetShareForPrincipal(_ context.Context, _ string, _ resources.ResourceType, _ string, _ sharing.Scope, _ string) (*sharing.SharePermission, error) {
	return nil, sharing.ErrShareNotFound
}

func (s *staticLinkStore) UpsertLinkShare(_ context.Context, share *sharing.SharePermission) error {
	s.share = share
	return nil
}

func (s *staticLinkStore) GetLinkShareByToken(_ context.Context, token string) (*sharing.SharePermission, error) {
	if s.share != nil && s.share.LinkToken != nil && *s.share.LinkToken == token {
		return s.share, nil
	}
	return nil, sharing.ErrInvalidLink
}

func (s *staticLinkStore) DeleteExpiredLinkShares(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newAuthMiddleware(store sharing.Store) *AuthMiddleware {
	return NewAuthMiddleware(sharing.NewIssuer(store, testLogger(), nil), testLogger())
}

func TestAuthMiddleware_PrincipalFromHeaders(t *testing.T) {
	var captured *auth.Principal
	handler := newAuthMiddleware(&staticLinkStore{}).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetPrincipal(r)
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/directories", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserEmail, "amy@acme.com")
	req.Header.Set(HeaderUserDomain, "acme.com")
	req.Header.Set(HeaderDomainAdmin, "true")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "u1", captured.UserID)
	assert.True(t, captured.IsDomainAdmin)
}

func TestAuthMiddleware_RejectsAnonymous(t *testing.T) {
	handler := newAuthMiddleware(&staticLinkStore{}).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/directories", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_LinkToken(t *testing.T) {
	store := &staticLinkStore{}
	issuer := sharing.NewIssuer(store, testLogger(), nil)
	token, err := issuer.CreateOrRotate(context.Background(), "acme.com", resources.TypeDirectory, "d1", auth.RoleViewer, nil, "u1")
	require.NoError(t, err)

	var captured *sharing.LinkGrant
	handler := NewAuthMiddleware(issuer, testLogger()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetLinkGrant(r)
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("valid token via header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/directories/d1", nil)
		req.Header.Set(HeaderShareToken, token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, auth.RoleViewer, captured.Role)
	})

	t.Run("valid token via query param", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/directories/d1?share_token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/directories/d1", nil)
		req.Header.Set(HeaderShareToken, "bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
