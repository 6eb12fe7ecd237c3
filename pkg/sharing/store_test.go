package sharing

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

func TestPostgresStore_GrantShare(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO share_permissions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	principal := "u2"
	share := &SharePermission{
		Domain:       "acme.com",
		ResourceType: resources.TypeDirectory,
		ResourceID:   "d1",
		Scope:        ScopeUser,
		PrincipalID:  &principal,
		Role:         auth.RoleEditor,
		CreatedBy:    "u1",
	}
	require.NoError(t, NewPostgresStore(db).GrantShare(context.Background(), share))
	assert.Equal(t, int64(3), share.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetShareForPrincipal_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM share_permissions`)).
		WithArgs("acme.com", resources.TypeDirectory, "d1", ScopeUser, "u2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "resource_type", "resource_id", "scope", "principal_id", "link_token", "role", "expires_at", "created_by", "created_at"}))

	_, err = NewPostgresStore(db).GetShareForPrincipal(
		context.Background(), "acme.com", resources.TypeDirectory, "d1", ScopeUser, "u2")
	assert.ErrorIs(t, err, ErrShareNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLinkShare(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	token := "abc123"

	t.Run("delete then insert in one transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM share_permissions WHERE domain = $1 AND resource_type = $2 AND resource_id = $3 AND scope = 'link'`)).
			WithArgs("acme.com", resources.TypeDocument, "doc1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO share_permissions`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectCommit()

		share := &SharePermission{
			Domain:       "acme.com",
			ResourceType: resources.TypeDocument,
			ResourceID:   "doc1",
			LinkToken:    &token,
			Role:         auth.RoleViewer,
			CreatedBy:    "u1",
		}
		require.NoError(t, store.UpsertLinkShare(context.Background(), share))
		assert.Equal(t, int64(9), share.ID)
		assert.Equal(t, ScopeLink, share.Scope)
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM share_permissions`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO share_permissions`)).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		share := &SharePermission{
			Domain:       "acme.com",
			ResourceType: resources.TypeDocument,
			ResourceID:   "doc1",
			LinkToken:    &token,
			Role:         auth.RoleViewer,
		}
		assert.Error(t, store.UpsertLinkShare(context.Background(), share))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLinkShareByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	columns := []string{"id", "domain", "resource_type", "resource_id", "scope", "principal_id", "link_token", "role", "expires_at", "created_by", "created_at"}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE scope = 'link' AND link_token = $1`)).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(1), "acme.com", "directory", "d1", "link", nil, "tok", "viewer", nil, "u1", time.Now()))

		share, err := store.GetLinkShareByToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleViewer, share.Role)
	})

	t.Run("unknown token", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`link_token = $1`)).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := store.GetLinkShareByToken(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrInvalidLink)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredLinkShares(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM share_permissions WHERE scope = 'link' AND expires_at IS NOT NULL AND expires_at < $1`)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := NewPostgresStore(db).DeleteExpiredLinkShares(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
