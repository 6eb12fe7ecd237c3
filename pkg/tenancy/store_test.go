package tenancy

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/pkg/auth"
)

func TestPostgresStore_EnsureDomain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO domains`)).
		WithArgs(sqlmock.AnyArg(), "acme.com", DomainStatusActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_at"}).
			AddRow("dom-1", "acme.com", "active", now))

	d, err := NewPostgresStore(db).EnsureDomain(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "dom-1", d.ID)
	assert.Equal(t, "acme.com", d.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, domain, slug, name, owner_user_id, admin_user_ids, status, created_at, updated_at FROM workspaces WHERE id = $1`)).
			WithArgs("ws1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "slug", "name", "owner_user_id", "admin_user_ids", "status", "created_at", "updated_at"}).
				AddRow("ws1", "acme.com", "eng", "Engineering", "u1", []byte(`["u1","u2"]`), "active", now, now))

		ws, err := store.GetWorkspace(context.Background(), "ws1")
		require.NoError(t, err)
		assert.Equal(t, "eng", ws.Slug)
		assert.Equal(t, []string{"u1", "u2"}, ws.AdminUserIDs)
		assert.True(t, ws.IsAdmin("u2"))
		assert.False(t, ws.IsAdmin("u3"))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM workspaces WHERE id = $1`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "domain", "slug", "name", "owner_user_id", "admin_user_ids", "status", "created_at", "updated_at"}))

		_, err := store.GetWorkspace(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWorkspace_DuplicateSlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO workspaces`)).
		WillReturnError(&pq.Error{Code: "23505"})

	ws := &Workspace{Domain: "acme.com", Slug: "eng", Name: "Engineering", OwnerUserID: "u1"}
	err = NewPostgresStore(db).CreateWorkspace(context.Background(), ws)
	assert.ErrorIs(t, err, ErrWorkspaceExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddMembership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO workspace_memberships`)).
		WithArgs("ws1", "u1", auth.WorkspaceRoleEditor, nil, MembershipStatusActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	m := &WorkspaceMembership{WorkspaceID: "ws1", UserID: "u1", Role: auth.WorkspaceRoleEditor}
	require.NoError(t, NewPostgresStore(db).AddMembership(context.Background(), m))
	assert.Equal(t, int64(7), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActiveMemberships(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM workspace_memberships
		WHERE user_id = $1 AND status = 'active' ORDER BY joined_at`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "user_id", "role", "invited_by", "status", "joined_at"}).
			AddRow(int64(1), "ws1", "u1", "editor", nil, "active", now).
			AddRow(int64(2), "ws2", "u1", "viewer", "u9", "active", now))

	memberships, err := NewPostgresStore(db).ListActiveMemberships(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, "ws1", memberships[0].WorkspaceID)
	require.NotNil(t, memberships[1].InvitedBy)
	assert.Equal(t, "u9", *memberships[1].InvitedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RevokeMembership_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE workspace_memberships SET status = 'revoked'`)).
		WithArgs("ws1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgresStore(db).RevokeMembership(context.Background(), "ws1", "u1")
	assert.ErrorIs(t, err, ErrMembershipNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUserTenantState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	legacy := []byte(`[{"slug":"eng","role":"member","active":true}]`)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, domain, is_domain_admin, default_workspace_id, legacy_workspaces
		FROM users WHERE id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "domain", "is_domain_admin", "default_workspace_id", "legacy_workspaces"}).
			AddRow("u1", "amy@acme.com", "acme.com", false, nil, legacy))

	st, err := NewPostgresStore(db).GetUserTenantState(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", st.Domain)
	assert.Nil(t, st.DefaultWorkspaceID)
	require.Len(t, st.LegacyWorkspaces, 1)
	assert.Equal(t, "eng", st.LegacyWorkspaces[0].Slug)
	assert.True(t, st.LegacyWorkspaces[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetDefaultWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET default_workspace_id = $2 WHERE id = $1`)).
		WithArgs("u1", "ws1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresStore(db).SetDefaultWorkspace(context.Background(), "u1", "ws1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
