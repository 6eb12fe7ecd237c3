package tenancy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/inkwell-hq/inkwell/pkg/auth"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a tenant store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureDomain creates the domain if it does not exist and returns it.
// Safe under concurrent first registrations from the same domain.
func (s *PostgresStore) EnsureDomain(ctx context.Context, name string) (*Domain, error) {
	query := `
		INSERT INTO domains (id, name, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, status, created_at`

	d := &Domain{}
	err := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), name, DomainStatusActive, time.Now(),
	).Scan(&d.ID, &d.Name, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure domain: %w", err)
	}
	return d, nil
}

// GetDomain retrieves a domain by name
func (s *PostgresStore) GetDomain(ctx context.Context, name string) (*Domain, error) {
	query := `SELECT id, name, status, created_at FROM domains WHERE name = $1`

	d := &Domain{}
	err := s.db.QueryRowContext(ctx, query, name).Scan(&d.ID, &d.Name, &d.Status, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("domain not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return d, nil
}

// CreateWorkspace inserts a workspace. Returns ErrWorkspaceExists when the
// slug is already taken in the domain.
func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	now := time.Now()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	if ws.Status == "" {
		ws.Status = WorkspaceStatusActive
	}

	adminIDs, err := json.Marshal(ws.AdminUserIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal admin user ids: %w", err)
	}

	query := `
		INSERT INTO workspaces (id, domain, slug, name, owner_user_id, admin_user_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		ws.ID, ws.Domain, ws.Slug, ws.Name, ws.OwnerUserID, adminIDs, ws.Status, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrWorkspaceExists
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

const workspaceColumns = `id, domain, slug, name, owner_user_id, admin_user_ids, status, created_at, updated_at`

func scanWorkspace(row interface{ Scan(...interface{}) error }) (*Workspace, error) {
	ws := &Workspace{}
	var adminIDs []byte
	err := row.Scan(&ws.ID, &ws.Domain, &ws.Slug, &ws.Name, &ws.OwnerUserID,
		&adminIDs, &ws.Status, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(adminIDs) > 0 {
		if err := json.Unmarshal(adminIDs, &ws.AdminUserIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal admin user ids: %w", err)
		}
	}
	return ws, nil
}

// GetWorkspace retrieves a workspace by id
func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE id = $1`

	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspaceBySlug retrieves a workspace by domain and slug
func (s *PostgresStore) GetWorkspaceBySlug(ctx context.Context, domain, slug string) (*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE domain = $1 AND slug = $2`

	ws, err := scanWorkspace(s.db.QueryRowContext(ctx, query, domain, slug))
	if err == sql.ErrNoRows {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace by slug: %w", err)
	}
	return ws, nil
}

// ListWorkspacesByDomain lists active workspaces in a domain
func (s *PostgresStore) ListWorkspacesByDomain(ctx context.Context, domain string) ([]*Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces
		WHERE domain = $1 AND status = 'active' ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// ArchiveWorkspace marks a workspace archived
func (s *PostgresStore) ArchiveWorkspace(ctx context.Context, id string) error {
	query := `UPDATE workspaces SET status = 'archived', updated_at = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to archive workspace: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

// AddMembership inserts a membership. Re-adding a revoked member
// reactivates the row with the new role.
func (s *PostgresStore) AddMembership(ctx context.Context, m *WorkspaceMembership) error {
	if m.Status == "" {
		m.Status = MembershipStatusActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}

	query := `
		INSERT INTO workspace_memberships (workspace_id, user_id, role, invited_by, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, joined_at = EXCLUDED.joined_at
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		m.WorkspaceID, m.UserID, m.Role, m.InvitedBy, m.Status, m.JoinedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

const membershipColumns = `id, workspace_id, user_id, role, invited_by, status, joined_at`

func scanMembership(row interface{ Scan(...interface{}) error }) (*WorkspaceMembership, error) {
	m := &WorkspaceMembership{}
	err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.InvitedBy, &m.Status, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMembership retrieves the active membership for a user in a workspace
func (s *PostgresStore) GetMembership(ctx context.Context, workspaceID, userID string) (*WorkspaceMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM workspace_memberships
		WHERE workspace_id = $1 AND user_id = $2 AND status = 'active'`

	m, err := scanMembership(s.db.QueryRowContext(ctx, query, workspaceID, userID))
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListActiveMemberships lists all active memberships for a user, oldest first
func (s *PostgresStore) ListActiveMemberships(ctx context.Context, userID string) ([]*WorkspaceMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM workspace_memberships
		WHERE user_id = $1 AND status = 'active' ORDER BY joined_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*WorkspaceMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListWorkspaceMembers lists all active members of a workspace
func (s *PostgresStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]*WorkspaceMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM workspace_memberships
		WHERE workspace_id = $1 AND status = 'active' ORDER BY joined_at`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace members: %w", err)
	}
	defer rows.Close()

	var members []*WorkspaceMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMembershipRole changes a member's workspace role
func (s *PostgresStore) UpdateMembershipRole(ctx context.Context, workspaceID, userID string, role auth.WorkspaceRole) error {
	query := `UPDATE workspace_memberships SET role = $3
		WHERE workspace_id = $1 AND user_id = $2 AND status = 'active'`

	result, err := s.db.ExecContext(ctx, query, workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// RevokeMembership marks a membership revoked
func (s *PostgresStore) RevokeMembership(ctx context.Context, workspaceID, userID string) error {
	query := `UPDATE workspace_memberships SET status = 'revoked'
		WHERE workspace_id = $1 AND user_id = $2 AND status = 'active'`

	result, err := s.db.ExecContext(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke membership: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// GetUserTenantState retrieves the tenant-relevant fields of a user record
func (s *PostgresStore) GetUserTenantState(ctx context.Context, userID string) (*UserTenantState, error) {
	query := `SELECT id, email, domain, is_domain_admin, default_workspace_id, legacy_workspaces
		FROM users WHERE id = $1`

	st := &UserTenantState{}
	var legacy []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&st.UserID, &st.Email, &st.Domain, &st.IsDomainAdmin, &st.DefaultWorkspaceID, &legacy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user tenant state: %w", err)
	}
	if len(legacy) > 0 {
		if err := json.Unmarshal(legacy, &st.LegacyWorkspaces); err != nil {
			return nil, fmt.Errorf("failed to unmarshal legacy workspaces: %w", err)
		}
	}
	return st, nil
}

// SetDefaultWorkspace writes the user's default workspace back onto the
// user record
func (s *PostgresStore) SetDefaultWorkspace(ctx context.Context, userID, workspaceID string) error {
	query := `UPDATE users SET default_workspace_id = $2 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to set default workspace: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// ListLegacyCarriers lists users whose legacy workspace list is non-empty
func (s *PostgresStore) ListLegacyCarriers(ctx context.Context, limit int) ([]*UserTenantState, error) {
	query := `SELECT id, email, domain, is_domain_admin, default_workspace_id, legacy_workspaces
		FROM users WHERE legacy_workspaces != '[]'::jsonb ORDER BY id LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy carriers: %w", err)
	}
	defer rows.Close()

	var carriers []*UserTenantState
	for rows.Next() {
		st := &UserTenantState{}
		var legacy []byte
		if err := rows.Scan(&st.UserID, &st.Email, &st.Domain, &st.IsDomainAdmin,
			&st.DefaultWorkspaceID, &legacy); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if len(legacy) > 0 {
			if err := json.Unmarshal(legacy, &st.LegacyWorkspaces); err != nil {
				return nil, fmt.Errorf("failed to unmarshal legacy workspaces: %w", err)
			}
		}
		carriers = append(carriers, st)
	}
	return carriers, rows.Err()
}

// ClearLegacyWorkspaces empties a user's legacy workspace list
func (s *PostgresStore) ClearLegacyWorkspaces(ctx context.Context, userID string) error {
	query := `UPDATE users SET legacy_workspaces = '[]'::jsonb WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear legacy workspaces: %w", err)
	}
	return nil
}
