package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
)

// MigrationResult summarizes one migration pass
type MigrationResult struct {
	UsersProcessed     int `json:"users_processed"`
	MembershipsCreated int `json:"memberships_created"`
	EntriesSkipped     int `json:"entries_skipped"`
}

// Migrator converts legacy per-user workspace lists into normalized
// membership records. Safe to re-run: existing memberships are left alone
// and a user's legacy list is cleared only after every entry is accounted
// for.
type Migrator struct {
	store  Store
	logger *observability.Logger
}

// NewMigrator creates a legacy membership migrator
func NewMigrator(store Store, logger *observability.Logger) *Migrator {
	return &Migrator{store: store, logger: logger}
}

// Run migrates up to batchSize users carrying legacy entries. Returns the
// counts for the pass; callers loop until UsersProcessed is zero.
func (m *Migrator) Run(ctx context.Context, batchSize int) (*MigrationResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	carriers, err := m.store.ListLegacyCarriers(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy carriers: %w", err)
	}

	result := &MigrationResult{}
	for _, user := range carriers {
		created, skipped, err := m.migrateUser(ctx, user)
		if err != nil {
			m.logger.WithError(err).WithField("user_id", user.UserID).
				Warn("legacy workspace migration failed for user")
			continue
		}
		result.UsersProcessed++
		result.MembershipsCreated += created
		result.EntriesSkipped += skipped
	}
	return result, nil
}

func (m *Migrator) migrateUser(ctx context.Context, user *UserTenantState) (created, skipped int, err error) {
	for _, entry := range user.LegacyWorkspaces {
		if !entry.Active {
			skipped++
			continue
		}

		ws, err := m.resolveEntry(ctx, user.Domain, entry)
		if errors.Is(err, ErrWorkspaceNotFound) {
			// Entry points at a workspace that no longer exists; nothing
			// to carry over.
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, err
		}

		_, err = m.store.GetMembership(ctx, ws.ID, user.UserID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, ErrMembershipNotFound) {
			return created, skipped, fmt.Errorf("failed to check membership: %w", err)
		}

		membership := &WorkspaceMembership{
			WorkspaceID: ws.ID,
			UserID:      user.UserID,
			Role:        legacyRole(entry.Role),
			Status:      MembershipStatusActive,
		}
		if err := m.store.AddMembership(ctx, membership); err != nil {
			return created, skipped, fmt.Errorf("failed to add membership: %w", err)
		}
		created++
	}

	if err := m.store.ClearLegacyWorkspaces(ctx, user.UserID); err != nil {
		return created, skipped, fmt.Errorf("failed to clear legacy list: %w", err)
	}
	return created, skipped, nil
}

func (m *Migrator) resolveEntry(ctx context.Context, domain string, entry LegacyWorkspaceEntry) (*Workspace, error) {
	if entry.WorkspaceID != "" {
		ws, err := m.store.GetWorkspace(ctx, entry.WorkspaceID)
		if err == nil || !errors.Is(err, ErrWorkspaceNotFound) {
			return ws, err
		}
	}
	if entry.Slug == "" {
		return nil, ErrWorkspaceNotFound
	}
	return m.store.GetWorkspaceBySlug(ctx, domain, entry.Slug)
}

// legacyRole maps a legacy role string onto a workspace role. The legacy
// list used "member" for editors; unknown values degrade to viewer.
func legacyRole(role string) auth.WorkspaceRole {
	switch role {
	case "admin":
		return auth.WorkspaceRoleAdmin
	case "member", "editor":
		return auth.WorkspaceRoleEditor
	default:
		return auth.WorkspaceRoleViewer
	}
}
