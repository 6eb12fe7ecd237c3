package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema history, in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create domains table",
			SQL: `
				CREATE TABLE IF NOT EXISTS domains (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					status TEXT NOT NULL DEFAULT 'active',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL UNIQUE,
					domain TEXT NOT NULL REFERENCES domains(name),
					is_domain_admin BOOLEAN NOT NULL DEFAULT FALSE,
					default_workspace_id TEXT,
					legacy_workspaces JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_domain ON users(domain);
			`,
		},
		{
			Version:     3,
			Description: "Create workspaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id TEXT PRIMARY KEY,
					domain TEXT NOT NULL REFERENCES domains(name),
					slug TEXT NOT NULL,
					name TEXT NOT NULL,
					owner_user_id TEXT NOT NULL,
					admin_user_ids JSONB NOT NULL DEFAULT '[]',
					status TEXT NOT NULL DEFAULT 'active',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(domain, slug)
				);

				CREATE INDEX idx_workspaces_domain ON workspaces(domain);
			`,
		},
		{
			Version:     4,
			Description: "Create workspace_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_memberships (
					id BIGSERIAL PRIMARY KEY,
					workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id TEXT NOT NULL,
					role TEXT NOT NULL,
					invited_by TEXT,
					status TEXT NOT NULL DEFAULT 'active',
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(workspace_id, user_id)
				);

				CREATE INDEX idx_memberships_user_id ON workspace_memberships(user_id);
				CREATE INDEX idx_memberships_workspace_id ON workspace_memberships(workspace_id);
			`,
		},
		{
			Version:     5,
			Description: "Create directories table",
			SQL: `
				CREATE TABLE IF NOT EXISTS directories (
					id TEXT PRIMARY KEY,
					domain TEXT NOT NULL,
					workspace_id TEXT NOT NULL,
					name TEXT NOT NULL,
					parent_id TEXT,
					owner_user_id TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_directories_tenant ON directories(domain, workspace_id);
				CREATE INDEX idx_directories_parent_id ON directories(parent_id);
				CREATE UNIQUE INDEX idx_directories_name_per_parent
					ON directories(domain, workspace_id, COALESCE(parent_id, ''), name);
			`,
		},
		{
			Version:     6,
			Description: "Create documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					domain TEXT NOT NULL,
					workspace_id TEXT NOT NULL,
					directory_id TEXT,
					title TEXT NOT NULL,
					doc_type TEXT NOT NULL DEFAULT 'generic',
					linked_document_id TEXT,
					owner_user_id TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_documents_tenant ON documents(domain, workspace_id);
				CREATE INDEX idx_documents_directory_id ON documents(directory_id);
				CREATE INDEX idx_documents_linked ON documents(linked_document_id);
			`,
		},
		{
			Version:     7,
			Description: "Create share_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS share_permissions (
					id BIGSERIAL PRIMARY KEY,
					domain TEXT NOT NULL,
					resource_type TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					scope TEXT NOT NULL,
					principal_id TEXT,
					link_token TEXT,
					role TEXT NOT NULL,
					expires_at TIMESTAMPTZ,
					created_by TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_shares_link_token ON share_permissions(link_token)
					WHERE link_token IS NOT NULL;
				CREATE UNIQUE INDEX idx_shares_one_link_per_resource
					ON share_permissions(domain, resource_type, resource_id)
					WHERE scope = 'link';
				CREATE UNIQUE INDEX idx_shares_principal
					ON share_permissions(domain, resource_type, resource_id, scope, principal_id)
					WHERE principal_id IS NOT NULL;
				CREATE INDEX idx_shares_resource ON share_permissions(domain, resource_type, resource_id);
				CREATE INDEX idx_shares_principal_lookup ON share_permissions(scope, principal_id);
			`,
		},
		{
			Version:     8,
			Description: "Create domain_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS domain_events (
					id BIGSERIAL PRIMARY KEY,
					domain TEXT NOT NULL,
					workspace_id TEXT,
					event_type TEXT NOT NULL,
					resource_type TEXT NOT NULL,
					resource_id TEXT NOT NULL,
					actor_user_id TEXT,
					payload JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_domain_events_resource ON domain_events(domain, resource_type, resource_id);
				CREATE INDEX idx_domain_events_created_at ON domain_events(created_at);
			`,
		},
	}
}

// RunMigrations applies all unapplied migrations in order. Each migration
// runs in its own transaction and is recorded in schema_migrations, so the
// runner is safe to re-run.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migrations: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
