package sharing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/resources"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a share store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const shareColumns = `id, domain, resource_type, resource_id, scope, principal_id, link_token, role, expires_at, created_by, created_at`

func scanShare(row interface{ Scan(...interface{}) error }) (*SharePermission, error) {
	s := &SharePermission{}
	err := row.Scan(&s.ID, &s.Domain, &s.ResourceType, &s.ResourceID, &s.Scope,
		&s.PrincipalID, &s.LinkToken, &s.Role, &s.ExpiresAt, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GrantShare inserts a user- or workspace-scoped share. Granting again for
// the same principal and resource updates the role in place.
func (s *PostgresStore) GrantShare(ctx context.Context, share *SharePermission) error {
	share.CreatedAt = time.Now()

	query := `
		INSERT INTO share_permissions (domain, resource_type, resource_id, scope, principal_id, role, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (domain, resource_type, resource_id, scope, principal_id) WHERE principal_id IS NOT NULL
		DO UPDATE SET role = EXCLUDED.role, expires_at = EXCLUDED.expires_at
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		share.Domain, share.ResourceType, share.ResourceID, share.Scope,
		share.PrincipalID, share.Role, share.ExpiresAt, share.CreatedBy, share.CreatedAt,
	).Scan(&share.ID)
	if err != nil {
		return fmt.Errorf("failed to grant share: %w", err)
	}
	return nil
}

// RevokeShare removes a share by id within the domain
func (s *PostgresStore) RevokeShare(ctx context.Context, domain string, id int64) error {
	query := `DELETE FROM share_permissions WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id)
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrShareNotFound
	}
	return nil
}

// ListSharesForResource lists all shares on one resource
func (s *PostgresStore) ListSharesForResource(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string) ([]*SharePermission, error) {
	query := `SELECT ` + shareColumns + ` FROM share_permissions
		WHERE domain = $1 AND resource_type = $2 AND resource_id = $3 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, domain, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*SharePermission
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

// GetShareForPrincipal finds one principal's share on a resource
func (s *PostgresStore) GetShareForPrincipal(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, scope Scope, principalID string) (*SharePermission, error) {
	query := `SELECT ` + shareColumns + ` FROM share_permissions
		WHERE domain = $1 AND resource_type = $2 AND resource_id = $3 AND scope = $4 AND principal_id = $5`

	share, err := scanShare(s.db.QueryRowContext(ctx, query, domain, resourceType, resourceID, scope, principalID))
	if err == sql.ErrNoRows {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return share, nil
}

// UpsertLinkShare replaces the resource's link share. Delete-then-insert
// in one transaction keeps the one-link-per-resource invariant and makes
// the old token unusable the moment the new one exists.
func (s *PostgresStore) UpsertLinkShare(ctx context.Context, share *SharePermission) error {
	share.Scope = ScopeLink
	share.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM share_permissions WHERE domain = $1 AND resource_type = $2 AND resource_id = $3 AND scope = 'link'`,
		share.Domain, share.ResourceType, share.ResourceID)
	if err != nil {
		return fmt.Errorf("failed to remove previous link share: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO share_permissions (domain, resource_type, resource_id, scope, link_token, role, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, 'link', $4, $5, $6, $7, $8)
		RETURNING id`,
		share.Domain, share.ResourceType, share.ResourceID,
		share.LinkToken, share.Role, share.ExpiresAt, share.CreatedBy, share.CreatedAt,
	).Scan(&share.ID)
	if err != nil {
		return fmt.Errorf("failed to insert link share: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link rotation: %w", err)
	}
	return nil
}

// GetLinkShareByToken looks up a link share by its token. Domain-agnostic:
// the token alone disambiguates.
func (s *PostgresStore) GetLinkShareByToken(ctx context.Context, token string) (*SharePermission, error) {
	query := `SELECT ` + shareColumns + ` FROM share_permissions WHERE scope = 'link' AND link_token = $1`

	share, err := scanShare(s.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, ErrInvalidLink
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link share: %w", err)
	}
	return share, nil
}

// DeleteExpiredLinkShares purges link shares whose expiry passed before
// the cutoff. Expiry is enforced at resolve time; this is housekeeping.
func (s *PostgresStore) DeleteExpiredLinkShares(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM share_permissions WHERE scope = 'link' AND expires_at IS NOT NULL AND expires_at < $1`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired link shares: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
