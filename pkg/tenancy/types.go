package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/auth"
)

// Resolution failure kinds. All are terminal for the request; none are
// retried internally.
var (
	// ErrWorkspaceRequired is soft: resolution succeeded but yielded no
	// workspace. Callers that need one reject with this; bootstrap flows
	// (first login before any workspace exists) proceed without.
	ErrWorkspaceRequired = errors.New("workspace required")

	// ErrWorkspaceNotFound means the requested workspace hint matched
	// nothing by id or slug.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrAccessDenied means the principal has no membership, legacy entry,
	// or same-domain admin standing for the workspace.
	ErrAccessDenied = errors.New("access denied")

	// ErrWorkspaceExists means a workspace with the same slug already
	// exists in the domain.
	ErrWorkspaceExists = errors.New("workspace already exists")

	// ErrMembershipNotFound means no membership row matched.
	ErrMembershipNotFound = errors.New("membership not found")
)

// DomainStatus represents domain lifecycle status
type DomainStatus string

const (
	DomainStatusActive   DomainStatus = "active"
	DomainStatusArchived DomainStatus = "archived"
)

// Domain is the top-level tenant boundary, typically an organization's email
// domain. Created lazily on first registration from that domain and
// immutable afterwards except for status.
type Domain struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    DomainStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// WorkspaceStatus represents workspace lifecycle status
type WorkspaceStatus string

const (
	WorkspaceStatusActive   WorkspaceStatus = "active"
	WorkspaceStatusArchived WorkspaceStatus = "archived"
)

// Workspace is a named collaboration space within a domain
type Workspace struct {
	ID           string          `json:"id"`
	Domain       string          `json:"domain"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	OwnerUserID  string          `json:"owner_user_id"`
	AdminUserIDs []string        `json:"admin_user_ids"`
	Status       WorkspaceStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsAdmin reports whether the user owns or administers the workspace
func (w *Workspace) IsAdmin(userID string) bool {
	if w.OwnerUserID == userID {
		return true
	}
	for _, id := range w.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MembershipStatus represents membership lifecycle status
type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusRevoked MembershipStatus = "revoked"
)

// WorkspaceMembership ties a user to a workspace with a role. This is the
// source of truth for workspace visibility; the legacy per-user list exists
// only as a read fallback until migrated.
type WorkspaceMembership struct {
	ID          int64              `json:"id"`
	WorkspaceID string             `json:"workspace_id"`
	UserID      string             `json:"user_id"`
	Role        auth.WorkspaceRole `json:"role"`
	InvitedBy   *string            `json:"invited_by,omitempty"`
	Status      MembershipStatus   `json:"status"`
	JoinedAt    time.Time          `json:"joined_at"`
}

// LegacyWorkspaceEntry is one element of the deprecated embedded per-user
// workspace list. Matched by workspace id when present, slug otherwise.
type LegacyWorkspaceEntry struct {
	Slug        string `json:"slug"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Role        string `json:"role,omitempty"`
	Active      bool   `json:"active"`
}

// UserTenantState is the tenant-relevant slice of a user record: the stored
// default workspace and the legacy workspace list.
type UserTenantState struct {
	UserID             string                 `json:"user_id"`
	Email              string                 `json:"email"`
	Domain             string                 `json:"domain"`
	IsDomainAdmin      bool                   `json:"is_domain_admin"`
	DefaultWorkspaceID *string                `json:"default_workspace_id,omitempty"`
	LegacyWorkspaces   []LegacyWorkspaceEntry `json:"legacy_workspaces,omitempty"`
}

// Context is the resolved tenant context for a request. Domain is the
// effective domain for resource queries: the workspace's domain when the
// principal holds a cross-domain membership, the principal's own otherwise.
type Context struct {
	Domain      string
	WorkspaceID string
	Workspace   *Workspace
	Principal   *auth.Principal
	Membership  *WorkspaceMembership
	ViaLink     bool
}

// RequireWorkspace returns ErrWorkspaceRequired when resolution yielded no
// workspace. Callers that can bootstrap without one skip this check.
func (c *Context) RequireWorkspace() error {
	if c.WorkspaceID == "" {
		return ErrWorkspaceRequired
	}
	return nil
}

// IsDomainAdmin reports whether the principal administers the effective
// domain. Cross-domain: admin standing never follows the principal into
// another domain's workspace.
func (c *Context) IsDomainAdmin() bool {
	return c.Principal != nil &&
		c.Principal.IsDomainAdmin &&
		c.Principal.Domain == c.Domain
}

// Store is the persistence boundary for tenants. Implemented by
// PostgresStore; the resolver and tests depend only on this interface.
type Store interface {
	// Domains
	EnsureDomain(ctx context.Context, name string) (*Domain, error)
	GetDomain(ctx context.Context, name string) (*Domain, error)

	// Workspaces
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	GetWorkspaceBySlug(ctx context.Context, domain, slug string) (*Workspace, error)
	ListWorkspacesByDomain(ctx context.Context, domain string) ([]*Workspace, error)
	ArchiveWorkspace(ctx context.Context, id string) error

	// Memberships
	AddMembership(ctx context.Context, m *WorkspaceMembership) error
	GetMembership(ctx context.Context, workspaceID, userID string) (*WorkspaceMembership, error)
	ListActiveMemberships(ctx context.Context, userID string) ([]*WorkspaceMembership, error)
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]*WorkspaceMembership, error)
	UpdateMembershipRole(ctx context.Context, workspaceID, userID string, role auth.WorkspaceRole) error
	RevokeMembership(ctx context.Context, workspaceID, userID string) error

	// User tenant state
	GetUserTenantState(ctx context.Context, userID string) (*UserTenantState, error)
	SetDefaultWorkspace(ctx context.Context, userID, workspaceID string) error

	// Legacy list migration support
	ListLegacyCarriers(ctx context.Context, limit int) ([]*UserTenantState, error)
	ClearLegacyWorkspaces(ctx context.Context, userID string) error
}
