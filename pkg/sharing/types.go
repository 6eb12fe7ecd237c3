package sharing

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

var (
	// ErrInvalidLink means the presented token matches no link share.
	ErrInvalidLink = errors.New("invalid link")

	// ErrLinkExpired means the link share exists but its expiry has passed.
	ErrLinkExpired = errors.New("link expired")

	// ErrShareNotFound means no share permission matched.
	ErrShareNotFound = errors.New("share not found")
)

// Scope identifies the kind of principal a share grants to
type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeWorkspace Scope = "workspace"
	ScopeLink      Scope = "link"
)

// SharePermission grants a role over one resource. For ScopeUser the
// principal is a user id; for ScopeWorkspace a workspace id; for ScopeLink
// the grant is keyed by LinkToken instead of a principal and may expire.
// At most one link share exists per resource.
type SharePermission struct {
	ID           int64                  `json:"id"`
	Domain       string                 `json:"domain"`
	ResourceType resources.ResourceType `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Scope        Scope                  `json:"scope"`
	PrincipalID  *string                `json:"principal_id,omitempty"`
	LinkToken    *string                `json:"link_token,omitempty"`
	Role         auth.Role              `json:"role"`
	ExpiresAt    *time.Time             `json:"expires_at,omitempty"`
	CreatedBy    string                 `json:"created_by"`
	CreatedAt    time.Time              `json:"created_at"`
}

// LinkGrant is the resolved view of a link token
type LinkGrant struct {
	Domain       string                 `json:"domain"`
	ResourceType resources.ResourceType `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Role         auth.Role              `json:"role"`
}

// Covers reports whether the grant applies to the given resource
func (g *LinkGrant) Covers(resourceType resources.ResourceType, resourceID string) bool {
	return g != nil && g.ResourceType == resourceType && g.ResourceID == resourceID
}

// Store is the persistence boundary for share permissions
type Store interface {
	GrantShare(ctx context.Context, share *SharePermission) error
	RevokeShare(ctx context.Context, domain string, id int64) error
	ListSharesForResource(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string) ([]*SharePermission, error)

	// GetShareForPrincipal finds a user- or workspace-scoped share on a
	// resource for one principal.
	GetShareForPrincipal(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, scope Scope, principalID string) (*SharePermission, error)

	// UpsertLinkShare replaces any existing link share for the resource
	// with a new one, carrying the token inside share.
	UpsertLinkShare(ctx context.Context, share *SharePermission) error
	GetLinkShareByToken(ctx context.Context, token string) (*SharePermission, error)
	DeleteExpiredLinkShares(ctx context.Context, before time.Time) (int64, error)
}
