package auth

import "time"

// Role represents the effective capability a principal holds over a single
// resource. Roles are totally ordered: RoleNone < RoleViewer < RoleEditor <
// RoleOwner. All permission comparisons in the codebase go through Rank or
// AtLeast; never compare roles with ad hoc numeric mappings.
type Role string

const (
	RoleNone   Role = "none"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// Rank returns the position of the role in the total order. Unknown values
// rank as RoleNone.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleOwner:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the capability of required.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() >= required.Rank()
}

// Max returns the higher-ranked of r and other.
func (r Role) Max(other Role) Role {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}

// Valid reports whether r is one of the known role values.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleViewer, RoleEditor, RoleOwner:
		return true
	}
	return false
}

// WorkspaceRole represents a user's standing inside a workspace, carried by
// a membership record.
type WorkspaceRole string

const (
	WorkspaceRoleAdmin  WorkspaceRole = "admin"
	WorkspaceRoleEditor WorkspaceRole = "editor"
	WorkspaceRoleViewer WorkspaceRole = "viewer"
)

// Valid reports whether w is one of the known workspace roles.
func (w WorkspaceRole) Valid() bool {
	switch w {
	case WorkspaceRoleAdmin, WorkspaceRoleEditor, WorkspaceRoleViewer:
		return true
	}
	return false
}

// Principal is the authenticated actor on a request. Authentication itself
// (token issuance and verification) happens outside this codebase; handlers
// receive a Principal that is already trusted.
type Principal struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email,omitempty"`
	Domain        string    `json:"domain"`
	IsDomainAdmin bool      `json:"is_domain_admin"`
	LastSeenAt    time.Time `json:"last_seen_at,omitempty"`
}

// Anonymous reports whether the principal carries no user identity. Anonymous
// callers can only operate through a link token.
func (p *Principal) Anonymous() bool {
	return p == nil || p.UserID == ""
}
