package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
)

// Resolver computes the effective (domain, workspace) pair for a request.
// Resolution may write: when the resolved workspace differs from the user's
// stored default, the new default is persisted as part of resolving.
type Resolver struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a tenant context resolver
func NewResolver(store Store, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// ResolveLink builds the tenant context for a link-token caller. Membership
// checks are bypassed; the grant's domain is the effective domain and no
// workspace is selected. This is the only path open to anonymous callers.
func (r *Resolver) ResolveLink(domain string) *Context {
	if r.metrics != nil {
		r.metrics.TenantResolutionsTotal.WithLabelValues("link").Inc()
	}
	return &Context{
		Domain:    domain,
		Principal: &auth.Principal{},
		ViaLink:   true,
	}
}

// Resolve establishes the tenant context for an authenticated principal.
// hint is an explicit per-request workspace override (id or slug) and may
// be empty, in which case the user's stored default is used. A nil error
// with an empty WorkspaceID is the bootstrap case; callers that need a
// workspace check Context.RequireWorkspace.
func (r *Resolver) Resolve(ctx context.Context, principal *auth.Principal, hint string) (*Context, error) {
	if principal == nil || principal.UserID == "" {
		r.count("denied")
		return nil, ErrAccessDenied
	}

	state, err := r.store.GetUserTenantState(ctx, principal.UserID)
	if err != nil {
		r.count("error")
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}

	explicit := hint != ""
	if !explicit && state.DefaultWorkspaceID != nil {
		hint = *state.DefaultWorkspaceID
	}

	if hint == "" {
		return r.resolveWithoutHint(ctx, principal, state)
	}
	return r.resolveHint(ctx, principal, state, hint, explicit)
}

// resolveWithoutHint picks the user's first workspace: memberships first,
// the legacy list as fallback. Empty on both sides is not an error.
func (r *Resolver) resolveWithoutHint(ctx context.Context, principal *auth.Principal, state *UserTenantState) (*Context, error) {
	memberships, err := r.store.ListActiveMemberships(ctx, principal.UserID)
	if err != nil {
		r.count("error")
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	if len(memberships) > 0 {
		m := memberships[0]
		ws, err := r.store.GetWorkspace(ctx, m.WorkspaceID)
		if err != nil {
			r.count("error")
			return nil, fmt.Errorf("failed to load workspace %s: %w", m.WorkspaceID, err)
		}
		r.persistDefault(ctx, principal, state, ws.ID)
		r.count("resolved")
		return r.buildContext(principal, ws, m), nil
	}

	for _, entry := range state.LegacyWorkspaces {
		if !entry.Active {
			continue
		}
		ws, err := r.lookupLegacyEntry(ctx, principal.Domain, entry)
		if err != nil {
			if errors.Is(err, ErrWorkspaceNotFound) {
				continue
			}
			r.count("error")
			return nil, err
		}
		r.persistDefault(ctx, principal, state, ws.ID)
		r.count("resolved")
		return r.buildContext(principal, ws, nil), nil
	}

	// Bootstrap: no workspace anywhere. Resolution still succeeds so that
	// first-login flows can run before any workspace exists.
	r.count("no_workspace")
	return &Context{Domain: principal.Domain, Principal: principal}, nil
}

// resolveHint resolves a workspace hint by id, then by slug within the
// principal's domain, and checks access to the result. A stale stored
// default (explicit=false) falls back to membership selection instead of
// failing the request.
func (r *Resolver) resolveHint(ctx context.Context, principal *auth.Principal, state *UserTenantState, hint string, explicit bool) (*Context, error) {
	ws, err := r.store.GetWorkspace(ctx, hint)
	if errors.Is(err, ErrWorkspaceNotFound) {
		ws, err = r.store.GetWorkspaceBySlug(ctx, principal.Domain, hint)
	}
	if errors.Is(err, ErrWorkspaceNotFound) {
		if !explicit {
			return r.resolveWithoutHint(ctx, principal, state)
		}
		// Domain admins pass through so they can create the workspace.
		if principal.IsDomainAdmin {
			r.count("admin_passthrough")
			return &Context{Domain: principal.Domain, Principal: principal}, nil
		}
		r.count("not_found")
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		r.count("error")
		return nil, fmt.Errorf("failed to look up workspace %s: %w", hint, err)
	}

	membership, err := r.checkAccess(ctx, principal, state, ws)
	if errors.Is(err, ErrAccessDenied) && !explicit {
		return r.resolveWithoutHint(ctx, principal, state)
	}
	if err != nil {
		return nil, err
	}

	r.persistDefault(ctx, principal, state, ws.ID)
	r.count("resolved")
	return r.buildContext(principal, ws, membership), nil
}

// checkAccess grants access through, in order, active membership, a legacy
// list entry, or same-domain admin standing. Cross-domain access requires
// explicit membership; admin standing never crosses domains.
func (r *Resolver) checkAccess(ctx context.Context, principal *auth.Principal, state *UserTenantState, ws *Workspace) (*WorkspaceMembership, error) {
	membership, err := r.store.GetMembership(ctx, ws.ID, principal.UserID)
	if err == nil {
		return membership, nil
	}
	if !errors.Is(err, ErrMembershipNotFound) {
		r.count("error")
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	for _, entry := range state.LegacyWorkspaces {
		if !entry.Active {
			continue
		}
		if entry.WorkspaceID == ws.ID {
			return nil, nil
		}
		// Legacy lists predate ids and stored bare slugs. A slug only
		// identifies a workspace within its domain, so a slug entry never
		// reaches across domains.
		if entry.Slug == ws.Slug && ws.Domain == principal.Domain {
			return nil, nil
		}
	}

	if ws.Domain == principal.Domain && principal.IsDomainAdmin {
		return nil, nil
	}

	r.count("denied")
	return nil, ErrAccessDenied
}

// buildContext selects the effective domain: the workspace's domain for a
// cross-domain collaborator, the principal's own otherwise. An invited
// collaborator sees the joined workspace's resources and never leaks their
// own domain's resources into it.
func (r *Resolver) buildContext(principal *auth.Principal, ws *Workspace, membership *WorkspaceMembership) *Context {
	domain := principal.Domain
	if ws.Domain != principal.Domain {
		domain = ws.Domain
	}
	return &Context{
		Domain:      domain,
		WorkspaceID: ws.ID,
		Workspace:   ws,
		Principal:   principal,
		Membership:  membership,
	}
}

// persistDefault writes the resolved workspace back as the user's default
// when it changed. Best-effort: a failed write is logged and never fails
// the resolution that triggered it.
func (r *Resolver) persistDefault(ctx context.Context, principal *auth.Principal, state *UserTenantState, workspaceID string) {
	if state.DefaultWorkspaceID != nil && *state.DefaultWorkspaceID == workspaceID {
		return
	}

	if err := r.store.SetDefaultWorkspace(ctx, principal.UserID, workspaceID); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":      principal.UserID,
				"workspace_id": workspaceID,
			}).Warn("failed to persist default workspace")
		}
		return
	}
	if r.metrics != nil {
		r.metrics.DefaultWorkspaceWrites.Inc()
	}
}

func (r *Resolver) lookupLegacyEntry(ctx context.Context, domain string, entry LegacyWorkspaceEntry) (*Workspace, error) {
	if entry.WorkspaceID != "" {
		ws, err := r.store.GetWorkspace(ctx, entry.WorkspaceID)
		if err == nil {
			return ws, nil
		}
		if !errors.Is(err, ErrWorkspaceNotFound) {
			return nil, fmt.Errorf("failed to load legacy workspace %s: %w", entry.WorkspaceID, err)
		}
	}
	if entry.Slug == "" {
		return nil, ErrWorkspaceNotFound
	}
	ws, err := r.store.GetWorkspaceBySlug(ctx, domain, entry.Slug)
	if err != nil && !errors.Is(err, ErrWorkspaceNotFound) {
		return nil, fmt.Errorf("failed to load legacy workspace %s: %w", entry.Slug, err)
	}
	return ws, err
}

func (r *Resolver) count(outcome string) {
	if r.metrics != nil {
		r.metrics.TenantResolutionsTotal.WithLabelValues(outcome).Inc()
	}
}
