package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

// ErrInsufficientPermissions means the principal's resolved role ranks
// below the required one.
var ErrInsufficientPermissions = errors.New("insufficient permissions")

// Resolver computes the effective role a principal holds over a directory
// or document. Pure reads; resolution never mutates anything.
type Resolver struct {
	resources resources.Store
	shares    sharing.Store
	cache     *RoleCache
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a permission resolver. cache may be nil.
func NewResolver(res resources.Store, shares sharing.Store, cache *RoleCache, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		resources: res,
		shares:    shares,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
	}
}

// RoleFor resolves the principal's role over one resource. An empty
// resourceID on a directory addresses the synthetic tree root.
func (r *Resolver) RoleFor(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, resourceType resources.ResourceType, resourceID string) (auth.Role, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RoleCheckDuration.WithLabelValues(string(resourceType)).Observe(time.Since(start).Seconds())
		}
	}()

	role, err := r.resolve(ctx, tc, grant, resourceType, resourceID)
	if err != nil {
		return auth.RoleNone, err
	}
	if r.metrics != nil {
		r.metrics.RoleChecksTotal.WithLabelValues(string(resourceType), string(role)).Inc()
	}
	return role, nil
}

func (r *Resolver) resolve(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, resourceType resources.ResourceType, resourceID string) (auth.Role, error) {
	// The synthetic root has no record: any authenticated principal in the
	// tenant may create top-level folders.
	if resourceType == resources.TypeDirectory && resourceID == "" {
		if !tc.Principal.Anonymous() {
			return auth.RoleEditor, nil
		}
		return auth.RoleNone, nil
	}

	if tc.IsDomainAdmin() {
		return auth.RoleOwner, nil
	}

	// Cacheable only for plain authenticated lookups: link grants vary per
	// request and admin results never reach this point.
	cacheable := grant == nil && !tc.Principal.Anonymous()
	if cacheable {
		if role, ok := r.cache.Get(ctx, tc.Domain, tc.WorkspaceID, tc.Principal.UserID, resourceType, resourceID); ok {
			return role, nil
		}
	}

	var (
		role auth.Role
		err  error
	)
	switch resourceType {
	case resources.TypeDirectory:
		role, err = r.directoryRole(ctx, tc, grant, resourceID)
	case resources.TypeDocument:
		role, err = r.documentRole(ctx, tc, grant, resourceID)
	default:
		return auth.RoleNone, fmt.Errorf("unknown resource type: %s", resourceType)
	}
	if err != nil {
		return auth.RoleNone, err
	}

	if cacheable {
		r.cache.Set(ctx, tc.Domain, tc.WorkspaceID, tc.Principal.UserID, resourceType, resourceID, role)
	}
	return role, nil
}

func (r *Resolver) directoryRole(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, directoryID string) (auth.Role, error) {
	dir, err := r.resources.GetDirectory(ctx, tc.Domain, directoryID)
	if err != nil {
		if errors.Is(err, resources.ErrDirectoryNotFound) {
			return auth.RoleNone, nil
		}
		return auth.RoleNone, err
	}

	if !tc.Principal.Anonymous() && dir.OwnerUserID == tc.Principal.UserID {
		return auth.RoleOwner, nil
	}

	role := auth.RoleNone
	if grant.Covers(resources.TypeDirectory, directoryID) {
		role = role.Max(grant.Role)
	}

	shareRole, err := r.sharedRole(ctx, tc, resources.TypeDirectory, directoryID)
	if err != nil {
		return auth.RoleNone, err
	}
	return role.Max(shareRole), nil
}

func (r *Resolver) documentRole(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, documentID string) (auth.Role, error) {
	doc, err := r.resources.GetDocument(ctx, tc.Domain, documentID)
	if err != nil {
		if errors.Is(err, resources.ErrDocumentNotFound) {
			return auth.RoleNone, nil
		}
		return auth.RoleNone, err
	}

	if !tc.Principal.Anonymous() && doc.OwnerUserID == tc.Principal.UserID {
		return auth.RoleOwner, nil
	}

	role := auth.RoleNone
	if grant.Covers(resources.TypeDocument, documentID) {
		role = role.Max(grant.Role)
	}
	// A link issued for one half of a DRHP/RHP pair covers its counterpart:
	// the two drafts are one logical filing.
	if role == auth.RoleNone && grant != nil && grant.ResourceType == resources.TypeDocument &&
		doc.LinkedDocumentID != nil && grant.ResourceID == *doc.LinkedDocumentID &&
		(doc.DocType == resources.DocTypeDRHP || doc.DocType == resources.DocTypeRHP) {
		role = role.Max(grant.Role)
	}

	// Workspace co-membership implies write access to documents. Documents
	// are team artifacts; directories stay privately owned.
	if !tc.Principal.Anonymous() && tc.WorkspaceID != "" && tc.WorkspaceID == doc.WorkspaceID {
		role = role.Max(auth.RoleEditor)
	}

	shareRole, err := r.sharedRole(ctx, tc, resources.TypeDocument, documentID)
	if err != nil {
		return auth.RoleNone, err
	}
	return role.Max(shareRole), nil
}

// sharedRole combines the principal's user-scoped and workspace-scoped
// shares on a resource, taking the highest applicable role.
func (r *Resolver) sharedRole(ctx context.Context, tc *tenancy.Context, resourceType resources.ResourceType, resourceID string) (auth.Role, error) {
	role := auth.RoleNone

	if !tc.Principal.Anonymous() {
		share, err := r.shares.GetShareForPrincipal(ctx, tc.Domain, resourceType, resourceID, sharing.ScopeUser, tc.Principal.UserID)
		if err == nil {
			role = role.Max(share.Role)
		} else if !errors.Is(err, sharing.ErrShareNotFound) {
			return auth.RoleNone, err
		}
	}

	if tc.WorkspaceID != "" {
		share, err := r.shares.GetShareForPrincipal(ctx, tc.Domain, resourceType, resourceID, sharing.ScopeWorkspace, tc.WorkspaceID)
		if err == nil {
			role = role.Max(share.Role)
		} else if !errors.Is(err, sharing.ErrShareNotFound) {
			return auth.RoleNone, err
		}
	}

	return role, nil
}

// Require gates an operation: it rejects with ErrInsufficientPermissions
// when the resolved role ranks below required. No side effects.
func (r *Resolver) Require(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, resourceType resources.ResourceType, resourceID string, required auth.Role) error {
	role, err := r.RoleFor(ctx, tc, grant, resourceType, resourceID)
	if err != nil {
		return err
	}
	if !role.AtLeast(required) {
		return ErrInsufficientPermissions
	}
	return nil
}
