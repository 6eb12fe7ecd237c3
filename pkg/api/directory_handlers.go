package api

import (
	"errors"
	"net/http"

	"github.com/inkwell-hq/inkwell/pkg/access"
	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/hierarchy"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/middleware"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

// requestScope pulls the tenant context and link grant off a request
func requestScope(r *http.Request) (*tenancy.Context, *sharing.LinkGrant) {
	return middleware.GetTenant(r), middleware.GetLinkGrant(r)
}

// writeAccessError maps resolution failures onto HTTP statuses
func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrInsufficientPermissions):
		httputil.WriteError(w, http.StatusForbidden, err)
	case errors.Is(err, resources.ErrDirectoryNotFound),
		errors.Is(err, resources.ErrDocumentNotFound):
		httputil.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, resources.ErrDirectoryConflict),
		errors.Is(err, hierarchy.ErrCycleRejected):
		httputil.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, hierarchy.ErrSelfParentingRejected):
		httputil.WriteError(w, http.StatusBadRequest, err)
	default:
		httputil.WriteInternalError(w, err)
	}
}

func (s *Server) createDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	// Creation assigns ownership, so an anonymous link caller cannot mint
	// nodes that would belong to nobody.
	if tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createDirectoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	parent := ""
	if req.ParentID != nil {
		parent = *req.ParentID
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, parent, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}

	// A link-scoped caller carries no workspace of its own; the new node
	// lives in its parent's workspace.
	workspaceID := tc.WorkspaceID
	if req.ParentID != nil {
		parentDir, err := s.deps.Resources.GetDirectory(r.Context(), tc.Domain, *req.ParentID)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		workspaceID = parentDir.WorkspaceID
	}

	dir := &resources.Directory{
		Domain:      tc.Domain,
		WorkspaceID: workspaceID,
		Name:        req.Name,
		ParentID:    req.ParentID,
		OwnerUserID: tc.Principal.UserID,
	}
	if err := s.deps.Resources.CreateDirectory(r.Context(), dir); err != nil {
		writeAccessError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "directory.created",
		ResourceType: resources.TypeDirectory,
		ResourceID:   dir.ID,
		ActorUserID:  &dir.OwnerUserID,
	})
	httputil.WriteCreated(w, dir)
}

func (s *Server) getDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, id, auth.RoleViewer); err != nil {
		writeAccessError(w, err)
		return
	}

	dir, err := s.deps.Resources.GetDirectory(r.Context(), tc.Domain, id)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteSuccess(w, dir)
}

// listDirectory lists visible children and documents of a directory, or of
// the workspace root when no id is present in the path.
func (s *Server) listDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	var parentID *string
	if id, err := httputil.ParsePathString(r, "id"); err == nil {
		parentID = &id
	}

	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	listing, err := s.deps.Access.ListVisible(r.Context(), tc, grant, parentID, page.Offset(), page.PerPage)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteSuccess(w, listing)
}

func (s *Server) renameDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req renameDirectoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, id, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}
	if err := s.deps.Resources.RenameDirectory(r.Context(), tc.Domain, id, req.Name); err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) moveDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req moveDirectoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, id, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}
	newParent := ""
	if req.NewParentID != nil {
		newParent = *req.NewParentID
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, newParent, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}

	if err := s.deps.Hierarchy.Move(r.Context(), tc, id, req.NewParentID); err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) deleteDirectory(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	result, err := s.deps.Hierarchy.Delete(r.Context(), tc, id)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteSuccess(w, deleteDirectoryResponse{
		DirectoriesDeleted: result.DirectoriesDeleted,
		DocumentsDeleted:   result.DocumentsDeleted,
	})
}
