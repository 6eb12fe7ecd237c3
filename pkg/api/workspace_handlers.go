package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/middleware"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r)
	if tc == nil || tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if !tc.Principal.IsDomainAdmin {
		httputil.WriteForbidden(w, "insufficient privileges")
		return
	}

	var req createWorkspaceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Slug == "" || req.Name == "" {
		httputil.WriteBadRequest(w, "slug and name are required")
		return
	}

	if _, err := s.deps.Tenants.EnsureDomain(r.Context(), tc.Principal.Domain); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	ws := &tenancy.Workspace{
		Domain:      tc.Principal.Domain,
		Slug:        req.Slug,
		Name:        req.Name,
		OwnerUserID: tc.Principal.UserID,
		Status:      tenancy.WorkspaceStatusActive,
	}
	if err := s.deps.Tenants.CreateWorkspace(r.Context(), ws); err != nil {
		if errors.Is(err, tenancy.ErrWorkspaceExists) {
			httputil.WriteConflict(w, "workspace slug already in use")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	member := &tenancy.WorkspaceMembership{
		WorkspaceID: ws.ID,
		UserID:      tc.Principal.UserID,
		Role:        auth.WorkspaceRoleAdmin,
		Status:      tenancy.MembershipStatusActive,
	}
	if err := s.deps.Tenants.AddMembership(r.Context(), member); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, ws)
}

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r)
	if tc == nil || tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if tc.Principal.IsDomainAdmin {
		list, err := s.deps.Tenants.ListWorkspacesByDomain(r.Context(), tc.Principal.Domain)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		httputil.WriteSuccess(w, list)
		return
	}

	memberships, err := s.deps.Tenants.ListActiveMemberships(r.Context(), tc.Principal.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	list := make([]*tenancy.Workspace, 0, len(memberships))
	for _, m := range memberships {
		ws, err := s.deps.Tenants.GetWorkspace(r.Context(), m.WorkspaceID)
		if err != nil {
			if errors.Is(err, tenancy.ErrWorkspaceNotFound) {
				continue
			}
			httputil.WriteInternalError(w, err)
			return
		}
		list = append(list, ws)
	}
	httputil.WriteSuccess(w, list)
}

// currentWorkspace reports the workspace the request resolved into
func (s *Server) currentWorkspace(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r)
	if tc == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if tc.Workspace == nil {
		httputil.WriteErrorMessage(w, http.StatusPreconditionRequired, "workspace required")
		return
	}
	httputil.WriteSuccess(w, tc.Workspace)
}

// workspaceForManage loads a workspace and checks the caller may manage it.
// Managers are the workspace owner, its admins, active admin members, and
// same-domain domain admins.
func (s *Server) workspaceForManage(w http.ResponseWriter, r *http.Request) (*tenancy.Workspace, *tenancy.Context, bool) {
	tc := middleware.GetTenant(r)
	if tc == nil || tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, nil, false
	}

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return nil, nil, false
	}
	ws, err := s.deps.Tenants.GetWorkspace(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenancy.ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, "workspace not found")
			return nil, nil, false
		}
		httputil.WriteInternalError(w, err)
		return nil, nil, false
	}

	if ws.IsAdmin(tc.Principal.UserID) {
		return ws, tc, true
	}
	if tc.Principal.IsDomainAdmin && tc.Principal.Domain == ws.Domain {
		return ws, tc, true
	}
	m, err := s.deps.Tenants.GetMembership(r.Context(), ws.ID, tc.Principal.UserID)
	if err == nil && m.Status == tenancy.MembershipStatusActive && m.Role == auth.WorkspaceRoleAdmin {
		return ws, tc, true
	}
	httputil.WriteForbidden(w, "insufficient privileges")
	return nil, nil, false
}

func (s *Server) archiveWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := s.workspaceForManage(w, r)
	if !ok {
		return
	}
	if err := s.deps.Tenants.ArchiveWorkspace(r.Context(), ws.ID); err != nil {
		if errors.Is(err, tenancy.ErrWorkspaceNotFound) {
			httputil.WriteNotFoundError(w, "workspace not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := s.workspaceForManage(w, r)
	if !ok {
		return
	}
	members, err := s.deps.Tenants.ListWorkspaceMembers(r.Context(), ws.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	ws, tc, ok := s.workspaceForManage(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	inviter := tc.Principal.UserID
	m := &tenancy.WorkspaceMembership{
		WorkspaceID: ws.ID,
		UserID:      req.UserID,
		Role:        req.Role,
		InvitedBy:   &inviter,
		Status:      tenancy.MembershipStatusActive,
	}
	if err := s.deps.Tenants.AddMembership(r.Context(), m); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, m)
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := s.workspaceForManage(w, r)
	if !ok {
		return
	}
	userID := mux.Vars(r)["userId"]
	var req updateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if err := s.deps.Tenants.UpdateMembershipRole(r.Context(), ws.ID, userID, req.Role); err != nil {
		if errors.Is(err, tenancy.ErrMembershipNotFound) {
			httputil.WriteNotFoundError(w, "membership not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	ws, _, ok := s.workspaceForManage(w, r)
	if !ok {
		return
	}
	userID := mux.Vars(r)["userId"]
	if err := s.deps.Tenants.RevokeMembership(r.Context(), ws.ID, userID); err != nil {
		if errors.Is(err, tenancy.ErrMembershipNotFound) {
			httputil.WriteNotFoundError(w, "membership not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) migrateLegacy(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r)
	if tc == nil || tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if !tc.Principal.IsDomainAdmin {
		httputil.WriteForbidden(w, "insufficient privileges")
		return
	}

	batchSize, err := httputil.ParseQueryInt(r, "batch_size", 500)
	if err != nil || batchSize < 1 {
		httputil.WriteBadRequest(w, "invalid batch_size")
		return
	}
	result, err := s.deps.Migrator.Run(r.Context(), batchSize)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
