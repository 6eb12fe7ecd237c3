package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
)

// parseResourceRef extracts and validates the {type}/{id} pair from a
// share route.
func parseResourceRef(w http.ResponseWriter, r *http.Request) (resources.ResourceType, string, bool) {
	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		httputil.WriteBadRequest(w, "resource id is required")
		return "", "", false
	}
	switch resources.ResourceType(vars["type"]) {
	case resources.TypeDirectory:
		return resources.TypeDirectory, id, true
	case resources.TypeDocument:
		return resources.TypeDocument, id, true
	default:
		httputil.WriteBadRequest(w, "unknown resource type")
		return "", "", false
	}
}

func (s *Server) listShares(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	resourceType, id, ok := parseResourceRef(w, r)
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resourceType, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	shares, err := s.deps.Shares.ListSharesForResource(r.Context(), tc.Domain, resourceType, id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, shares)
}

func (s *Server) grantShare(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	resourceType, id, ok := parseResourceRef(w, r)
	if !ok {
		return
	}
	var req grantShareRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Scope != sharing.ScopeUser && req.Scope != sharing.ScopeWorkspace {
		httputil.WriteBadRequest(w, "scope must be user or workspace")
		return
	}
	if req.PrincipalID == "" {
		httputil.WriteBadRequest(w, "principal_id is required")
		return
	}
	if !req.Role.Valid() || req.Role == auth.RoleNone {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resourceType, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	share := &sharing.SharePermission{
		Domain:       tc.Domain,
		ResourceType: resourceType,
		ResourceID:   id,
		Scope:        req.Scope,
		PrincipalID:  &req.PrincipalID,
		Role:         req.Role,
		CreatedBy:    tc.Principal.UserID,
	}
	if err := s.deps.Shares.GrantShare(r.Context(), share); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.deps.RoleCache.Invalidate(r.Context(), tc.Domain, resourceType, id)
	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "share.granted",
		ResourceType: resourceType,
		ResourceID:   id,
		ActorUserID:  actorID(tc),
		Payload:      map[string]interface{}{"scope": string(req.Scope), "role": string(req.Role)},
	})
	httputil.WriteCreated(w, share)
}

func (s *Server) revokeShare(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	resourceType, id, ok := parseResourceRef(w, r)
	if !ok {
		return
	}
	shareID, err := strconv.ParseInt(mux.Vars(r)["shareId"], 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid share id")
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resourceType, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	if err := s.deps.Shares.RevokeShare(r.Context(), tc.Domain, shareID); err != nil {
		if err == sharing.ErrShareNotFound {
			httputil.WriteError(w, http.StatusNotFound, err)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	s.deps.RoleCache.Invalidate(r.Context(), tc.Domain, resourceType, id)
	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "share.revoked",
		ResourceType: resourceType,
		ResourceID:   id,
		ActorUserID:  actorID(tc),
	})
	httputil.WriteNoContent(w)
}

func (s *Server) createLink(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	resourceType, id, ok := parseResourceRef(w, r)
	if !ok {
		return
	}
	var req createLinkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() || req.Role == auth.RoleNone {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resourceType, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	token, err := s.deps.Links.CreateOrRotate(r.Context(), tc.Domain, resourceType, id, req.Role, req.ExpiresAt, tc.Principal.UserID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "link.rotated",
		ResourceType: resourceType,
		ResourceID:   id,
		ActorUserID:  actorID(tc),
	})
	httputil.WriteCreated(w, createLinkResponse{
		Token:     token,
		Role:      req.Role,
		ExpiresAt: req.ExpiresAt,
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	resourceType, id, ok := parseResourceRef(w, r)
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resourceType, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}

	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	list, err := s.deps.Recorder.ListForResource(r.Context(), tc.Domain, resourceType, id, page.PerPage)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}
