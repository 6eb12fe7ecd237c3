package api

import (
	"net/http"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	// Creation assigns ownership, so an anonymous link caller cannot mint
	// documents that would belong to nobody.
	if tc.Principal == nil || tc.Principal.Anonymous() {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createDocumentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	docType := req.DocType
	if docType == "" {
		docType = resources.DocTypeGeneric
	}
	if !docType.Valid() {
		httputil.WriteBadRequest(w, "unknown doc_type")
		return
	}

	parent := ""
	if req.DirectoryID != nil {
		parent = *req.DirectoryID
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, parent, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}

	if req.LinkedDocumentID != nil {
		if _, err := s.deps.Resources.GetDocument(r.Context(), tc.Domain, *req.LinkedDocumentID); err != nil {
			writeAccessError(w, err)
			return
		}
	}

	workspaceID := tc.WorkspaceID
	if req.DirectoryID != nil {
		dir, err := s.deps.Resources.GetDirectory(r.Context(), tc.Domain, *req.DirectoryID)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		workspaceID = dir.WorkspaceID
	}

	doc := &resources.Document{
		Domain:           tc.Domain,
		WorkspaceID:      workspaceID,
		DirectoryID:      req.DirectoryID,
		Title:            req.Title,
		DocType:          docType,
		LinkedDocumentID: req.LinkedDocumentID,
		OwnerUserID:      tc.Principal.UserID,
	}
	if err := s.deps.Resources.CreateDocument(r.Context(), doc); err != nil {
		writeAccessError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "document.created",
		ResourceType: resources.TypeDocument,
		ResourceID:   doc.ID,
		ActorUserID:  &doc.OwnerUserID,
	})
	httputil.WriteCreated(w, doc)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDocument, id, auth.RoleViewer); err != nil {
		writeAccessError(w, err)
		return
	}

	doc, err := s.deps.Resources.GetDocument(r.Context(), tc.Domain, id)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req updateDocumentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDocument, id, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}
	if err := s.deps.Resources.UpdateDocumentTitle(r.Context(), tc.Domain, id, req.Title); err != nil {
		writeAccessError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) moveDocument(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req moveDocumentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDocument, id, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}
	target := ""
	if req.DirectoryID != nil {
		target = *req.DirectoryID
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDirectory, target, auth.RoleEditor); err != nil {
		writeAccessError(w, err)
		return
	}

	if req.DirectoryID != nil {
		dir, err := s.deps.Resources.GetDirectory(r.Context(), tc.Domain, *req.DirectoryID)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		doc, err := s.deps.Resources.GetDocument(r.Context(), tc.Domain, id)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		if dir.WorkspaceID != doc.WorkspaceID {
			httputil.WriteError(w, http.StatusNotFound, resources.ErrDirectoryNotFound)
			return
		}
	}

	if err := s.deps.Resources.MoveDocument(r.Context(), tc.Domain, id, req.DirectoryID); err != nil {
		writeAccessError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "document.moved",
		ResourceType: resources.TypeDocument,
		ResourceID:   id,
		ActorUserID:  actorID(tc),
	})
	httputil.WriteNoContent(w)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	tc, grant := requestScope(r)

	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.deps.Access.Require(r.Context(), tc, grant, resources.TypeDocument, id, auth.RoleOwner); err != nil {
		writeAccessError(w, err)
		return
	}
	if err := s.deps.Resources.DeleteDocument(r.Context(), tc.Domain, id); err != nil {
		writeAccessError(w, err)
		return
	}

	s.deps.Recorder.Record(r.Context(), &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &tc.WorkspaceID,
		EventType:    "document.deleted",
		ResourceType: resources.TypeDocument,
		ResourceID:   id,
		ActorUserID:  actorID(tc),
	})
	httputil.WriteNoContent(w)
}

// actorID returns the acting user id, or nil for anonymous link callers.
func actorID(tc *tenancy.Context) *string {
	if tc.Principal == nil || tc.Principal.Anonymous() {
		return nil
	}
	id := tc.Principal.UserID
	return &id
}
