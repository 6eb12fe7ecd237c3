package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inkwell-hq/inkwell/pkg/access"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/hierarchy"
	"github.com/inkwell-hq/inkwell/pkg/httputil"
	"github.com/inkwell-hq/inkwell/pkg/middleware"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

// Deps carries everything the server needs. All fields are required
// except Metrics and RoleCache.
type Deps struct {
	Tenants   tenancy.Store
	Resources resources.Store
	Shares    sharing.Store
	Resolver  *tenancy.Resolver
	Access    *access.Resolver
	Hierarchy *hierarchy.Manager
	Links     *sharing.Issuer
	Migrator  *tenancy.Migrator
	Recorder  events.Recorder
	RoleCache *access.RoleCache
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Health    *observability.HealthChecker
}

// Server is the HTTP surface over the workspace core
type Server struct {
	deps   Deps
	router *mux.Router
}

// NewServer creates the API server and wires its routes
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the configured root router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.deps.Logger))
	s.router.Use(httputil.RecoveryMiddleware(s.deps.Logger))
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.HTTPMiddleware)
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods("GET")
	}

	if s.deps.Health != nil {
		s.router.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	}

	authMW := middleware.NewAuthMiddleware(s.deps.Links, s.deps.Logger)
	tenantMW := middleware.NewTenantMiddleware(s.deps.Resolver, s.deps.Logger)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(authMW.Handler)
	v1.Use(tenantMW.Handler)

	// Workspace management works before any workspace exists, so it sits
	// outside the workspace gate.
	v1.HandleFunc("/workspaces", s.createWorkspace).Methods("POST")
	v1.HandleFunc("/workspaces", s.listWorkspaces).Methods("GET")
	v1.HandleFunc("/workspace", s.currentWorkspace).Methods("GET")
	v1.HandleFunc("/workspaces/{id}", s.archiveWorkspace).Methods("DELETE")
	v1.HandleFunc("/workspaces/{id}/members", s.listMembers).Methods("GET")
	v1.HandleFunc("/workspaces/{id}/members", s.addMember).Methods("POST")
	v1.HandleFunc("/workspaces/{id}/members/{userId}", s.updateMember).Methods("PATCH")
	v1.HandleFunc("/workspaces/{id}/members/{userId}", s.removeMember).Methods("DELETE")
	v1.HandleFunc("/admin/migrate-legacy", s.migrateLegacy).Methods("POST")

	scoped := v1.NewRoute().Subrouter()
	scoped.Use(middleware.RequireWorkspace)

	scoped.HandleFunc("/directories", s.createDirectory).Methods("POST")
	scoped.HandleFunc("/directories", s.listDirectory).Methods("GET")
	scoped.HandleFunc("/directories/{id}", s.getDirectory).Methods("GET")
	scoped.HandleFunc("/directories/{id}", s.renameDirectory).Methods("PATCH")
	scoped.HandleFunc("/directories/{id}", s.deleteDirectory).Methods("DELETE")
	scoped.HandleFunc("/directories/{id}/children", s.listDirectory).Methods("GET")
	scoped.HandleFunc("/directories/{id}/move", s.moveDirectory).Methods("POST")

	scoped.HandleFunc("/documents", s.createDocument).Methods("POST")
	scoped.HandleFunc("/documents/{id}", s.getDocument).Methods("GET")
	scoped.HandleFunc("/documents/{id}", s.updateDocument).Methods("PATCH")
	scoped.HandleFunc("/documents/{id}", s.deleteDocument).Methods("DELETE")
	scoped.HandleFunc("/documents/{id}/move", s.moveDocument).Methods("POST")

	scoped.HandleFunc("/resources/{type}/{id}/shares", s.listShares).Methods("GET")
	scoped.HandleFunc("/resources/{type}/{id}/shares", s.grantShare).Methods("POST")
	scoped.HandleFunc("/resources/{type}/{id}/shares/{shareId}", s.revokeShare).Methods("DELETE")
	scoped.HandleFunc("/resources/{type}/{id}/link", s.createLink).Methods("POST")
	scoped.HandleFunc("/resources/{type}/{id}/events", s.listEvents).Methods("GET")
}
