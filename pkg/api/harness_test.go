package api

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/pkg/access"
	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/hierarchy"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// fakeTenantStore is an in-memory tenancy.Store

type fakeTenantStore struct {
	mu          sync.Mutex
	domains     map[string]*tenancy.Domain
	workspaces  map[string]*tenancy.Workspace
	memberships map[string]*tenancy.WorkspaceMembership
	states      map[string]*tenancy.UserTenantState
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{
		domains:     map[string]*tenancy.Domain{},
		workspaces:  map[string]*tenancy.Workspace{},
		memberships: map[string]*tenancy.WorkspaceMembership{},
		states:      map[string]*tenancy.UserTenantState{},
	}
}

func membershipKey(workspaceID, userID string) string {
	return workspaceID + "/" + userID
}

func (s *fakeTenantStore) EnsureDomain(_ context.Context, name string) (*tenancy.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.domains[name]; ok {
		return d, nil
	}
	d := &tenancy.Domain{Name: name, CreatedAt: time.Now()}
	s.domains[name] = d
	return d, nil
}

func (s *fakeTenantStore) GetDomain(_ context.Context, name string) (*tenancy.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.domains[name]; ok {
		return d, nil
	}
	return nil, tenancy.ErrWorkspaceNotFound
}

func (s *fakeTenantStore) CreateWorkspace(_ context.Context, ws *tenancy.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.workspaces {
		if existing.Domain == ws.Domain && existing.Slug == ws.Slug {
			return tenancy.ErrWorkspaceExists
		}
	}
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	ws.CreatedAt = time.Now()
	s.workspaces[ws.ID] = ws
	return nil
}

func (s *fakeTenantStore) GetWorkspace(_ context.Context, id string) (*tenancy.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workspaces[id]; ok {
		return ws, nil
	}
	return nil, tenancy.ErrWorkspaceNotFound
}

func (s *fakeTenantStore) GetWorkspaceBySlug(_ context.Context, domain, slug string) (*tenancy.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.workspaces {
		if ws.Domain == domain && ws.Slug == slug {
			return ws, nil
		}
	}
	return nil, tenancy.ErrWorkspaceNotFound
}

func (s *fakeTenantStore) ListWorkspacesByDomain(_ context.Context, domain string) ([]*tenancy.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tenancy.Workspace
	for _, ws := range s.workspaces {
		if ws.Domain == domain {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (s *fakeTenantStore) ArchiveWorkspace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[id]
	if !ok {
		return tenancy.ErrWorkspaceNotFound
	}
	ws.Status = tenancy.WorkspaceStatusArchived
	return nil
}

func (s *fakeTenantStore) AddMembership(_ context.Context, m *tenancy.WorkspaceMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.JoinedAt = time.Now()
	s.memberships[membershipKey(m.WorkspaceID, m.UserID)] = m
	return nil
}

func (s *fakeTenantStore) GetMembership(_ context.Context, workspaceID, userID string) (*tenancy.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.memberships[membershipKey(workspaceID, userID)]; ok {
		return m, nil
	}
	return nil, tenancy.ErrMembershipNotFound
}

func (s *fakeTenantStore) ListActiveMemberships(_ context.Context, userID string) ([]*tenancy.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tenancy.WorkspaceMembership
	for _, m := range s.memberships {
		if m.UserID == userID && m.Status == tenancy.MembershipStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeTenantStore) ListWorkspaceMembers(_ context.Context, workspaceID string) ([]*tenancy.WorkspaceMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tenancy.WorkspaceMembership
	for _, m := range s.memberships {
		if m.WorkspaceID == workspaceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeTenantStore) UpdateMembershipRole(_ context.Context, workspaceID, userID string, role auth.WorkspaceRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return tenancy.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (s *fakeTenantStore) RevokeMembership(_ context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return tenancy.ErrMembershipNotFound
	}
	m.Status = tenancy.MembershipStatusRevoked
	return nil
}

func (s *fakeTenantStore) GetUserTenantState(_ context.Context, userID string) (*tenancy.UserTenantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		return st, nil
	}
	return &tenancy.UserTenantState{UserID: userID}, nil
}

func (s *fakeTenantStore) SetDefaultWorkspace(_ context.Context, userID, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		st = &tenancy.UserTenantState{UserID: userID}
		s.states[userID] = st
	}
	st.DefaultWorkspaceID = &workspaceID
	return nil
}

func (s *fakeTenantStore) ListLegacyCarriers(_ context.Context, limit int) ([]*tenancy.UserTenantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tenancy.UserTenantState
	for _, st := range s.states {
		if len(st.LegacyWorkspaces) > 0 {
			out = append(out, st)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeTenantStore) ClearLegacyWorkspaces(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[userID]; ok {
		st.LegacyWorkspaces = nil
	}
	return nil
}

// fakeResourceStore is an in-memory resources.Store

type fakeResourceStore struct {
	mu   sync.Mutex
	dirs map[string]*resources.Directory
	docs map[string]*resources.Document
}

func newFakeResourceStore() *fakeResourceStore {
	return &fakeResourceStore{
		dirs: map[string]*resources.Directory{},
		docs: map[string]*resources.Document{},
	}
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *fakeResourceStore) CreateDirectory(_ context.Context, dir *resources.Directory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dirs {
		if d.Domain == dir.Domain && d.WorkspaceID == dir.WorkspaceID && d.Name == dir.Name && sameParent(d.ParentID, dir.ParentID) {
			return resources.ErrDirectoryConflict
		}
	}
	if dir.ID == "" {
		dir.ID = uuid.New().String()
	}
	dir.CreatedAt = time.Now()
	s.dirs[dir.ID] = dir
	return nil
}

func (s *fakeResourceStore) GetDirectory(_ context.Context, domain, id string) (*resources.Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dirs[id]; ok && d.Domain == domain {
		return d, nil
	}
	return nil, resources.ErrDirectoryNotFound
}

func (s *fakeResourceStore) ListChildren(_ context.Context, domain, workspaceID string, parentID *string) ([]*resources.Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resources.Directory
	for _, d := range s.dirs {
		if d.Domain == domain && d.WorkspaceID == workspaceID && sameParent(d.ParentID, parentID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeResourceStore) RenameDirectory(_ context.Context, domain, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dirs[id]
	if !ok || d.Domain != domain {
		return resources.ErrDirectoryNotFound
	}
	d.Name = name
	return nil
}

func (s *fakeResourceStore) SetDirectoryParent(_ context.Context, domain, id string, parentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dirs[id]
	if !ok || d.Domain != domain {
		return resources.ErrDirectoryNotFound
	}
	d.ParentID = parentID
	return nil
}

func (s *fakeResourceStore) CreateDocument(_ context.Context, doc *resources.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now()
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeResourceStore) GetDocument(_ context.Context, domain, id string) (*resources.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok && d.Domain == domain {
		return d, nil
	}
	return nil, resources.ErrDocumentNotFound
}

func (s *fakeResourceStore) ListDocumentsByDirectory(_ context.Context, domain, workspaceID string, directoryID *string) ([]*resources.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resources.Document
	for _, d := range s.docs {
		if d.Domain == domain && d.WorkspaceID == workspaceID && sameParent(d.DirectoryID, directoryID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeResourceStore) UpdateDocumentTitle(_ context.Context, domain, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.Domain != domain {
		return resources.ErrDocumentNotFound
	}
	d.Title = title
	return nil
}

func (s *fakeResourceStore) MoveDocument(_ context.Context, domain, id string, directoryID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.Domain != domain {
		return resources.ErrDocumentNotFound
	}
	d.DirectoryID = directoryID
	return nil
}

func (s *fakeResourceStore) DeleteDocument(_ context.Context, domain, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok || d.Domain != domain {
		return resources.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *fakeResourceStore) DeleteSubtreeContents(_ context.Context, domain string, directoryIDs []string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := map[string]bool{}
	for _, id := range directoryIDs {
		members[id] = true
	}
	var docsDeleted, dirsDeleted int64
	for id, doc := range s.docs {
		if doc.Domain == domain && doc.DirectoryID != nil && members[*doc.DirectoryID] {
			delete(s.docs, id)
			docsDeleted++
		}
	}
	for id, dir := range s.dirs {
		if dir.Domain == domain && members[id] {
			delete(s.dirs, id)
			dirsDeleted++
		}
	}
	return docsDeleted, dirsDeleted, nil
}

// fakeShareStore is an in-memory sharing.Store

type fakeShareStore struct {
	mu     sync.Mutex
	nextID int64
	shares map[int64]*sharing.SharePermission
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{shares: map[int64]*sharing.SharePermission{}}
}

func (s *fakeShareStore) GrantShare(_ context.Context, share *sharing.SharePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shares {
		if existing.Domain == share.Domain && existing.ResourceType == share.ResourceType &&
			existing.ResourceID == share.ResourceID && existing.Scope == share.Scope &&
			existing.PrincipalID != nil && share.PrincipalID != nil && *existing.PrincipalID == *share.PrincipalID {
			existing.Role = share.Role
			share.ID = existing.ID
			return nil
		}
	}
	s.nextID++
	share.ID = s.nextID
	share.CreatedAt = time.Now()
	s.shares[share.ID] = share
	return nil
}

func (s *fakeShareStore) RevokeShare(_ context.Context, domain string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[id]
	if !ok || share.Domain != domain {
		return sharing.ErrShareNotFound
	}
	delete(s.shares, id)
	return nil
}

func (s *fakeShareStore) ListSharesForResource(_ context.Context, domain string, resourceType resources.ResourceType, resourceID string) ([]*sharing.SharePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*sharing.SharePermission
	for _, share := range s.shares {
		if share.Domain == domain && share.ResourceType == resourceType && share.ResourceID == resourceID {
			out = append(out, share)
		}
	}
	return out, nil
}

func (s *fakeShareStore) GetShareForPrincipal(_ context.Context, domain string, resourceType resources.ResourceType, resourceID string, scope sharing.Scope, principalID string) (*sharing.SharePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, share := range s.shares {
		if share.Domain == domain && share.ResourceType == resourceType && share.ResourceID == resourceID &&
			share.Scope == scope && share.PrincipalID != nil && *share.PrincipalID == principalID {
			return share, nil
		}
	}
	return nil, sharing.ErrShareNotFound
}

func (s *fakeShareStore) UpsertLinkShare(_ context.Context, share *sharing.SharePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.shares {
		if existing.Scope == sharing.ScopeLink && existing.Domain == share.Domain &&
			existing.ResourceType == share.ResourceType && existing.ResourceID == share.ResourceID {
			delete(s.shares, id)
		}
	}
	s.nextID++
	share.ID = s.nextID
	share.CreatedAt = time.Now()
	s.shares[share.ID] = share
	return nil
}

func (s *fakeShareStore) GetLinkShareByToken(_ context.Context, token string) (*sharing.SharePermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, share := range s.shares {
		if share.Scope == sharing.ScopeLink && share.LinkToken != nil && *share.LinkToken == token {
			return share, nil
		}
	}
	return nil, sharing.ErrInvalidLink
}

func (s *fakeShareStore) DeleteExpiredLinkShares(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, share := range s.shares {
		if share.Scope == sharing.ScopeLink && share.ExpiresAt != nil && share.ExpiresAt.Before(before) {
			delete(s.shares, id)
			n++
		}
	}
	return n, nil
}

// memRecorder captures events in memory

type memRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *memRecorder) Record(_ context.Context, event *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *memRecorder) ListForResource(_ context.Context, domain string, resourceType resources.ResourceType, resourceID string, limit int) ([]*events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.Event
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Domain == domain && e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// testEnv bundles a fully wired server over in-memory stores
type testEnv struct {
	server    *Server
	tenants   *fakeTenantStore
	resources *fakeResourceStore
	shares    *fakeShareStore
	recorder  *memRecorder
}

func newTestEnv() *testEnv {
	logger := testLogger()
	tenants := newFakeTenantStore()
	res := newFakeResourceStore()
	shares := newFakeShareStore()
	recorder := &memRecorder{}

	accessResolver := access.NewResolver(res, shares, nil, logger, nil)
	issuer := sharing.NewIssuer(shares, logger, nil)

	server := NewServer(Deps{
		Tenants:   tenants,
		Resources: res,
		Shares:    shares,
		Resolver:  tenancy.NewResolver(tenants, logger, nil),
		Access:    accessResolver,
		Hierarchy: hierarchy.NewManager(res, recorder, logger, nil),
		Links:     issuer,
		Migrator:  tenancy.NewMigrator(tenants, logger),
		Recorder:  recorder,
		Logger:    logger,
	})
	return &testEnv{
		server:    server,
		tenants:   tenants,
		resources: res,
		shares:    shares,
		recorder:  recorder,
	}
}

// seed creates the standard fixture: workspace "eng" in acme.com owned by
// "owner1" with member "u1" (editor), a root directory and a document.
func (e *testEnv) seed() (wsID, dirID, docID string) {
	ctx := context.Background()
	e.tenants.EnsureDomain(ctx, "acme.com")
	ws := &tenancy.Workspace{ID: "ws1", Domain: "acme.com", Slug: "eng", Name: "Engineering", OwnerUserID: "owner1", Status: tenancy.WorkspaceStatusActive}
	e.tenants.CreateWorkspace(ctx, ws)
	e.tenants.AddMembership(ctx, &tenancy.WorkspaceMembership{WorkspaceID: "ws1", UserID: "owner1", Role: auth.WorkspaceRoleAdmin, Status: tenancy.MembershipStatusActive})
	e.tenants.AddMembership(ctx, &tenancy.WorkspaceMembership{WorkspaceID: "ws1", UserID: "u1", Role: auth.WorkspaceRoleEditor, Status: tenancy.MembershipStatusActive})

	dir := &resources.Directory{ID: "d1", Domain: "acme.com", WorkspaceID: "ws1", Name: "filings", OwnerUserID: "owner1"}
	e.resources.CreateDirectory(ctx, dir)
	doc := &resources.Document{ID: "doc1", Domain: "acme.com", WorkspaceID: "ws1", DirectoryID: &dir.ID, Title: "Draft", DocType: resources.DocTypeGeneric, OwnerUserID: "owner1"}
	e.resources.CreateDocument(ctx, doc)
	return ws.ID, dir.ID, doc.ID
}
