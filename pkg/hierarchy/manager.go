package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

var (
	// ErrSelfParentingRejected means a move targeted the directory itself.
	ErrSelfParentingRejected = errors.New("directory cannot be its own parent")

	// ErrCycleRejected means a move would place a directory under one of
	// its own descendants.
	ErrCycleRejected = errors.New("move would create a cycle")
)

// maxTreeDepth bounds ancestor walks. A stored tree deeper than this is
// treated as corrupt.
const maxTreeDepth = 256

// Manager performs structural operations on the directory tree. Access
// checks happen before the manager is called; it validates structure only.
type Manager struct {
	resources resources.Store
	recorder  events.Recorder
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewManager creates a hierarchy manager
func NewManager(res resources.Store, recorder events.Recorder, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		resources: res,
		recorder:  recorder,
		logger:    logger,
		metrics:   metrics,
	}
}

// Move reparents a directory. newParentID nil moves it to the tree root.
// Validations run in order: the directory must exist in tenant scope, the
// new parent must exist in the same tenant scope, self-parenting is
// rejected, and an ancestor walk from the new parent rejects any move that
// would put the directory beneath its own subtree.
func (m *Manager) Move(ctx context.Context, tc *tenancy.Context, directoryID string, newParentID *string) error {
	if err := m.move(ctx, tc, directoryID, newParentID); err != nil {
		m.countMove("rejected")
		return err
	}
	m.countMove("ok")
	return nil
}

func (m *Manager) move(ctx context.Context, tc *tenancy.Context, directoryID string, newParentID *string) error {
	dir, err := m.resources.GetDirectory(ctx, tc.Domain, directoryID)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == dir.ID {
			return ErrSelfParentingRejected
		}

		parent, err := m.resources.GetDirectory(ctx, tc.Domain, *newParentID)
		if err != nil {
			return err
		}
		if parent.WorkspaceID != dir.WorkspaceID {
			return resources.ErrDirectoryNotFound
		}

		if err := m.checkCycle(ctx, tc.Domain, dir.ID, parent); err != nil {
			return err
		}
	}

	if err := m.resources.SetDirectoryParent(ctx, tc.Domain, dir.ID, newParentID); err != nil {
		return err
	}

	m.recorder.Record(ctx, &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &dir.WorkspaceID,
		EventType:    "directory.moved",
		ResourceType: resources.TypeDirectory,
		ResourceID:   dir.ID,
		ActorUserID:  actorID(tc),
		Payload:      movePayload(dir.ParentID, newParentID),
	})
	return nil
}

// checkCycle walks ancestors from the prospective parent. Hitting the
// moved directory on the way up means the parent sits inside its subtree.
func (m *Manager) checkCycle(ctx context.Context, domain, movedID string, parent *resources.Directory) error {
	current := parent
	for depth := 0; depth < maxTreeDepth; depth++ {
		if current.ID == movedID {
			return ErrCycleRejected
		}
		if current.ParentID == nil {
			return nil
		}
		next, err := m.resources.GetDirectory(ctx, domain, *current.ParentID)
		if err != nil {
			if errors.Is(err, resources.ErrDirectoryNotFound) {
				// Dangling parent pointer terminates the walk.
				return nil
			}
			return err
		}
		current = next
	}
	return fmt.Errorf("ancestor walk exceeded %d levels", maxTreeDepth)
}

// DeleteResult summarizes a cascading delete
type DeleteResult struct {
	DirectoriesDeleted int64 `json:"directories_deleted"`
	DocumentsDeleted   int64 `json:"documents_deleted"`
}

// Delete removes a directory and everything beneath it. The traversal is
// breadth-first with a visited set so an inconsistent tree still
// terminates; collection and deletion are strictly separated, and both
// bulk deletes run in one transaction. One event records the root
// deletion; children are not individually reported.
func (m *Manager) Delete(ctx context.Context, tc *tenancy.Context, directoryID string) (*DeleteResult, error) {
	root, err := m.resources.GetDirectory(ctx, tc.Domain, directoryID)
	if err != nil {
		return nil, err
	}

	ids, err := m.collectSubtree(ctx, tc.Domain, root)
	if err != nil {
		return nil, err
	}

	docs, dirs, err := m.resources.DeleteSubtreeContents(ctx, tc.Domain, ids)
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.CascadeDeletesTotal.Inc()
		m.metrics.CascadeDeletedEntities.WithLabelValues("directory").Add(float64(dirs))
		m.metrics.CascadeDeletedEntities.WithLabelValues("document").Add(float64(docs))
	}

	m.recorder.Record(ctx, &events.Event{
		Domain:       tc.Domain,
		WorkspaceID:  &root.WorkspaceID,
		EventType:    "directory.deleted",
		ResourceType: resources.TypeDirectory,
		ResourceID:   root.ID,
		ActorUserID:  actorID(tc),
		Payload: map[string]interface{}{
			"directories_deleted": dirs,
			"documents_deleted":   docs,
		},
	})

	return &DeleteResult{DirectoriesDeleted: dirs, DocumentsDeleted: docs}, nil
}

// collectSubtree gathers the ids of the root and every directory beneath
// it from a consistent read pass over the tree.
func (m *Manager) collectSubtree(ctx context.Context, domain string, root *resources.Directory) ([]string, error) {
	visited := map[string]bool{root.ID: true}
	ids := []string{root.ID}
	queue := []*resources.Directory{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := m.resources.ListChildren(ctx, domain, current.WorkspaceID, &current.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list children of %s: %w", current.ID, err)
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			ids = append(ids, child.ID)
			queue = append(queue, child)
		}
	}
	return ids, nil
}

func (m *Manager) countMove(outcome string) {
	if m.metrics != nil {
		m.metrics.DirectoryMovesTotal.WithLabelValues(outcome).Inc()
	}
}

func actorID(tc *tenancy.Context) *string {
	if tc.Principal == nil || tc.Principal.UserID == "" {
		return nil
	}
	id := tc.Principal.UserID
	return &id
}

func movePayload(oldParent, newParent *string) map[string]interface{} {
	payload := map[string]interface{}{}
	if oldParent != nil {
		payload["old_parent_id"] = *oldParent
	}
	if newParent != nil {
		payload["new_parent_id"] = *newParent
	}
	return payload
}
