package access

import (
	"context"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

// Listing is one page of a directory's visible contents. Totals count
// visible items only, never what the filter dropped.
type Listing struct {
	Directories      []*resources.Directory `json:"directories"`
	Documents        []*resources.Document  `json:"documents"`
	TotalDirectories int                    `json:"total_directories"`
	TotalDocuments   int                    `json:"total_documents"`
}

// ListVisible lists a directory's children and documents, keeping only
// items the principal can at least view. Pagination runs after filtering,
// applied to directories and documents independently.
func (r *Resolver) ListVisible(ctx context.Context, tc *tenancy.Context, grant *sharing.LinkGrant, parentID *string, offset, limit int) (*Listing, error) {
	parent := ""
	if parentID != nil {
		parent = *parentID
	}
	if err := r.Require(ctx, tc, grant, resources.TypeDirectory, parent, auth.RoleViewer); err != nil {
		return nil, err
	}

	children, err := r.resources.ListChildren(ctx, tc.Domain, tc.WorkspaceID, parentID)
	if err != nil {
		return nil, err
	}
	documents, err := r.resources.ListDocumentsByDirectory(ctx, tc.Domain, tc.WorkspaceID, parentID)
	if err != nil {
		return nil, err
	}

	visibleDirs := make([]*resources.Directory, 0, len(children))
	for _, dir := range children {
		role, err := r.RoleFor(ctx, tc, grant, resources.TypeDirectory, dir.ID)
		if err != nil {
			return nil, err
		}
		if role.AtLeast(auth.RoleViewer) {
			visibleDirs = append(visibleDirs, dir)
		}
	}

	visibleDocs := make([]*resources.Document, 0, len(documents))
	for _, doc := range documents {
		role, err := r.RoleFor(ctx, tc, grant, resources.TypeDocument, doc.ID)
		if err != nil {
			return nil, err
		}
		if role.AtLeast(auth.RoleViewer) {
			visibleDocs = append(visibleDocs, doc)
		}
	}

	listing := &Listing{
		TotalDirectories: len(visibleDirs),
		TotalDocuments:   len(visibleDocs),
	}
	listing.Directories = paginate(visibleDirs, offset, limit)
	listing.Documents = paginate(visibleDocs, offset, limit)
	return listing, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
