package resources

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDirectoryNotFound means no directory matched in tenant scope.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrDocumentNotFound means no document matched in tenant scope.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDirectoryConflict means a sibling with the same name already
	// exists under the target parent.
	ErrDirectoryConflict = errors.New("directory name conflict")
)

// ResourceType distinguishes the two shareable resource kinds
type ResourceType string

const (
	TypeDirectory ResourceType = "directory"
	TypeDocument  ResourceType = "document"
)

// Directory is a node in a strict tree scoped to (domain, workspace).
// ParentID nil means the node sits at the tree root. Directories are only
// ever removed through the hierarchy manager's cascading delete.
type Directory struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	ParentID    *string   `json:"parent_id,omitempty"`
	OwnerUserID string    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocType classifies documents. DRHP and RHP documents form linked pairs
// representing one logical filing across two drafts.
type DocType string

const (
	DocTypeGeneric DocType = "generic"
	DocTypeDRHP    DocType = "drhp"
	DocTypeRHP     DocType = "rhp"
)

// Valid reports whether t is a recognized document type.
func (t DocType) Valid() bool {
	switch t {
	case DocTypeGeneric, DocTypeDRHP, DocTypeRHP:
		return true
	}
	return false
}

// Document is scoped to (domain, workspace) and optionally parked in a
// directory. DirectoryID nil means the workspace root.
type Document struct {
	ID               string    `json:"id"`
	Domain           string    `json:"domain"`
	WorkspaceID      string    `json:"workspace_id"`
	DirectoryID      *string   `json:"directory_id,omitempty"`
	Title            string    `json:"title"`
	DocType          DocType   `json:"doc_type"`
	LinkedDocumentID *string   `json:"linked_document_id,omitempty"`
	OwnerUserID      string    `json:"owner_user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store is the persistence boundary for directories and documents. Every
// method is tenant-scoped by domain so cross-tenant interference is
// structurally impossible.
type Store interface {
	// Directories
	CreateDirectory(ctx context.Context, dir *Directory) error
	GetDirectory(ctx context.Context, domain, id string) (*Directory, error)
	ListChildren(ctx context.Context, domain, workspaceID string, parentID *string) ([]*Directory, error)
	RenameDirectory(ctx context.Context, domain, id, name string) error
	SetDirectoryParent(ctx context.Context, domain, id string, parentID *string) error

	// Documents
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, domain, id string) (*Document, error)
	ListDocumentsByDirectory(ctx context.Context, domain, workspaceID string, directoryID *string) ([]*Document, error)
	UpdateDocumentTitle(ctx context.Context, domain, id, title string) error
	MoveDocument(ctx context.Context, domain, id string, directoryID *string) error
	DeleteDocument(ctx context.Context, domain, id string) error

	// DeleteSubtreeContents removes all documents inside the given
	// directories, then the directories themselves, in one transaction.
	DeleteSubtreeContents(ctx context.Context, domain string, directoryIDs []string) (docsDeleted, dirsDeleted int64, err error)
}
