package api

import (
	"time"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
)

// createDirectoryRequest creates a directory under an optional parent
type createDirectoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

// renameDirectoryRequest renames a directory
type renameDirectoryRequest struct {
	Name string `json:"name"`
}

// moveDirectoryRequest reparents a directory; nil moves it to the root
type moveDirectoryRequest struct {
	NewParentID *string `json:"new_parent_id,omitempty"`
}

// createDocumentRequest creates a document, optionally inside a directory
type createDocumentRequest struct {
	Title            string            `json:"title"`
	DirectoryID      *string           `json:"directory_id,omitempty"`
	DocType          resources.DocType `json:"doc_type,omitempty"`
	LinkedDocumentID *string           `json:"linked_document_id,omitempty"`
}

// updateDocumentRequest retitles a document
type updateDocumentRequest struct {
	Title string `json:"title"`
}

// moveDocumentRequest reparks a document; nil moves it to the workspace root
type moveDocumentRequest struct {
	DirectoryID *string `json:"directory_id,omitempty"`
}

// grantShareRequest grants a role to a user or workspace over a resource
type grantShareRequest struct {
	Scope       sharing.Scope `json:"scope"`
	PrincipalID string        `json:"principal_id"`
	Role        auth.Role     `json:"role"`
}

// createLinkRequest issues or rotates the resource's share link
type createLinkRequest struct {
	Role      auth.Role  `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createLinkResponse returns the freshly issued token
type createLinkResponse struct {
	Token     string     `json:"token"`
	Role      auth.Role  `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createWorkspaceRequest creates a workspace in the admin's domain
type createWorkspaceRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// addMemberRequest adds or reactivates a workspace member
type addMemberRequest struct {
	UserID string             `json:"user_id"`
	Role   auth.WorkspaceRole `json:"role"`
}

// updateMemberRequest changes a member's workspace role
type updateMemberRequest struct {
	Role auth.WorkspaceRole `json:"role"`
}

// deleteDirectoryResponse reports what the cascade removed
type deleteDirectoryResponse struct {
	DirectoriesDeleted int64 `json:"directories_deleted"`
	DocumentsDeleted   int64 `json:"documents_deleted"`
}
