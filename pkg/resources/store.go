package resources

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a resource store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateDirectory inserts a directory. Returns ErrDirectoryConflict when a
// sibling with the same name exists under the parent.
func (s *PostgresStore) CreateDirectory(ctx context.Context, dir *Directory) error {
	if dir.ID == "" {
		dir.ID = uuid.NewString()
	}
	now := time.Now()
	dir.CreatedAt = now
	dir.UpdatedAt = now

	query := `
		INSERT INTO directories (id, domain, workspace_id, name, parent_id, owner_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		dir.ID, dir.Domain, dir.WorkspaceID, dir.Name, dir.ParentID, dir.OwnerUserID, dir.CreatedAt, dir.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDirectoryConflict
		}
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

const directoryColumns = `id, domain, workspace_id, name, parent_id, owner_user_id, created_at, updated_at`

func scanDirectory(row interface{ Scan(...interface{}) error }) (*Directory, error) {
	d := &Directory{}
	err := row.Scan(&d.ID, &d.Domain, &d.WorkspaceID, &d.Name, &d.ParentID,
		&d.OwnerUserID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDirectory retrieves a directory within the domain
func (s *PostgresStore) GetDirectory(ctx context.Context, domain, id string) (*Directory, error) {
	query := `SELECT ` + directoryColumns + ` FROM directories WHERE domain = $1 AND id = $2`

	d, err := scanDirectory(s.db.QueryRowContext(ctx, query, domain, id))
	if err == sql.ErrNoRows {
		return nil, ErrDirectoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory: %w", err)
	}
	return d, nil
}

// ListChildren lists the direct children of a directory. A nil parentID
// lists the workspace's root-level directories.
func (s *PostgresStore) ListChildren(ctx context.Context, domain, workspaceID string, parentID *string) ([]*Directory, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		query := `SELECT ` + directoryColumns + ` FROM directories
			WHERE domain = $1 AND workspace_id = $2 AND parent_id IS NULL ORDER BY name`
		rows, err = s.db.QueryContext(ctx, query, domain, workspaceID)
	} else {
		query := `SELECT ` + directoryColumns + ` FROM directories
			WHERE domain = $1 AND workspace_id = $2 AND parent_id = $3 ORDER BY name`
		rows, err = s.db.QueryContext(ctx, query, domain, workspaceID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var dirs []*Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// RenameDirectory changes a directory's name
func (s *PostgresStore) RenameDirectory(ctx context.Context, domain, id, name string) error {
	query := `UPDATE directories SET name = $3, updated_at = $4 WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id, name, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDirectoryConflict
		}
		return fmt.Errorf("failed to rename directory: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

// SetDirectoryParent updates the parent pointer. Validation (existence,
// self-parenting, cycles) happens in the hierarchy manager before this is
// called.
func (s *PostgresStore) SetDirectoryParent(ctx context.Context, domain, id string, parentID *string) error {
	query := `UPDATE directories SET parent_id = $3, updated_at = $4 WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id, parentID, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDirectoryConflict
		}
		return fmt.Errorf("failed to set directory parent: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

// CreateDocument inserts a document
func (s *PostgresStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.DocType == "" {
		doc.DocType = DocTypeGeneric
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `
		INSERT INTO documents (id, domain, workspace_id, directory_id, title, doc_type, linked_document_id, owner_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Domain, doc.WorkspaceID, doc.DirectoryID, doc.Title,
		doc.DocType, doc.LinkedDocumentID, doc.OwnerUserID, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

const documentColumns = `id, domain, workspace_id, directory_id, title, doc_type, linked_document_id, owner_user_id, created_at, updated_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	d := &Document{}
	err := row.Scan(&d.ID, &d.Domain, &d.WorkspaceID, &d.DirectoryID, &d.Title,
		&d.DocType, &d.LinkedDocumentID, &d.OwnerUserID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument retrieves a document within the domain
func (s *PostgresStore) GetDocument(ctx context.Context, domain, id string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE domain = $1 AND id = $2`

	d, err := scanDocument(s.db.QueryRowContext(ctx, query, domain, id))
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListDocumentsByDirectory lists documents in a directory. A nil
// directoryID lists workspace-root documents.
func (s *PostgresStore) ListDocumentsByDirectory(ctx context.Context, domain, workspaceID string, directoryID *string) ([]*Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if directoryID == nil {
		query := `SELECT ` + documentColumns + ` FROM documents
			WHERE domain = $1 AND workspace_id = $2 AND directory_id IS NULL ORDER BY title`
		rows, err = s.db.QueryContext(ctx, query, domain, workspaceID)
	} else {
		query := `SELECT ` + documentColumns + ` FROM documents
			WHERE domain = $1 AND workspace_id = $2 AND directory_id = $3 ORDER BY title`
		rows, err = s.db.QueryContext(ctx, query, domain, workspaceID, *directoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentTitle changes a document's title
func (s *PostgresStore) UpdateDocumentTitle(ctx context.Context, domain, id, title string) error {
	query := `UPDATE documents SET title = $3, updated_at = $4 WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id, title, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update document title: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// MoveDocument reparks a document in another directory, or at the
// workspace root when directoryID is nil
func (s *PostgresStore) MoveDocument(ctx context.Context, domain, id string, directoryID *string) error {
	query := `UPDATE documents SET directory_id = $3, updated_at = $4 WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id, directoryID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to move document: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument removes a single document
func (s *PostgresStore) DeleteDocument(ctx context.Context, domain, id string) error {
	query := `DELETE FROM documents WHERE domain = $1 AND id = $2`

	result, err := s.db.ExecContext(ctx, query, domain, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteSubtreeContents removes all documents parked in the given
// directories and then the directories themselves. Both bulk deletes run
// in one transaction so a failure leaves neither orphaned documents nor a
// half-removed tree.
func (s *PostgresStore) DeleteSubtreeContents(ctx context.Context, domain string, directoryIDs []string) (docsDeleted, dirsDeleted int64, err error) {
	if len(directoryIDs) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE domain = $1 AND directory_id = ANY($2)`,
		domain, pq.Array(directoryIDs))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	docsDeleted, _ = result.RowsAffected()

	result, err = tx.ExecContext(ctx,
		`DELETE FROM directories WHERE domain = $1 AND id = ANY($2)`,
		domain, pq.Array(directoryIDs))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete directories: %w", err)
	}
	dirsDeleted, _ = result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit subtree delete: %w", err)
	}
	return docsDeleted, dirsDeleted, nil
}
