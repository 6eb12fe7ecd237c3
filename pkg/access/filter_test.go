package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/pkg/resources"
)

func TestListVisible_FiltersByRole(t *testing.T) {
	res := newFakeResourceStore()
	res.directories["parent"] = &resources.Directory{ID: "parent", Domain: "acme.com", WorkspaceID: "ws1", Name: "root", OwnerUserID: "u1"}
	res.directories["mine"] = &resources.Directory{ID: "mine", Domain: "acme.com", WorkspaceID: "ws1", Name: "mine", ParentID: strPtr("parent"), OwnerUserID: "u1"}
	res.directories["theirs"] = &resources.Directory{ID: "theirs", Domain: "acme.com", WorkspaceID: "ws1", Name: "theirs", ParentID: strPtr("parent"), OwnerUserID: "u9"}
	res.documents["doc1"] = &resources.Document{ID: "doc1", Domain: "acme.com", WorkspaceID: "ws1", Title: "shared doc", DirectoryID: strPtr("parent"), OwnerUserID: "u9"}

	resolver := testAccessResolver(res, &fakeShareStore{}, nil)
	tc := memberContext("u1", "acme.com", "ws1")

	listing, err := resolver.ListVisible(context.Background(), tc, nil, strPtr("parent"), 0, 50)
	require.NoError(t, err)

	// the unshared sibling is dropped, the document stays visible through
	// workspace co-membership
	require.Len(t, listing.Directories, 1)
	assert.Equal(t, "mine", listing.Directories[0].ID)
	assert.Equal(t, 1, listing.TotalDirectories)
	require.Len(t, listing.Documents, 1)
	assert.Equal(t, "doc1", listing.Documents[0].ID)
}

func TestListVisible_DeniedParent(t *testing.T) {
	res := newFakeResourceStore()
	res.directories["parent"] = &resources.Directory{ID: "parent", Domain: "acme.com", WorkspaceID: "ws1", Name: "root", OwnerUserID: "u9"}

	resolver := testAccessResolver(res, &fakeShareStore{}, nil)
	tc := memberContext("u1", "acme.com", "ws1")

	_, err := resolver.ListVisible(context.Background(), tc, nil, strPtr("parent"), 0, 50)
	assert.ErrorIs(t, err, ErrInsufficientPermissions)
}

func TestListVisible_PaginationAfterFilter(t *testing.T) {
	res := newFakeResourceStore()
	names := []string{"a", "b", "c"}
	for _, n := range names {
		res.directories[n] = &resources.Directory{ID: n, Domain: "acme.com", WorkspaceID: "ws1", Name: n, OwnerUserID: "u1"}
	}

	resolver := testAccessResolver(res, &fakeShareStore{}, nil)
	tc := memberContext("u1", "acme.com", "ws1")

	listing, err := resolver.ListVisible(context.Background(), tc, nil, nil, 0, 2)
	require.NoError(t, err)
	assert.Len(t, listing.Directories, 2)
	assert.Equal(t, 3, listing.TotalDirectories)

	listing, err = resolver.ListVisible(context.Background(), tc, nil, nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, listing.Directories, 1)
	assert.Equal(t, 3, listing.TotalDirectories)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, paginate(items, 0, 2))
	assert.Equal(t, []int{3, 4}, paginate(items, 2, 2))
	assert.Equal(t, []int{5}, paginate(items, 4, 2))
	assert.Empty(t, paginate(items, 10, 2))
	assert.Equal(t, items, paginate(items, 0, 0))
}
