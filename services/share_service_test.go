package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/models"
)

func TestGrantCreatesGranteeResourcePairs(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	f.newUser(t, "carol")
	ctx := context.Background()

	folder := f.newFolder(t, alice, "team", alice.HomeFolderURI)
	file := f.uploadFile(t, alice, "plan.pdf", alice.HomeFolderURI, randomContent(t, 30))

	shares, err := f.share.Grant(ctx, alice.ID, []string{"bob", "carol"}, []ResourceGrant{
		{URI: folder.URI, ResourceType: models.ResourceTypeFolder},
		{URI: file.URI, ResourceType: models.ResourceTypeFile},
	})
	require.NoError(t, err)
	require.Len(t, shares, 4)

	for _, share := range shares {
		assert.False(t, share.ID.IsZero())
		assert.Equal(t, alice.ID, share.GrantorID)
		assert.False(t, share.SharedWithEveryone())
	}
	assert.Equal(t, "team", shares[0].Name)
	assert.Equal(t, "plan.pdf", shares[1].Name)

	listed, err := f.share.ListGrantedBy(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestGrantRejectsBatchAsUnit(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	ctx := context.Background()

	file := f.uploadFile(t, alice, "plan.pdf", alice.HomeFolderURI, randomContent(t, 30))

	// Unknown resource in the batch.
	_, err := f.share.Grant(ctx, alice.ID, []string{"bob"}, []ResourceGrant{
		{URI: file.URI, ResourceType: models.ResourceTypeFile},
		{URI: "ghost", ResourceType: models.ResourceTypeFile},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// Unknown grantee.
	_, err = f.share.Grant(ctx, alice.ID, []string{"bob", "mallory"}, []ResourceGrant{
		{URI: file.URI, ResourceType: models.ResourceTypeFile},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// Bad resource type.
	_, err = f.share.Grant(ctx, alice.ID, []string{"bob"}, []ResourceGrant{
		{URI: file.URI, ResourceType: "note"},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// Nothing from any failed batch sticks.
	listed, err := f.share.ListGrantedBy(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestGrantRejectsIncompleteFile(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	ctx := context.Background()

	partial, err := f.upload.Ingest(ctx, &UploadRequest{
		UserID:          alice.ID,
		ParentFolderURI: alice.HomeFolderURI,
		LocalName:       "partial.bin",
		ContentHash:     "hash-partial",
		DeclaredSize:    100,
		Body:            &brokenReader{data: randomContent(t, 40)},
	})
	require.NoError(t, err)

	_, err = f.share.Grant(ctx, alice.ID, []string{"bob"}, []ResourceGrant{
		{URI: partial.File.URI, ResourceType: models.ResourceTypeFile},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	carol := f.newUser(t, "carol")
	ctx := context.Background()

	folder := f.newFolder(t, alice, "team", alice.HomeFolderURI)
	share := f.grantFolder(t, alice, "bob", folder.URI, nil)

	got, err := f.share.Authorize(ctx, share.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, share.ID, got.ID)

	// The wrong grantee, or no user at all, sees nothing.
	_, err = f.share.Authorize(ctx, share.ID, carol)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = f.share.Authorize(ctx, share.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// An open grant works for anyone, signed in or not.
	open := f.grantFolder(t, alice, "", folder.URI, nil)
	_, err = f.share.Authorize(ctx, open.ID, nil)
	assert.NoError(t, err)
	_, err = f.share.Authorize(ctx, open.ID, carol)
	assert.NoError(t, err)
}

func TestResolveAccess(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	ctx := context.Background()

	shared := f.newFolder(t, alice, "shared", alice.HomeFolderURI)
	sub := f.newFolder(t, alice, "sub", shared.URI)
	secret := f.newFolder(t, alice, "secret", shared.URI)
	nested := f.uploadFile(t, alice, "nested.txt", sub.URI, randomContent(t, 20))
	outside := f.uploadFile(t, alice, "outside.txt", alice.HomeFolderURI, randomContent(t, 20))

	share := f.grantFolder(t, alice, "bob", shared.URI, []string{secret.URI})

	assert.NoError(t, f.share.ResolveAccess(ctx, share, shared.URI, models.ResourceTypeFolder))
	assert.NoError(t, f.share.ResolveAccess(ctx, share, sub.URI, models.ResourceTypeFolder))
	assert.NoError(t, f.share.ResolveAccess(ctx, share, nested.URI, models.ResourceTypeFile))

	err := f.share.ResolveAccess(ctx, share, secret.URI, models.ResourceTypeFolder)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	err = f.share.ResolveAccess(ctx, share, outside.URI, models.ResourceTypeFile)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// The granted URI accessed as the wrong kind is not a match.
	err = f.share.ResolveAccess(ctx, share, shared.URI, models.ResourceTypeFile)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListSharedChildrenFiltersExcluded(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	ctx := context.Background()

	shared := f.newFolder(t, alice, "shared", alice.HomeFolderURI)
	f.newFolder(t, alice, "visible", shared.URI)
	secret := f.newFolder(t, alice, "secret", shared.URI)
	f.uploadFile(t, alice, "open.txt", shared.URI, randomContent(t, 20))
	hidden := f.uploadFile(t, alice, "hidden.txt", shared.URI, randomContent(t, 20))

	share := f.grantFolder(t, alice, "bob", shared.URI, []string{secret.URI, hidden.URI})

	listing, err := f.share.ListSharedChildren(ctx, share, shared.URI)
	require.NoError(t, err)
	require.Len(t, listing.Folders, 1)
	assert.Equal(t, "visible", listing.Folders[0].Name)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "open.txt", listing.Files[0].Name)

	// Listing an excluded folder through the share is denied outright.
	_, err = f.share.ListSharedChildren(ctx, share, secret.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}

func TestGrantedResource(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	f.newUser(t, "bob")
	ctx := context.Background()

	file := f.uploadFile(t, alice, "plan.pdf", alice.HomeFolderURI, randomContent(t, 20))
	shares, err := f.share.Grant(ctx, alice.ID, []string{"bob"}, []ResourceGrant{
		{URI: file.URI, ResourceType: models.ResourceTypeFile},
	})
	require.NoError(t, err)

	resource, err := f.share.GrantedResource(ctx, &shares[0])
	require.NoError(t, err)
	record, ok := resource.(*models.FileRecord)
	require.True(t, ok)
	assert.Equal(t, file.URI, record.URI)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	mallory := f.newUser(t, "mallory")
	f.newUser(t, "bob")
	ctx := context.Background()

	folder := f.newFolder(t, alice, "team", alice.HomeFolderURI)
	share := f.grantFolder(t, alice, "bob", folder.URI, nil)

	// Someone else cannot revoke alice's grant.
	require.NoError(t, f.share.Revoke(ctx, mallory.ID, []primitive.ObjectID{share.ID}))
	_, err := f.store.Shares().GetByID(ctx, share.ID)
	assert.NoError(t, err)

	require.NoError(t, f.share.Revoke(ctx, alice.ID, []primitive.ObjectID{share.ID}))
	_, err = f.store.Shares().GetByID(ctx, share.ID)
	assert.Error(t, err)
}
