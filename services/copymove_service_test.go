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

func (f *fixture) folderByName(t *testing.T, userID primitive.ObjectID, name, parentURI string) *models.Folder {
	t.Helper()
	folders, err := f.store.Folders().ListByUser(context.Background(), userID)
	require.NoError(t, err)
	for i := range folders {
		if folders[i].Name == name && folders[i].ParentFolderURI == parentURI {
			return &folders[i]
		}
	}
	t.Fatalf("folder %q not found under %s", name, parentURI)
	return nil
}

func (f *fixture) filesUnder(t *testing.T, userID primitive.ObjectID, folderURI string) []models.FileRecord {
	t.Helper()
	files, err := f.store.Files().ListByParentURIs(context.Background(), userID, []string{folderURI})
	require.NoError(t, err)
	return files
}

func TestMoveReparentsFilesAndFolders(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	ctx := context.Background()

	src := f.newFolder(t, user, "src", user.HomeFolderURI)
	dest := f.newFolder(t, user, "dest", user.HomeFolderURI)
	inner := f.uploadFile(t, user, "inner.txt", src.URI, randomContent(t, 50))
	loose := f.uploadFile(t, user, "loose.txt", user.HomeFolderURI, randomContent(t, 50))

	require.NoError(t, f.copyMove.Move(ctx, user.ID, []string{src.URI, loose.URI}, dest.URI))

	moved := f.folderByName(t, user.ID, "src", dest.URI)
	assert.Equal(t, src.URI, moved.URI)
	assert.Equal(t, dest.URI, f.fileByURI(t, user.ID, loose.URI).ParentFolderURI)

	// Contents of a moved folder travel with it untouched.
	assert.Equal(t, src.URI, f.fileByURI(t, user.ID, inner.URI).ParentFolderURI)

	// A pure metadata move never touches the ledger.
	assert.Equal(t, int64(100), f.usedStorage(t, user.ID))
}

func TestMoveGuards(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	ctx := context.Background()

	a := f.newFolder(t, user, "a", user.HomeFolderURI)
	b := f.newFolder(t, user, "b", a.URI)

	err := f.copyMove.Move(ctx, user.ID, []string{a.URI}, "no-such-dest")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = f.copyMove.Move(ctx, user.ID, []string{user.HomeFolderURI}, a.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = f.copyMove.Move(ctx, user.ID, []string{a.URI}, a.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	// Reparenting under the folder's own subtree would orphan the chain.
	err = f.copyMove.Move(ctx, user.ID, []string{a.URI}, b.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = f.copyMove.Move(ctx, user.ID, []string{"ghost-uri"}, a.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCopyDuplicatesSubtree(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	ctx := context.Background()

	a := f.newFolder(t, user, "a", user.HomeFolderURI)
	b := f.newFolder(t, user, "b", a.URI)
	dest := f.newFolder(t, user, "dest", user.HomeFolderURI)
	outer := f.uploadFile(t, user, "outer.txt", a.URI, randomContent(t, 100))
	innerContent := randomContent(t, 200)
	f.uploadFile(t, user, "inner.txt", b.URI, innerContent)

	require.NoError(t, f.copyMove.Copy(ctx, user.ID, []string{a.URI}, dest.URI))

	// The whole shape reappears under dest with fresh identities.
	aCopy := f.folderByName(t, user.ID, "a", dest.URI)
	assert.NotEqual(t, a.URI, aCopy.URI)
	bCopy := f.folderByName(t, user.ID, "b", aCopy.URI)
	assert.NotEqual(t, b.URI, bCopy.URI)

	outerCopies := f.filesUnder(t, user.ID, aCopy.URI)
	require.Len(t, outerCopies, 1)
	assert.Equal(t, "outer.txt", outerCopies[0].Name)
	assert.NotEqual(t, outer.URI, outerCopies[0].URI)
	assert.NotEqual(t, outer.PathName, outerCopies[0].PathName)

	// Same owner, same key and IV: the blob is a byte-for-byte duplicate.
	assert.Equal(t, outer.IV, outerCopies[0].IV)
	assert.Equal(t, f.rawBlob(t, outer.PathName), f.rawBlob(t, outerCopies[0].PathName))

	innerCopies := f.filesUnder(t, user.ID, bCopy.URI)
	require.Len(t, innerCopies, 1)
	assert.Equal(t, innerContent, f.readDecrypted(t, user, innerCopies[0].URI))

	// 300 bytes originally, 300 more for the copies.
	assert.Equal(t, int64(600), f.usedStorage(t, user.ID))
}

func TestCopyQuotaExceededCommitsNothing(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	ctx := context.Background()

	dest := f.newFolder(t, user, "dest", user.HomeFolderURI)
	file := f.uploadFile(t, user, "big.bin", user.HomeFolderURI, randomContent(t, 100))
	require.NoError(t, f.store.Users().AdjustUsedStorage(ctx, user.ID, user.StorageCapacity-150))

	err := f.copyMove.Copy(ctx, user.ID, []string{file.URI}, dest.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, f.filesUnder(t, user.ID, dest.URI))
}

func TestCopyRejectsRootAndIncompleteSources(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	ctx := context.Background()
	dest := f.newFolder(t, user, "dest", user.HomeFolderURI)

	err := f.copyMove.Copy(ctx, user.ID, []string{user.HomeFolderURI}, dest.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	partial, err := f.upload.Ingest(ctx, &UploadRequest{
		UserID:          user.ID,
		ParentFolderURI: user.HomeFolderURI,
		LocalName:       "partial.bin",
		ContentHash:     "hash-partial",
		DeclaredSize:    100,
		Body:            &brokenReader{data: randomContent(t, 40)},
	})
	require.NoError(t, err)

	// An unfinished upload is not copyable content.
	err = f.copyMove.Copy(ctx, user.ID, []string{partial.File.URI}, dest.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func (f *fixture) grantFolder(t *testing.T, grantor *models.User, grantee string, folderURI string, excluded []string) *models.SharedResource {
	t.Helper()
	shares, err := f.share.Grant(context.Background(), grantor.ID, []string{grantee}, []ResourceGrant{{
		URI:                 folderURI,
		ResourceType:        models.ResourceTypeFolder,
		ExcludedEntriesURIs: excluded,
	}})
	require.NoError(t, err)
	require.Len(t, shares, 1)
	return &shares[0]
}

func TestCopySharedReencryptsForRecipient(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	ctx := context.Background()

	shared := f.newFolder(t, alice, "shared", alice.HomeFolderURI)
	content := randomContent(t, 1500)
	original := f.uploadFile(t, alice, "doc.pdf", shared.URI, content)

	share := f.grantFolder(t, alice, "bob", shared.URI, nil)
	require.NoError(t, f.copyMove.CopyShared(ctx, bob, share, []string{shared.URI}, bob.HomeFolderURI))

	sharedCopy := f.folderByName(t, bob.ID, "shared", bob.HomeFolderURI)
	copies := f.filesUnder(t, bob.ID, sharedCopy.URI)
	require.Len(t, copies, 1)

	// Rewrapped under bob's key with a fresh IV; the ciphertext cannot match.
	assert.NotEqual(t, original.IV, copies[0].IV)
	assert.NotEqual(t, f.rawBlob(t, original.PathName), f.rawBlob(t, copies[0].PathName))
	assert.Equal(t, content, f.readDecrypted(t, bob, copies[0].URI))

	// Each side's ledger carries its own copy.
	assert.Equal(t, int64(1500), f.usedStorage(t, alice.ID))
	assert.Equal(t, int64(1500), f.usedStorage(t, bob.ID))
}

func TestCopySharedHonoursExclusions(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	ctx := context.Background()

	shared := f.newFolder(t, alice, "shared", alice.HomeFolderURI)
	secret := f.newFolder(t, alice, "secret", shared.URI)
	f.uploadFile(t, alice, "open.txt", shared.URI, randomContent(t, 50))
	f.uploadFile(t, alice, "hidden.txt", secret.URI, randomContent(t, 50))

	share := f.grantFolder(t, alice, "bob", shared.URI, []string{secret.URI})

	// Asking for the excluded branch by name is a hard denial.
	err := f.copyMove.CopyShared(ctx, bob, share, []string{secret.URI}, bob.HomeFolderURI)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))

	// Copying the granted root silently prunes the excluded branch.
	require.NoError(t, f.copyMove.CopyShared(ctx, bob, share, []string{shared.URI}, bob.HomeFolderURI))

	sharedCopy := f.folderByName(t, bob.ID, "shared", bob.HomeFolderURI)
	copies := f.filesUnder(t, bob.ID, sharedCopy.URI)
	require.Len(t, copies, 1)
	assert.Equal(t, "open.txt", copies[0].Name)

	folders, err := f.store.Folders().ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	for _, folder := range folders {
		assert.NotEqual(t, "secret", folder.Name)
	}
	assert.Equal(t, int64(50), f.usedStorage(t, bob.ID))
}

func TestCopySharedOutsideGrantReadsAsMissing(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	ctx := context.Background()

	shared := f.newFolder(t, alice, "shared", alice.HomeFolderURI)
	private := f.uploadFile(t, alice, "private.txt", alice.HomeFolderURI, randomContent(t, 50))

	share := f.grantFolder(t, alice, "bob", shared.URI, nil)

	err := f.copyMove.CopyShared(ctx, bob, share, []string{private.URI}, bob.HomeFolderURI)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
