package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/apperr"
)

func TestDownloadRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	content := randomContent(t, 2500)

	file := f.uploadFile(t, user, "notes.txt", user.HomeFolderURI, content)
	assert.Equal(t, content, f.readDecrypted(t, user, file.URI))
}

func TestDownloadUnknownFile(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")

	_, _, err := f.download.Stream(context.Background(), user.ID, "no-such-uri")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDownloadIncompleteFileRejected(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	content := randomContent(t, 100)

	result, err := f.upload.Ingest(context.Background(), &UploadRequest{
		UserID:          user.ID,
		ParentFolderURI: user.HomeFolderURI,
		LocalName:       "partial.bin",
		ContentHash:     "hash-partial",
		DeclaredSize:    100,
		Body:            &brokenReader{data: content[:40]},
	})
	require.NoError(t, err)
	require.False(t, result.File.Complete())

	_, _, err = f.download.Stream(context.Background(), user.ID, result.File.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDownloadMissingBlobIsAnomaly(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")

	file := f.uploadFile(t, user, "gone.txt", user.HomeFolderURI, randomContent(t, 30))
	require.NoError(t, f.blobs.Delete(context.Background(), file.PathName))

	// The record claims completeness but the bytes are gone; the client just
	// sees a not-found.
	_, _, err := f.download.Stream(context.Background(), user.ID, file.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDownloadOtherUsersFileInvisible(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")

	file := f.uploadFile(t, alice, "private.txt", alice.HomeFolderURI, randomContent(t, 30))

	_, _, err := f.download.Stream(context.Background(), bob.ID, file.URI)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestInlineViewable(t *testing.T) {
	viewable := []string{"image/png", "image/jpeg", "video/mp4", "audio/mpeg", "application/pdf", "text/plain"}
	for _, ct := range viewable {
		assert.True(t, InlineViewable(ct), ct)
	}

	blocked := []string{"text/html", "application/javascript", "application/octet-stream", "image", ""}
	for _, ct := range blocked {
		assert.False(t, InlineViewable(ct), ct)
	}
}
