package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func writeBlob(t *testing.T, store BlobStore, name string, content []byte) {
	t.Helper()
	w, err := store.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readBlob(t *testing.T, store BlobStore, name string) []byte {
	t.Helper()
	r, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	return content
}

func TestDiskStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	writeBlob(t, store, "abc123.ufile", []byte("encrypted bytes"))
	assert.Equal(t, []byte("encrypted bytes"), readBlob(t, store, "abc123.ufile"))

	exists, err := store.Exists(ctx, "abc123.ufile")
	require.NoError(t, err)
	assert.True(t, exists)

	// Create replaces existing content.
	writeBlob(t, store, "abc123.ufile", []byte("v2"))
	assert.Equal(t, []byte("v2"), readBlob(t, store, "abc123.ufile"))
}

func TestDiskStoreOpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "nope.ufile")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	exists, err := store.Exists(context.Background(), "nope.ufile")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDiskStoreRejectsEscapingNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{
		"",
		"../outside.ufile",
		"../../etc/passwd",
		"a/../../outside",
		"bad\x00name",
	} {
		_, err := store.Create(ctx, name)
		assert.Error(t, err, "name %q", name)
		_, err = store.Open(ctx, name)
		assert.Error(t, err, "name %q", name)
		assert.Error(t, store.Delete(ctx, name), "name %q", name)
	}
}

func TestDiskStoreCopyAndRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	writeBlob(t, store, "src.ufile", []byte("payload"))

	require.NoError(t, store.Copy(ctx, "src.ufile", "dup.ufile"))
	assert.Equal(t, []byte("payload"), readBlob(t, store, "dup.ufile"))
	assert.Equal(t, []byte("payload"), readBlob(t, store, "src.ufile"))

	require.NoError(t, store.Rename(ctx, "dup.ufile", "moved.ufile"))
	assert.Equal(t, []byte("payload"), readBlob(t, store, "moved.ufile"))
	_, err := store.Open(ctx, "dup.ufile")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	assert.ErrorIs(t, store.Copy(ctx, "ghost.ufile", "x.ufile"), ErrBlobNotFound)
}

func TestDiskStoreDeleteMissingIsNoError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "ghost.ufile"))
}

func TestMemoryStoreBehavesLikeDisk(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	writeBlob(t, store, "a.ufile", []byte("bytes"))
	assert.Equal(t, []byte("bytes"), readBlob(t, store, "a.ufile"))

	require.NoError(t, store.Copy(ctx, "a.ufile", "b.ufile"))
	require.NoError(t, store.Rename(ctx, "b.ufile", "c.ufile"))
	assert.Equal(t, []byte("bytes"), readBlob(t, store, "c.ufile"))

	_, err := store.Open(ctx, "b.ufile")
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.NoError(t, store.Delete(ctx, "missing.ufile"))
}
