package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/cryptox"
	"filevault/models"
	"filevault/repository/memory"
	"filevault/storage"
)

var testKeySalt = []byte("test-deployment-salt")

type fixture struct {
	store *memory.Store
	blobs *storage.MemoryStore

	content  *ContentService
	upload   *UploadService
	download *DownloadService
	copyMove *CopyMoveService
	share    *ShareService
	files    *FileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	blobs := storage.NewMemoryStore()
	content := NewContentService(store)
	return &fixture{
		store:    store,
		blobs:    blobs,
		content:  content,
		upload:   NewUploadService(store, blobs, testKeySalt, 1<<30),
		download: NewDownloadService(store, blobs, testKeySalt),
		copyMove: NewCopyMoveService(store, blobs, content, testKeySalt, 2),
		share:    NewShareService(store, content),
		files:    NewFileService(store, blobs, content),
	}
}

// newUser registers a user with a home folder. The stored password stands in
// for the scrypt credential hash real signups produce.
func (f *fixture) newUser(t *testing.T, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	user := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "credential-hash-" + username,
		Salt:            "salt-" + username,
		HomeFolderURI:   uuid.NewString(),
		Plan:            "free",
		StorageCapacity: 1 << 40,
		CreatedAt:       now,
	}
	require.NoError(t, f.store.Users().Insert(ctx, user))
	require.NoError(t, f.store.Folders().Insert(ctx, &models.Folder{
		URI:          user.HomeFolderURI,
		Name:         "Home",
		Type:         "folder",
		IsRoot:       true,
		UserID:       user.ID,
		TimeCreated:  now,
		LastModified: now,
	}))
	return user
}

func (f *fixture) newFolder(t *testing.T, user *models.User, name, parentURI string) *models.Folder {
	t.Helper()
	folder, err := f.files.CreateFolder(context.Background(), user.ID, name, parentURI)
	require.NoError(t, err)
	return folder
}

// uploadFile pushes content through the real ingest pipeline and returns the
// resulting complete record.
func (f *fixture) uploadFile(t *testing.T, user *models.User, name, folderURI string, content []byte) *models.FileRecord {
	t.Helper()
	result, err := f.upload.Ingest(context.Background(), &UploadRequest{
		UserID:          user.ID,
		ParentFolderURI: folderURI,
		LocalName:       name,
		ContentHash:     "hash-" + name,
		ContentType:     "application/octet-stream",
		DeclaredSize:    int64(len(content)),
		Body:            bytes.NewReader(content),
	})
	require.NoError(t, err)
	require.True(t, result.Delivered)
	require.True(t, result.File.Complete())
	return result.File
}

// readDecrypted pulls a file's blob back through the download path.
func (f *fixture) readDecrypted(t *testing.T, owner *models.User, fileURI string) []byte {
	t.Helper()
	_, reader, err := f.download.Stream(context.Background(), owner.ID, fileURI)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	return content
}

func (f *fixture) usedStorage(t *testing.T, userID primitive.ObjectID) int64 {
	t.Helper()
	user, err := f.store.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.UsedStorage
}

func (f *fixture) fileByURI(t *testing.T, userID primitive.ObjectID, uri string) *models.FileRecord {
	t.Helper()
	file, err := f.store.Files().GetByURI(context.Background(), userID, uri)
	require.NoError(t, err)
	return file
}

// encryptWithUserKey produces the ciphertext one continuous session would
// write for this plaintext, for comparing against stored blobs.
func encryptWithUserKey(t *testing.T, user *models.User, ivHex string, plaintext []byte) []byte {
	t.Helper()
	key, err := cryptox.DeriveKey([]byte(user.Password), testKeySalt)
	require.NoError(t, err)
	enc, err := cryptox.NewEncryptor(key, ivHex)
	require.NoError(t, err)
	out, err := enc.Update(plaintext)
	require.NoError(t, err)
	tail, err := enc.Final()
	require.NoError(t, err)
	return append(out, tail...)
}

func (f *fixture) rawBlob(t *testing.T, pathName string) []byte {
	t.Helper()
	r, err := f.blobs.Open(context.Background(), pathName)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	return content
}

// brokenReader yields its content and then fails the way a dropped client
// connection does.
type brokenReader struct {
	data []byte
	pos  int
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
