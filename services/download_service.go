package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/cryptox"
	"filevault/models"
	"filevault/repository"
	"filevault/storage"
	"filevault/utils"
)

// DownloadService serves decrypted file content. Only fully uploaded files
// are downloadable; a complete record whose blob is gone is an integrity
// anomaly and gets logged before the client sees a not-found.
type DownloadService struct {
	store   repository.Store
	blobs   storage.BlobStore
	keySalt []byte

	derivationSem chan struct{}
}

func NewDownloadService(store repository.Store, blobs storage.BlobStore, keySalt []byte) *DownloadService {
	return &DownloadService{
		store:         store,
		blobs:         blobs,
		keySalt:       keySalt,
		derivationSem: make(chan struct{}, 4),
	}
}

func (s *DownloadService) deriveKey(secret string) ([]byte, error) {
	s.derivationSem <- struct{}{}
	defer func() { <-s.derivationSem }()
	return cryptox.DeriveKey([]byte(secret), s.keySalt)
}

// Stream returns the metadata record and a plaintext reader for a file owned
// by userID. The caller must close the reader.
func (s *DownloadService) Stream(ctx context.Context, userID primitive.ObjectID, fileURI string) (*models.FileRecord, io.ReadCloser, error) {
	file, err := s.store.Files().GetByURI(ctx, userID, fileURI)
	if err == repository.ErrNotFound {
		return nil, nil, apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	if file.Deleted {
		return nil, nil, apperr.NotFound("File doesn't exist")
	}
	if !file.Complete() {
		return nil, nil, apperr.Validation("File hasn't been fully uploaded yet")
	}

	owner, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	return s.open(ctx, file, owner)
}

// StreamOwnedBy is Stream for another user's file, used by the sharing
// surface after access has been authorized.
func (s *DownloadService) StreamOwnedBy(ctx context.Context, owner *models.User, fileURI string) (*models.FileRecord, io.ReadCloser, error) {
	file, err := s.store.Files().GetCompleteByURI(ctx, owner.ID, fileURI)
	if err == repository.ErrNotFound {
		return nil, nil, apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	return s.open(ctx, file, owner)
}

func (s *DownloadService) open(ctx context.Context, file *models.FileRecord, owner *models.User) (*models.FileRecord, io.ReadCloser, error) {
	blob, err := s.blobs.Open(ctx, file.PathName)
	if err == storage.ErrBlobNotFound {
		utils.LogError(
			fmt.Sprintf("complete file %s has no blob %s", file.URI, file.PathName),
			apperr.Consistency("integrity anomaly", err))
		return nil, nil, apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}

	key, err := s.deriveKey(owner.Password)
	if err != nil {
		blob.Close()
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	dec, err := cryptox.NewDecryptor(key, file.IV)
	if err != nil {
		blob.Close()
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	return file, &decryptedBlob{reader: cryptox.NewStreamReader(blob, dec), blob: blob}, nil
}

type decryptedBlob struct {
	reader io.Reader
	blob   io.ReadCloser
}

func (d *decryptedBlob) Read(p []byte) (int, error) { return d.reader.Read(p) }
func (d *decryptedBlob) Close() error               { return d.blob.Close() }

// InlineViewable reports whether a content type may be rendered in the
// browser. Everything else is forced into an attachment download so stored
// HTML or scripts never execute under the service's origin.
func InlineViewable(contentType string) bool {
	for _, prefix := range []string{"image/", "video/", "audio/"} {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return contentType == "application/pdf" || contentType == "text/plain"
}
