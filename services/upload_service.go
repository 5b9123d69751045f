package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/cryptox"
	"filevault/models"
	"filevault/repository"
	"filevault/storage"
	"filevault/utils"
)

const copyBufferSize = 32 * 1024

// UploadService ingests file content. Each request body is encrypted with the
// owner's derived key through a single cipher session and written to blob
// storage; the metadata record and the owner's storage ledger are reconciled
// in one transaction when the stream ends, complete or not.
type UploadService struct {
	store       repository.Store
	blobs       storage.BlobStore
	keySalt     []byte
	maxFileSize int64

	// Key derivation is deliberately expensive; cap how many run at once.
	derivationSem chan struct{}
}

func NewUploadService(store repository.Store, blobs storage.BlobStore, keySalt []byte, maxFileSize int64) *UploadService {
	return &UploadService{
		store:         store,
		blobs:         blobs,
		keySalt:       keySalt,
		maxFileSize:   maxFileSize,
		derivationSem: make(chan struct{}, 4),
	}
}

// UploadRequest is a validated ingest request. Body is the raw plaintext
// stream; DeclaredSize is the total plaintext size of the file for a new
// upload, or the size of the remaining portion for a resume.
type UploadRequest struct {
	UserID          primitive.ObjectID
	ParentFolderURI string
	LocalName       string
	ContentHash     string
	ContentType     string
	DeclaredSize    int64
	Resume          bool
	Body            io.Reader
}

// UploadResult reports how an ingest session ended. Delivered is false when
// the client went away before sending everything it declared; the partial
// bytes are still persisted and accounted so the upload can be resumed.
type UploadResult struct {
	File      *models.FileRecord
	Delivered bool
	Received  int64
}

func (s *UploadService) deriveKey(secret string) ([]byte, error) {
	s.derivationSem <- struct{}{}
	defer func() { <-s.derivationSem }()
	return cryptox.DeriveKey([]byte(secret), s.keySalt)
}

// Ingest runs the upload pipeline: validate, locate or create the metadata
// record, stream-encrypt the body, then reconcile metadata and the storage
// ledger exactly once.
func (s *UploadService) Ingest(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	if user.UsedStorage+req.DeclaredSize > user.StorageCapacity {
		return nil, apperr.Validation("Storage quota exceeded")
	}

	file, err := s.resolveRecord(ctx, req)
	if err != nil {
		return nil, err
	}

	key, err := s.deriveKey(user.Password)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	enc, err := cryptox.NewEncryptor(key, file.IV)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}

	// A resume with prior bytes must continue the cipher stream, so the old
	// ciphertext is decrypted and re-encrypted through the same session into
	// a fresh blob; the new bytes follow and Final runs once at the true end.
	workName := file.PathName
	resuming := req.Resume && file.SizeUploaded > 0
	if resuming {
		workName = uuid.NewString() + ".part"
	}

	w, err := s.blobs.Create(ctx, workName)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}

	if resuming {
		if err := s.replayExisting(ctx, file, key, enc, w); err != nil {
			w.Close()
			s.blobs.Delete(ctx, workName)
			return nil, err
		}
	}

	received, delivered, streamErr := pump(req.Body, enc, w, req.DeclaredSize)
	if streamErr != nil {
		w.Close()
		s.blobs.Delete(ctx, workName)
		return nil, streamErr
	}

	// Final always runs, delivered or not: the blob must end on a padded
	// block so a later resume can decrypt it back to exactly the bytes that
	// were accounted.
	tail, err := enc.Final()
	if err != nil {
		w.Close()
		s.blobs.Delete(ctx, workName)
		return nil, apperr.Server("Something went wrong", err)
	}
	if _, err := w.Write(tail); err != nil {
		w.Close()
		s.blobs.Delete(ctx, workName)
		return nil, apperr.Server("Something went wrong", err)
	}
	if err := w.Close(); err != nil {
		s.blobs.Delete(ctx, workName)
		return nil, apperr.Server("Something went wrong", err)
	}

	if resuming {
		if err := s.blobs.Delete(ctx, file.PathName); err != nil {
			s.blobs.Delete(ctx, workName)
			return nil, apperr.Server("Something went wrong", err)
		}
		if err := s.blobs.Rename(ctx, workName, file.PathName); err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
	}

	// Nothing arrived in this session and nothing was ever stored before: a
	// record with no bytes behind it is useless, so take it back out.
	if received == 0 && file.SizeUploaded == 0 {
		s.discardRecord(ctx, file)
		return nil, apperr.Validation("Empty file upload isn't allowed")
	}

	newSize := file.SizeUploaded + received
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Files().UpdateSizeUploaded(ctx, file.ID, newSize); err != nil {
			return err
		}
		return s.store.Users().AdjustUsedStorage(ctx, file.UserID, received)
	})
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	file.SizeUploaded = newSize

	return &UploadResult{File: file, Delivered: delivered, Received: received}, nil
}

func (s *UploadService) validate(req *UploadRequest) error {
	if err := utils.ValidateFileName(req.LocalName); err != nil {
		return apperr.Validation(err.Error())
	}
	if req.ContentHash == "" {
		return apperr.Validation("Invalid request!")
	}
	if req.DeclaredSize <= 0 {
		return apperr.Validation("Empty file upload isn't allowed")
	}
	if s.maxFileSize > 0 && req.DeclaredSize > s.maxFileSize {
		return apperr.Validation("File is too large")
	}
	return nil
}

// resolveRecord loads the incomplete record being resumed, or registers a
// fresh one under the requested parent folder.
func (s *UploadService) resolveRecord(ctx context.Context, req *UploadRequest) (*models.FileRecord, error) {
	if req.Resume {
		file, err := s.store.Files().GetByHash(ctx, req.UserID, req.ContentHash, req.LocalName)
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("File to be updated doesn't exist!")
		} else if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		if file.Complete() {
			return nil, apperr.Validation("File has already been fully uploaded")
		}
		return file, nil
	}

	if _, err := s.store.Folders().GetByURI(ctx, req.UserID, req.ParentFolderURI); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.Validation("Parent folder doesn't exist")
		}
		return nil, apperr.Server("Something went wrong", err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	iv, err := cryptox.NewIV()
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	now := time.Now()
	file := &models.FileRecord{
		URI:             uuid.NewString(),
		Name:            req.LocalName,
		PathName:        strings.ReplaceAll(uuid.NewString(), "-", "") + ".ufile",
		Type:            contentType,
		Size:            req.DeclaredSize,
		SizeUploaded:    0,
		Hash:            req.ContentHash,
		IV:              iv,
		ParentFolderURI: req.ParentFolderURI,
		UserID:          req.UserID,
		InHistory:       true,
		TimeUploaded:    now,
		LastModified:    now,
	}
	if err := s.store.Files().Insert(ctx, file); err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return file, nil
}

// replayExisting feeds the previously stored plaintext back through enc so the
// session continues exactly where the interrupted one stopped.
func (s *UploadService) replayExisting(ctx context.Context, file *models.FileRecord, key []byte, enc cryptox.Stream, w io.Writer) error {
	old, err := s.blobs.Open(ctx, file.PathName)
	if err == storage.ErrBlobNotFound {
		return apperr.Consistency(
			"Something went wrong",
			fmt.Errorf("blob %s missing for incomplete file %s", file.PathName, file.URI))
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	defer old.Close()

	dec, err := cryptox.NewDecryptor(key, file.IV)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	plain := cryptox.NewStreamReader(old, dec)

	buf := make([]byte, copyBufferSize)
	for {
		n, err := plain.Read(buf)
		if n > 0 {
			out, uerr := enc.Update(buf[:n])
			if uerr != nil {
				return apperr.Server("Something went wrong", uerr)
			}
			if _, werr := w.Write(out); werr != nil {
				return apperr.Server("Something went wrong", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return apperr.Server("Something went wrong", err)
		}
	}
}

// pump encrypts body chunks into w until the stream ends. A short read caused
// by the client dropping the connection is not an error; the session simply
// ends undelivered. Reading more than expected means the declared size lied.
func pump(body io.Reader, enc cryptox.Stream, w io.Writer, expected int64) (received int64, delivered bool, err error) {
	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			received += int64(n)
			if received > expected {
				return received, false, apperr.Validation("Received more data than declared")
			}
			out, uerr := enc.Update(buf[:n])
			if uerr != nil {
				return received, false, apperr.Server("Something went wrong", uerr)
			}
			if _, werr := w.Write(out); werr != nil {
				return received, false, apperr.Server("Something went wrong", werr)
			}
		}
		if rerr == io.EOF {
			return received, received == expected, nil
		}
		if rerr != nil {
			// Client aborted mid-stream; keep what arrived.
			return received, false, nil
		}
	}
}

// discardRecord undoes the registration of a brand-new upload that delivered
// zero bytes.
func (s *UploadService) discardRecord(ctx context.Context, file *models.FileRecord) {
	if err := s.store.Files().Delete(ctx, file.UserID, file.URI); err != nil && err != repository.ErrNotFound {
		utils.LogError("removing empty upload record "+file.URI, err)
	}
	if err := s.blobs.Delete(ctx, file.PathName); err != nil {
		utils.LogError("removing empty upload blob "+file.PathName, err)
	}
}
