package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/models"
	"filevault/repository"
	"filevault/storage"
	"filevault/utils"
)

// FileService covers single-record metadata operations and deletion. Deletes
// reconcile the storage ledger in the same transaction as the metadata
// change, then drop blobs and cascade share records best-effort.
type FileService struct {
	store repository.Store
	blobs storage.BlobStore
	tree  *ContentService
}

func NewFileService(store repository.Store, blobs storage.BlobStore, tree *ContentService) *FileService {
	return &FileService{store: store, blobs: blobs, tree: tree}
}

// CreateFolder adds an empty folder under parentURI.
func (s *FileService) CreateFolder(ctx context.Context, userID primitive.ObjectID, name, parentURI string) (*models.Folder, error) {
	if err := utils.ValidateFolderName(name); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, err := s.store.Folders().GetByURI(ctx, userID, parentURI); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.Validation("Parent folder doesn't exist")
		}
		return nil, apperr.Server("Something went wrong", err)
	}

	now := time.Now()
	folder := &models.Folder{
		URI:             uuid.NewString(),
		Name:            name,
		Type:            "folder",
		ParentFolderURI: parentURI,
		UserID:          userID,
		TimeCreated:     now,
		LastModified:    now,
	}
	if err := s.store.Folders().Insert(ctx, folder); err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return folder, nil
}

// Rename renames a file or folder.
func (s *FileService) Rename(ctx context.Context, userID primitive.ObjectID, uri, newName, contentType string) error {
	var err error
	switch contentType {
	case models.ResourceTypeFile:
		if verr := utils.ValidateFileName(newName); verr != nil {
			return apperr.Validation(verr.Error())
		}
		err = s.store.Files().Rename(ctx, userID, uri, newName)
	case models.ResourceTypeFolder:
		if verr := utils.ValidateFolderName(newName); verr != nil {
			return apperr.Validation(verr.Error())
		}
		err = s.store.Folders().Rename(ctx, userID, uri, newName)
	default:
		return apperr.Validation("Invalid resource type")
	}
	if err == repository.ErrNotFound {
		return apperr.NotFound("Content doesn't exist")
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// MarkFavourite flags a file as a favourite.
func (s *FileService) MarkFavourite(ctx context.Context, userID primitive.ObjectID, uri string) error {
	err := s.store.Files().SetFavourite(ctx, userID, uri)
	if err == repository.ErrNotFound {
		return apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// UploadHistory lists the files still surfaced on the upload history view.
func (s *FileService) UploadHistory(ctx context.Context, userID primitive.ObjectID) ([]models.FileRecord, error) {
	files, err := s.store.Files().ListHistory(ctx, userID)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return files, nil
}

// RemoveFromHistory hides a file from the history view. A file already
// soft-deleted only existed on that view, so it is removed for good along
// with its blob.
func (s *FileService) RemoveFromHistory(ctx context.Context, userID primitive.ObjectID, uri string) error {
	file, err := s.store.Files().GetByURI(ctx, userID, uri)
	if err == repository.ErrNotFound {
		return apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}

	if file.Deleted {
		return s.purgeFile(ctx, file)
	}
	if err := s.store.Files().SetInHistory(ctx, userID, uri, false); err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// DeleteFile removes a file from the tree. While the record is still on the
// history view it is only soft-deleted; its bytes and ledger share are
// reclaimed either way.
func (s *FileService) DeleteFile(ctx context.Context, userID primitive.ObjectID, uri string) error {
	file, err := s.store.Files().GetByURI(ctx, userID, uri)
	if err == repository.ErrNotFound {
		return apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	if file.Deleted {
		return apperr.NotFound("File doesn't exist")
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if file.InHistory {
			if err := s.store.Files().MarkDeleted(ctx, userID, uri); err != nil {
				return err
			}
		} else {
			if err := s.store.Files().Delete(ctx, userID, uri); err != nil {
				return err
			}
		}
		return s.store.Users().AdjustUsedStorage(ctx, userID, -file.SizeUploaded)
	})
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}

	if err := s.blobs.Delete(ctx, file.PathName); err != nil {
		utils.LogError("deleting blob "+file.PathName, err)
	}
	if err := s.store.Shares().DeleteByResourceURIs(ctx, []string{uri}); err != nil {
		utils.LogError("cascading shares for "+uri, err)
	}
	return nil
}

// purgeFile hard-deletes a soft-deleted record whose bytes and ledger share
// were already reclaimed.
func (s *FileService) purgeFile(ctx context.Context, file *models.FileRecord) error {
	if err := s.store.Files().Delete(ctx, file.UserID, file.URI); err != nil && err != repository.ErrNotFound {
		return apperr.Server("Something went wrong", err)
	}
	if err := s.blobs.Delete(ctx, file.PathName); err != nil {
		utils.LogError("deleting blob "+file.PathName, err)
	}
	return nil
}

// DeleteFolder removes a folder subtree: every nested folder and file record
// goes in one transaction together with the ledger adjustment, then blobs
// and share records are cleaned up. The home folder is never deletable.
func (s *FileService) DeleteFolder(ctx context.Context, userID primitive.ObjectID, uri string) error {
	folder, err := s.store.Folders().GetByURI(ctx, userID, uri)
	if err == repository.ErrNotFound {
		return apperr.NotFound("Folder doesn't exist")
	} else if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	if folder.IsRoot {
		return apperr.Validation("Home folder can't be deleted")
	}

	descendants, err := s.tree.DescendantsOf(ctx, userID, []string{uri})
	if err != nil {
		return err
	}
	folderURIs := []string{uri}
	for _, d := range descendants {
		folderURIs = append(folderURIs, d.URI)
	}

	files, err := s.store.Files().ListByParentURIs(ctx, userID, folderURIs)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}

	var hardDelete []string
	var softDelete []string
	var reclaimed int64
	for _, f := range files {
		reclaimed += f.SizeUploaded
		if f.InHistory {
			softDelete = append(softDelete, f.URI)
		} else {
			hardDelete = append(hardDelete, f.URI)
		}
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Folders().DeleteByURIs(ctx, userID, folderURIs); err != nil {
			return err
		}
		if len(hardDelete) > 0 {
			if err := s.store.Files().DeleteByURIs(ctx, userID, hardDelete); err != nil {
				return err
			}
		}
		for _, fileURI := range softDelete {
			if err := s.store.Files().MarkDeleted(ctx, userID, fileURI); err != nil {
				return err
			}
		}
		if reclaimed > 0 {
			return s.store.Users().AdjustUsedStorage(ctx, userID, -reclaimed)
		}
		return nil
	})
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}

	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.PathName); err != nil {
			utils.LogError("deleting blob "+f.PathName, err)
		}
	}

	cascade := folderURIs
	for _, f := range files {
		cascade = append(cascade, f.URI)
	}
	if err := s.store.Shares().DeleteByResourceURIs(ctx, cascade); err != nil {
		utils.LogError("cascading shares for folder "+uri, err)
	}
	return nil
}

// FindByHash looks up a file by content hash and name, used by clients to
// decide between a fresh upload and a resume.
func (s *FileService) FindByHash(ctx context.Context, userID primitive.ObjectID, hash, name string) (*models.FileRecord, error) {
	file, err := s.store.Files().GetByHash(ctx, userID, hash, name)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("File doesn't exist")
	} else if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return file, nil
}

// SearchResults groups a name search across both record kinds.
type SearchResults struct {
	Folders []models.Folder     `json:"folders"`
	Files   []models.FileRecord `json:"files"`
}

// Search matches files and folders by name substring, case-insensitive.
func (s *FileService) Search(ctx context.Context, userID primitive.ObjectID, query string) (*SearchResults, error) {
	if query == "" {
		return nil, apperr.Validation("Search query cannot be empty")
	}
	files, err := s.store.Files().SearchByName(ctx, userID, query)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	folders, err := s.store.Folders().SearchByName(ctx, userID, query)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return &SearchResults{Folders: folders, Files: files}, nil
}
