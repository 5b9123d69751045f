// Package repository defines the metadata store behind the content engine.
// Services depend on these interfaces only; the mongo implementation is wired
// in main and repository/memory backs the tests.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/models"
)

// ErrNotFound is returned when a lookup or a guarded update matches nothing.
var ErrNotFound = errors.New("repository: not found")

// ListQuery drives keyset pagination over a folder's files. StartValue is the
// last seen sort value and StartURI the last seen record, both nil/empty on
// the first page. The cursor is compound: records tying on the sort value are
// ordered and resumed by uri, so ties across a page boundary are neither
// skipped nor repeated.
type ListQuery struct {
	SortKey    string // name | size | timeUploaded | lastModified
	Ascending  bool
	StartValue interface{}
	StartURI   string
	Limit      int
}

// Store bundles the per-entity repositories with the transaction boundary.
// WithTransaction runs fn so that every repository write made through the fn
// context commits atomically with majority durability, or not at all.
type Store interface {
	Files() FileRepository
	Folders() FolderRepository
	Shares() ShareRepository
	Users() UserRepository
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type FileRepository interface {
	Insert(ctx context.Context, file *models.FileRecord) error
	InsertMany(ctx context.Context, files []models.FileRecord) error
	// GetByURI returns the record regardless of completeness or soft state.
	GetByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error)
	// GetCompleteByURI returns the record only if fully uploaded.
	GetCompleteByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error)
	GetByHash(ctx context.Context, userID primitive.ObjectID, hash, name string) (*models.FileRecord, error)
	// ListByURIs returns the non-deleted records among uris.
	ListByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) ([]models.FileRecord, error)
	// ListByParentURIs returns the non-deleted files directly under any of the folders.
	ListByParentURIs(ctx context.Context, userID primitive.ObjectID, parentURIs []string) ([]models.FileRecord, error)
	// ListChildren returns one page of complete, non-deleted files under folderURI.
	ListChildren(ctx context.Context, userID primitive.ObjectID, folderURI string, q ListQuery) ([]models.FileRecord, error)
	// ListSharedChildren lists complete, non-deleted files under a shared folder,
	// minus the excluded URIs.
	ListSharedChildren(ctx context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.FileRecord, error)
	ListHistory(ctx context.Context, userID primitive.ObjectID) ([]models.FileRecord, error)
	// ListIncompleteBefore returns incomplete uploads not touched since cutoff.
	ListIncompleteBefore(ctx context.Context, cutoff time.Time) ([]models.FileRecord, error)
	SearchByName(ctx context.Context, userID primitive.ObjectID, query string) ([]models.FileRecord, error)
	UpdateSizeUploaded(ctx context.Context, id primitive.ObjectID, sizeUploaded int64) error
	UpdateParentFolder(ctx context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error
	Rename(ctx context.Context, userID primitive.ObjectID, uri, newName string) error
	SetFavourite(ctx context.Context, userID primitive.ObjectID, uri string) error
	SetInHistory(ctx context.Context, userID primitive.ObjectID, uri string, inHistory bool) error
	MarkDeleted(ctx context.Context, userID primitive.ObjectID, uri string) error
	Delete(ctx context.Context, userID primitive.ObjectID, uri string) error
	DeleteByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) error
}

type FolderRepository interface {
	Insert(ctx context.Context, folder *models.Folder) error
	InsertMany(ctx context.Context, folders []models.Folder) error
	GetByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.Folder, error)
	// ListByUser returns every folder the user owns; the content tree builds
	// its adjacency structure from this single bulk read.
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Folder, error)
	ListByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) ([]models.Folder, error)
	// ListChildren returns the non-root folders directly under folderURI,
	// sorted by name.
	ListChildren(ctx context.Context, userID primitive.ObjectID, folderURI string, ascending bool) ([]models.Folder, error)
	ListSharedChildren(ctx context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.Folder, error)
	UpdateParentFolder(ctx context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error
	Rename(ctx context.Context, userID primitive.ObjectID, uri, newName string) error
	DeleteByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) error
	SearchByName(ctx context.Context, userID primitive.ObjectID, query string) ([]models.Folder, error)
}

type ShareRepository interface {
	InsertMany(ctx context.Context, shares []models.SharedResource) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SharedResource, error)
	ListByGrantor(ctx context.Context, grantorID primitive.ObjectID) ([]models.SharedResource, error)
	DeleteByIDs(ctx context.Context, grantorID primitive.ObjectID, ids []primitive.ObjectID) error
	// DeleteByResourceURIs cascades share removal when shared content is deleted.
	DeleteByResourceURIs(ctx context.Context, uris []string) error
}

type UserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	// AdjustUsedStorage atomically adds delta (may be negative) to the user's
	// used-storage counter. This is the storage quota ledger.
	AdjustUsedStorage(ctx context.Context, id primitive.ObjectID, delta int64) error
}
