// Package memory is an in-process implementation of repository.Store. It
// backs the service tests and keeps the engines runnable without MongoDB.
// WithTransaction serializes callers under one lock; it does not roll back,
// so test flows must not fail halfway through a transaction body.
package memory

import (
	"context"
	"sync"
	"time"

	"filevault/models"
	"filevault/repository"
)

type Store struct {
	mu      sync.Mutex
	files   *fileRepository
	folders *folderRepository
	shares  *shareRepository
	users   *userRepository
}

func NewStore() *Store {
	s := &Store{}
	s.files = &fileRepository{store: s}
	s.folders = &folderRepository{store: s}
	s.shares = &shareRepository{store: s}
	s.users = &userRepository{store: s}
	return s
}

func (s *Store) Files() repository.FileRepository     { return s.files }
func (s *Store) Folders() repository.FolderRepository { return s.folders }
func (s *Store) Shares() repository.ShareRepository   { return s.shares }
func (s *Store) Users() repository.UserRepository     { return s.users }

func (s *Store) WithTransaction(_ context.Context, fn func(ctx context.Context) error) error {
	return fn(context.Background())
}

// compareValues orders two sort-key values of the same dynamic type.
func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	}
	return 0
}

func fileSortValue(f *models.FileRecord, key string) interface{} {
	switch key {
	case "size":
		return f.Size
	case "timeUploaded":
		return f.TimeUploaded
	case "lastModified":
		return f.LastModified
	default:
		return f.Name
	}
}
