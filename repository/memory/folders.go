package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/models"
	"filevault/repository"
)

type folderRepository struct {
	store   *Store
	folders []models.Folder
}

func (r *folderRepository) Insert(_ context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if folder.ID.IsZero() {
		folder.ID = primitive.NewObjectID()
	}
	r.folders = append(r.folders, *folder)
	return nil
}

func (r *folderRepository) InsertMany(ctx context.Context, folders []models.Folder) error {
	for i := range folders {
		if err := r.Insert(ctx, &folders[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *folderRepository) list(match func(*models.Folder) bool) []models.Folder {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Folder
	for i := range r.folders {
		if match(&r.folders[i]) {
			out = append(out, r.folders[i])
		}
	}
	return out
}

func (r *folderRepository) GetByURI(_ context.Context, userID primitive.ObjectID, uri string) (*models.Folder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.folders {
		if r.folders[i].UserID == userID && r.folders[i].URI == uri {
			f := r.folders[i]
			return &f, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *folderRepository) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Folder, error) {
	return r.list(func(f *models.Folder) bool { return f.UserID == userID }), nil
}

func (r *folderRepository) ListByURIs(_ context.Context, userID primitive.ObjectID, uris []string) ([]models.Folder, error) {
	return r.list(func(f *models.Folder) bool { return f.UserID == userID && contains(uris, f.URI) }), nil
}

func (r *folderRepository) ListChildren(_ context.Context, userID primitive.ObjectID, folderURI string, ascending bool) ([]models.Folder, error) {
	out := r.list(func(f *models.Folder) bool {
		return f.UserID == userID && f.ParentFolderURI == folderURI && !f.IsRoot
	})
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].Name < out[j].Name
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (r *folderRepository) ListSharedChildren(_ context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.Folder, error) {
	return r.list(func(f *models.Folder) bool {
		return f.UserID == ownerID && f.ParentFolderURI == folderURI && !f.IsRoot && !contains(excludedURIs, f.URI)
	}), nil
}

func (r *folderRepository) UpdateParentFolder(_ context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.folders {
		if r.folders[i].UserID == userID && contains(uris, r.folders[i].URI) {
			r.folders[i].ParentFolderURI = newParentURI
			r.folders[i].LastModified = time.Now()
		}
	}
	return nil
}

func (r *folderRepository) Rename(_ context.Context, userID primitive.ObjectID, uri, newName string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.folders {
		if r.folders[i].UserID == userID && r.folders[i].URI == uri {
			r.folders[i].Name = newName
			r.folders[i].LastModified = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *folderRepository) DeleteByURIs(_ context.Context, userID primitive.ObjectID, uris []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.folders[:0]
	for i := range r.folders {
		if r.folders[i].UserID == userID && contains(uris, r.folders[i].URI) {
			continue
		}
		kept = append(kept, r.folders[i])
	}
	r.folders = kept
	return nil
}

func (r *folderRepository) SearchByName(_ context.Context, userID primitive.ObjectID, query string) ([]models.Folder, error) {
	q := strings.ToLower(query)
	return r.list(func(f *models.Folder) bool {
		return f.UserID == userID && !f.IsRoot && strings.Contains(strings.ToLower(f.Name), q)
	}), nil
}
