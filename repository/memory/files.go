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

type fileRepository struct {
	store *Store
	files []models.FileRecord
}

func (r *fileRepository) Insert(_ context.Context, file *models.FileRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if file.ID.IsZero() {
		file.ID = primitive.NewObjectID()
	}
	r.files = append(r.files, *file)
	return nil
}

func (r *fileRepository) InsertMany(ctx context.Context, files []models.FileRecord) error {
	for i := range files {
		if err := r.Insert(ctx, &files[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fileRepository) get(match func(*models.FileRecord) bool) (*models.FileRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.files {
		if match(&r.files[i]) {
			f := r.files[i]
			return &f, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fileRepository) list(match func(*models.FileRecord) bool) []models.FileRecord {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.FileRecord
	for i := range r.files {
		if match(&r.files[i]) {
			out = append(out, r.files[i])
		}
	}
	return out
}

func (r *fileRepository) update(match func(*models.FileRecord) bool, apply func(*models.FileRecord)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	found := false
	for i := range r.files {
		if match(&r.files[i]) {
			apply(&r.files[i])
			found = true
		}
	}
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fileRepository) GetByURI(_ context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error) {
	return r.get(func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri })
}

func (r *fileRepository) GetCompleteByURI(_ context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error) {
	return r.get(func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri && f.Complete() })
}

func (r *fileRepository) GetByHash(_ context.Context, userID primitive.ObjectID, hash, name string) (*models.FileRecord, error) {
	return r.get(func(f *models.FileRecord) bool { return f.UserID == userID && f.Hash == hash && f.Name == name })
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func (r *fileRepository) ListByURIs(_ context.Context, userID primitive.ObjectID, uris []string) ([]models.FileRecord, error) {
	return r.list(func(f *models.FileRecord) bool {
		return f.UserID == userID && !f.Deleted && contains(uris, f.URI)
	}), nil
}

func (r *fileRepository) ListByParentURIs(_ context.Context, userID primitive.ObjectID, parentURIs []string) ([]models.FileRecord, error) {
	return r.list(func(f *models.FileRecord) bool {
		return f.UserID == userID && !f.Deleted && contains(parentURIs, f.ParentFolderURI)
	}), nil
}

func (r *fileRepository) ListChildren(_ context.Context, userID primitive.ObjectID, folderURI string, q repository.ListQuery) ([]models.FileRecord, error) {
	matches := r.list(func(f *models.FileRecord) bool {
		if f.UserID != userID || f.ParentFolderURI != folderURI || f.Deleted || !f.Complete() {
			return false
		}
		if q.StartValue == nil {
			return true
		}
		// Compound cursor over (sort value, uri), mirroring the mongo filter.
		cmp := compareValues(fileSortValue(f, q.SortKey), q.StartValue)
		if cmp == 0 {
			cmp = strings.Compare(f.URI, q.StartURI)
		}
		if q.Ascending {
			return cmp > 0
		}
		return cmp < 0
	})
	sort.SliceStable(matches, func(i, j int) bool {
		cmp := compareValues(fileSortValue(&matches[i], q.SortKey), fileSortValue(&matches[j], q.SortKey))
		if cmp == 0 {
			cmp = strings.Compare(matches[i].URI, matches[j].URI)
		}
		if q.Ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (r *fileRepository) ListSharedChildren(_ context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.FileRecord, error) {
	return r.list(func(f *models.FileRecord) bool {
		return f.UserID == ownerID && f.ParentFolderURI == folderURI && !f.Deleted &&
			f.Complete() && !contains(excludedURIs, f.URI)
	}), nil
}

func (r *fileRepository) ListHistory(_ context.Context, userID primitive.ObjectID) ([]models.FileRecord, error) {
	return r.list(func(f *models.FileRecord) bool { return f.UserID == userID && f.InHistory }), nil
}

func (r *fileRepository) ListIncompleteBefore(_ context.Context, cutoff time.Time) ([]models.FileRecord, error) {
	return r.list(func(f *models.FileRecord) bool {
		return !f.Complete() && f.LastModified.Before(cutoff)
	}), nil
}

func (r *fileRepository) SearchByName(_ context.Context, userID primitive.ObjectID, query string) ([]models.FileRecord, error) {
	q := strings.ToLower(query)
	return r.list(func(f *models.FileRecord) bool {
		return f.UserID == userID && !f.Deleted && strings.Contains(strings.ToLower(f.Name), q)
	}), nil
}

func (r *fileRepository) UpdateSizeUploaded(_ context.Context, id primitive.ObjectID, sizeUploaded int64) error {
	return r.update(
		func(f *models.FileRecord) bool { return f.ID == id },
		func(f *models.FileRecord) { f.SizeUploaded = sizeUploaded; f.LastModified = time.Now() })
}

func (r *fileRepository) UpdateParentFolder(_ context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error {
	r.update(
		func(f *models.FileRecord) bool { return f.UserID == userID && contains(uris, f.URI) },
		func(f *models.FileRecord) { f.ParentFolderURI = newParentURI; f.LastModified = time.Now() })
	return nil
}

func (r *fileRepository) Rename(_ context.Context, userID primitive.ObjectID, uri, newName string) error {
	return r.update(
		func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri },
		func(f *models.FileRecord) { f.Name = newName; f.LastModified = time.Now() })
}

func (r *fileRepository) SetFavourite(_ context.Context, userID primitive.ObjectID, uri string) error {
	return r.update(
		func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri },
		func(f *models.FileRecord) { f.Favourite = true })
}

func (r *fileRepository) SetInHistory(_ context.Context, userID primitive.ObjectID, uri string, inHistory bool) error {
	return r.update(
		func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri },
		func(f *models.FileRecord) { f.InHistory = inHistory })
}

func (r *fileRepository) MarkDeleted(_ context.Context, userID primitive.ObjectID, uri string) error {
	return r.update(
		func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri },
		func(f *models.FileRecord) { f.Deleted = true })
}

func (r *fileRepository) deleteWhere(match func(*models.FileRecord) bool) int {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.files[:0]
	removed := 0
	for i := range r.files {
		if match(&r.files[i]) {
			removed++
			continue
		}
		kept = append(kept, r.files[i])
	}
	r.files = kept
	return removed
}

func (r *fileRepository) Delete(_ context.Context, userID primitive.ObjectID, uri string) error {
	if r.deleteWhere(func(f *models.FileRecord) bool { return f.UserID == userID && f.URI == uri }) == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fileRepository) DeleteByURIs(_ context.Context, userID primitive.ObjectID, uris []string) error {
	r.deleteWhere(func(f *models.FileRecord) bool { return f.UserID == userID && contains(uris, f.URI) })
	return nil
}
