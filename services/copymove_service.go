package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
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

// CopyMoveService relocates and duplicates subtrees. Moves are pure metadata
// reparenting in one transaction. Copies commit all new metadata and the
// ledger adjustment first, then materialize the byte blobs; a blob failure
// after commit is surfaced as a consistency error, never a rollback.
type CopyMoveService struct {
	store   repository.Store
	blobs   storage.BlobStore
	tree    *ContentService
	keySalt []byte
	workers int

	derivationSem chan struct{}
}

func NewCopyMoveService(store repository.Store, blobs storage.BlobStore, tree *ContentService, keySalt []byte, workers int) *CopyMoveService {
	if workers < 1 {
		workers = 4
	}
	return &CopyMoveService{
		store:         store,
		blobs:         blobs,
		tree:          tree,
		keySalt:       keySalt,
		workers:       workers,
		derivationSem: make(chan struct{}, 4),
	}
}

func (s *CopyMoveService) deriveKey(secret string) ([]byte, error) {
	s.derivationSem <- struct{}{}
	defer func() { <-s.derivationSem }()
	return cryptox.DeriveKey([]byte(secret), s.keySalt)
}

// Move reparents the given files and folders under destURI. Every URI must
// resolve to an owned record; the whole request fails if any does not.
func (s *CopyMoveService) Move(ctx context.Context, userID primitive.ObjectID, uris []string, destURI string) error {
	if len(uris) == 0 {
		return apperr.Validation("Nothing to move")
	}
	if _, err := s.store.Folders().GetByURI(ctx, userID, destURI); err != nil {
		if err == repository.ErrNotFound {
			return apperr.Validation("Destination folder doesn't exist")
		}
		return apperr.Server("Something went wrong", err)
	}

	folders, files, err := s.resolveSources(ctx, userID, uris)
	if err != nil {
		return err
	}

	folderURIs := make([]string, 0, len(folders))
	for _, f := range folders {
		if f.IsRoot {
			return apperr.Validation("Home folder can't be moved")
		}
		if f.URI == destURI {
			return apperr.Validation("Folder can't be moved into itself")
		}
		folderURIs = append(folderURIs, f.URI)
	}

	// Reparenting a folder under its own subtree would create a cycle.
	if len(folderURIs) > 0 {
		descendants, err := s.tree.DescendantsOf(ctx, userID, folderURIs)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if d.URI == destURI {
				return apperr.Validation("Folder can't be moved into itself")
			}
		}
	}

	fileURIs := make([]string, 0, len(files))
	for _, f := range files {
		fileURIs = append(fileURIs, f.URI)
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if len(fileURIs) > 0 {
			if err := s.store.Files().UpdateParentFolder(ctx, userID, fileURIs, destURI); err != nil {
				return err
			}
		}
		if len(folderURIs) > 0 {
			if err := s.store.Folders().UpdateParentFolder(ctx, userID, folderURIs, destURI); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// Copy duplicates the given files and folder subtrees under destURI for the
// same owner. Blobs are duplicated as-is since the key and IV still apply.
func (s *CopyMoveService) Copy(ctx context.Context, userID primitive.ObjectID, uris []string, destURI string) error {
	if len(uris) == 0 {
		return apperr.Validation("Nothing to copy")
	}
	if _, err := s.store.Folders().GetByURI(ctx, userID, destURI); err != nil {
		if err == repository.ErrNotFound {
			return apperr.Validation("Destination folder doesn't exist")
		}
		return apperr.Server("Something went wrong", err)
	}

	folders, files, err := s.resolveSources(ctx, userID, uris)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.IsRoot {
			return apperr.Validation("Home folder can't be copied")
		}
	}

	folderURIs := make([]string, 0, len(folders))
	for _, f := range folders {
		folderURIs = append(folderURIs, f.URI)
	}
	descendants, err := s.tree.DescendantsOf(ctx, userID, folderURIs)
	if err != nil {
		return err
	}
	allFolders := append(folders, descendants...)

	nested, err := s.nestedFiles(ctx, userID, allFolders)
	if err != nil {
		return err
	}

	plan, err := buildCopyPlan(allFolders, append(files, nested...), destURI, userID, false)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	if err := s.commitPlan(ctx, userID, plan); err != nil {
		return err
	}
	return s.materialize(ctx, plan, nil, nil)
}

// CopyShared duplicates shared content into the requesting user's own tree.
// Every file is decrypted under the grantor's key and re-encrypted under the
// recipient's key with a fresh IV, streamed without buffering the plaintext.
func (s *CopyMoveService) CopyShared(ctx context.Context, user *models.User, share *models.SharedResource, uris []string, destURI string) error {
	if len(uris) == 0 {
		return apperr.Validation("Nothing to copy")
	}
	if _, err := s.store.Folders().GetByURI(ctx, user.ID, destURI); err != nil {
		if err == repository.ErrNotFound {
			return apperr.Validation("Destination folder doesn't exist")
		}
		return apperr.Server("Something went wrong", err)
	}

	grantor, err := s.store.Users().GetByID(ctx, share.GrantorID)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}

	for _, uri := range uris {
		if containsString(share.ExcludedEntriesURIs, uri) {
			return apperr.Authorization("You don't have access to this resource")
		}
	}

	folders, files, err := s.resolveSharedSources(ctx, grantor.ID, share, uris)
	if err != nil {
		return err
	}

	nested, err := s.nestedFiles(ctx, grantor.ID, folders)
	if err != nil {
		return err
	}
	kept := nested[:0]
	for _, f := range nested {
		if !containsString(share.ExcludedEntriesURIs, f.URI) {
			kept = append(kept, f)
		}
	}

	plan, err := buildCopyPlan(folders, append(files, kept...), destURI, user.ID, true)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	if err := s.commitPlan(ctx, user.ID, plan); err != nil {
		return err
	}

	srcKey, err := s.deriveKey(grantor.Password)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	dstKey, err := s.deriveKey(user.Password)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return s.materialize(ctx, plan, srcKey, dstKey)
}

// resolveSources loads the owned folders and complete files behind uris and
// rejects the request when any reference cannot be resolved.
func (s *CopyMoveService) resolveSources(ctx context.Context, userID primitive.ObjectID, uris []string) ([]models.Folder, []models.FileRecord, error) {
	folders, err := s.store.Folders().ListByURIs(ctx, userID, uris)
	if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}
	files, err := s.store.Files().ListByURIs(ctx, userID, uris)
	if err != nil {
		return nil, nil, apperr.Server("Something went wrong", err)
	}

	resolved := map[string]bool{}
	for _, f := range folders {
		resolved[f.URI] = true
	}
	for _, f := range files {
		if f.Complete() {
			resolved[f.URI] = true
		}
	}
	var invalid []string
	for _, uri := range uris {
		if !resolved[uri] {
			invalid = append(invalid, uri)
		}
	}
	if len(invalid) > 0 {
		return nil, nil, apperr.ValidationWithDetails("Invalid content references", invalid)
	}

	complete := files[:0]
	for _, f := range files {
		if f.Complete() {
			complete = append(complete, f)
		}
	}
	return folders, complete, nil
}

// resolveSharedSources maps requested uris onto the share's granted subtree.
// Folder targets expand to the subtree minus excluded branches; anything
// outside the grant reads as nonexistent rather than forbidden.
func (s *CopyMoveService) resolveSharedSources(ctx context.Context, grantorID primitive.ObjectID, share *models.SharedResource, uris []string) ([]models.Folder, []models.FileRecord, error) {
	if share.ResourceType == models.ResourceTypeFile {
		if len(uris) != 1 || uris[0] != share.GrantedResourceURI {
			return nil, nil, apperr.NotFound("Shared content doesn't exist")
		}
		file, err := s.store.Files().GetCompleteByURI(ctx, grantorID, uris[0])
		if err == repository.ErrNotFound {
			return nil, nil, apperr.NotFound("Shared content doesn't exist")
		} else if err != nil {
			return nil, nil, apperr.Server("Something went wrong", err)
		}
		return nil, []models.FileRecord{*file}, nil
	}

	allowed, err := s.allowedFolders(ctx, grantorID, share)
	if err != nil {
		return nil, nil, err
	}

	var folderTargets []string
	var fileTargets []string
	for _, uri := range uris {
		if _, ok := allowed[uri]; ok {
			folderTargets = append(folderTargets, uri)
		} else {
			fileTargets = append(fileTargets, uri)
		}
	}

	var folders []models.Folder
	if len(folderTargets) > 0 {
		targets, err := s.store.Folders().ListByURIs(ctx, grantorID, folderTargets)
		if err != nil {
			return nil, nil, apperr.Server("Something went wrong", err)
		}
		folders = targets
		descendants, err := s.tree.DescendantsOf(ctx, grantorID, folderTargets)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range descendants {
			if _, ok := allowed[d.URI]; ok {
				folders = append(folders, d)
			}
		}
	}

	var files []models.FileRecord
	if len(fileTargets) > 0 {
		records, err := s.store.Files().ListByURIs(ctx, grantorID, fileTargets)
		if err != nil {
			return nil, nil, apperr.Server("Something went wrong", err)
		}
		resolved := map[string]bool{}
		for _, f := range records {
			if !f.Complete() {
				continue
			}
			if _, ok := allowed[f.ParentFolderURI]; !ok {
				continue
			}
			resolved[f.URI] = true
			files = append(files, f)
		}
		for _, uri := range fileTargets {
			if !resolved[uri] {
				return nil, nil, apperr.NotFound("Shared content doesn't exist")
			}
		}
	}
	return folders, files, nil
}

// allowedFolders is the set of folder URIs reachable through the share: the
// granted folder and its descendants, minus excluded folders and everything
// under them.
func (s *CopyMoveService) allowedFolders(ctx context.Context, grantorID primitive.ObjectID, share *models.SharedResource) (map[string]struct{}, error) {
	descendants, err := s.tree.DescendantsOf(ctx, grantorID, []string{share.GrantedResourceURI})
	if err != nil {
		return nil, err
	}
	allowed := map[string]struct{}{share.GrantedResourceURI: {}}
	for _, d := range descendants {
		allowed[d.URI] = struct{}{}
	}

	var excludedFolders []string
	for _, uri := range share.ExcludedEntriesURIs {
		if _, ok := allowed[uri]; ok {
			excludedFolders = append(excludedFolders, uri)
		}
	}
	if len(excludedFolders) > 0 {
		shadow, err := s.tree.DescendantsOf(ctx, grantorID, excludedFolders)
		if err != nil {
			return nil, err
		}
		for _, uri := range excludedFolders {
			delete(allowed, uri)
		}
		for _, d := range shadow {
			delete(allowed, d.URI)
		}
	}
	return allowed, nil
}

func (s *CopyMoveService) nestedFiles(ctx context.Context, ownerID primitive.ObjectID, folders []models.Folder) ([]models.FileRecord, error) {
	if len(folders) == 0 {
		return nil, nil
	}
	parentURIs := make([]string, 0, len(folders))
	for _, f := range folders {
		parentURIs = append(parentURIs, f.URI)
	}
	all, err := s.store.Files().ListByParentURIs(ctx, ownerID, parentURIs)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	complete := all[:0]
	for _, f := range all {
		if f.Complete() {
			complete = append(complete, f)
		}
	}
	return complete, nil
}

type blobJob struct {
	srcPath   string
	dstPath   string
	reencrypt bool
	srcIV     string
	dstIV     string
}

type copyPlan struct {
	folders   []models.Folder
	files     []models.FileRecord
	jobs      []blobJob
	totalSize int64
}

// buildCopyPlan mints fresh identities for every record in the subtree and
// rewires parent pointers: children of a copied folder follow their copied
// parent, everything else lands directly under destURI.
func buildCopyPlan(folders []models.Folder, files []models.FileRecord, destURI string, newOwner primitive.ObjectID, freshIV bool) (*copyPlan, error) {
	now := time.Now()
	plan := &copyPlan{}
	seenFiles := map[string]bool{}

	newFolderURI := make(map[string]string, len(folders))
	for _, f := range folders {
		newFolderURI[f.URI] = uuid.NewString()
	}

	remap := func(oldParent string) string {
		if mapped, ok := newFolderURI[oldParent]; ok {
			return mapped
		}
		return destURI
	}

	for _, f := range folders {
		plan.folders = append(plan.folders, models.Folder{
			URI:             newFolderURI[f.URI],
			Name:            f.Name,
			Type:            f.Type,
			ParentFolderURI: remap(f.ParentFolderURI),
			UserID:          newOwner,
			TimeCreated:     now,
			LastModified:    now,
		})
	}

	for _, f := range files {
		if seenFiles[f.URI] {
			continue
		}
		seenFiles[f.URI] = true

		iv := f.IV
		if freshIV {
			fresh, err := cryptox.NewIV()
			if err != nil {
				return nil, err
			}
			iv = fresh
		}
		dstPath := strings.ReplaceAll(uuid.NewString(), "-", "") + ".ufile"
		plan.files = append(plan.files, models.FileRecord{
			URI:             uuid.NewString(),
			Name:            f.Name,
			PathName:        dstPath,
			Type:            f.Type,
			Size:            f.Size,
			SizeUploaded:    f.SizeUploaded,
			Hash:            f.Hash,
			IV:              iv,
			ParentFolderURI: remap(f.ParentFolderURI),
			UserID:          newOwner,
			InHistory:       f.InHistory,
			Favourite:       f.Favourite,
			TimeUploaded:    f.TimeUploaded,
			LastModified:    now,
		})
		plan.jobs = append(plan.jobs, blobJob{
			srcPath:   f.PathName,
			dstPath:   dstPath,
			reencrypt: freshIV,
			srcIV:     f.IV,
			dstIV:     iv,
		})
		plan.totalSize += f.Size
	}
	return plan, nil
}

// commitPlan writes all new metadata and the ledger adjustment atomically.
func (s *CopyMoveService) commitPlan(ctx context.Context, userID primitive.ObjectID, plan *copyPlan) error {
	if len(plan.folders) == 0 && len(plan.files) == 0 {
		return apperr.Validation("Nothing to copy")
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	if user.UsedStorage+plan.totalSize > user.StorageCapacity {
		return apperr.Validation("Storage quota exceeded")
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if len(plan.folders) > 0 {
			if err := s.store.Folders().InsertMany(ctx, plan.folders); err != nil {
				return err
			}
		}
		if len(plan.files) > 0 {
			if err := s.store.Files().InsertMany(ctx, plan.files); err != nil {
				return err
			}
		}
		if plan.totalSize > 0 {
			return s.store.Users().AdjustUsedStorage(ctx, userID, plan.totalSize)
		}
		return nil
	})
	if err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// materialize runs the blob jobs under a bounded worker pool and waits for
// every pending job before reporting. Failures leave the committed metadata
// in place and surface as a consistency error.
func (s *CopyMoveService) materialize(ctx context.Context, plan *copyPlan, srcKey, dstKey []byte) error {
	if len(plan.jobs) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, job := range plan.jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job blobJob) {
			defer wg.Done()
			defer func() { <-sem }()

			var err error
			if job.reencrypt {
				err = s.reencryptBlob(ctx, job, srcKey, dstKey)
			} else {
				err = s.blobs.Copy(ctx, job.srcPath, job.dstPath)
			}
			if err != nil {
				utils.LogError(fmt.Sprintf("copying blob %s to %s", job.srcPath, job.dstPath), err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()

	if firstErr != nil {
		return apperr.Consistency("Something went wrong", firstErr)
	}
	return nil
}

// reencryptBlob streams ciphertext through decrypt-then-encrypt so the copy
// is readable under the destination owner's key without the plaintext ever
// being held in full.
func (s *CopyMoveService) reencryptBlob(ctx context.Context, job blobJob, srcKey, dstKey []byte) error {
	src, err := s.blobs.Open(ctx, job.srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dec, err := cryptox.NewDecryptor(srcKey, job.srcIV)
	if err != nil {
		return err
	}
	enc, err := cryptox.NewEncryptor(dstKey, job.dstIV)
	if err != nil {
		return err
	}

	dst, err := s.blobs.Create(ctx, job.dstPath)
	if err != nil {
		return err
	}

	plain := cryptox.NewStreamReader(src, dec)
	cipher := cryptox.NewStreamReader(plain, enc)
	if _, err := io.Copy(dst, cipher); err != nil {
		dst.Close()
		s.blobs.Delete(ctx, job.dstPath)
		return err
	}
	return dst.Close()
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
