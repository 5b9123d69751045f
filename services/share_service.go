package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/models"
	"filevault/repository"
)

// ShareService manages grants of files and folder subtrees to other users.
// A grant with an empty grantee is open to anyone holding the share link.
type ShareService struct {
	store repository.Store
	tree  *ContentService
}

func NewShareService(store repository.Store, tree *ContentService) *ShareService {
	return &ShareService{store: store, tree: tree}
}

// ResourceGrant names one resource to share and the entries inside it that
// stay hidden from grantees.
type ResourceGrant struct {
	URI                 string   `json:"uri"`
	ResourceType        string   `json:"resourceType"`
	ExcludedEntriesURIs []string `json:"excludedEntriesUris"`
}

// Grant creates share records for every grantee-resource pair. The whole
// request is validated before anything is written: unknown resources,
// unknown grantees, or a bad resource type reject the batch as a unit.
func (s *ShareService) Grant(ctx context.Context, grantorID primitive.ObjectID, grantees []string, grants []ResourceGrant) ([]models.SharedResource, error) {
	if len(grantees) == 0 || len(grants) == 0 {
		return nil, apperr.Validation("Nothing to share")
	}

	var fileURIs, folderURIs []string
	for _, g := range grants {
		switch g.ResourceType {
		case models.ResourceTypeFile:
			fileURIs = append(fileURIs, g.URI)
		case models.ResourceTypeFolder:
			folderURIs = append(folderURIs, g.URI)
		default:
			return nil, apperr.Validation("Invalid resource type")
		}
	}

	names := map[string]string{}
	if len(fileURIs) > 0 {
		files, err := s.store.Files().ListByURIs(ctx, grantorID, fileURIs)
		if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		for _, f := range files {
			if f.Complete() {
				names[f.URI] = f.Name
			}
		}
	}
	if len(folderURIs) > 0 {
		folders, err := s.store.Folders().ListByURIs(ctx, grantorID, folderURIs)
		if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		for _, f := range folders {
			names[f.URI] = f.Name
		}
	}
	for _, g := range grants {
		if _, ok := names[g.URI]; !ok {
			return nil, apperr.NotFound("Resource to be shared doesn't exist")
		}
	}

	var namedGrantees []string
	for _, grantee := range grantees {
		if grantee != "" {
			namedGrantees = append(namedGrantees, grantee)
		}
	}
	if len(namedGrantees) > 0 {
		users, err := s.store.Users().ListByUsernames(ctx, namedGrantees)
		if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		known := map[string]bool{}
		for _, u := range users {
			known[u.Username] = true
		}
		for _, grantee := range namedGrantees {
			if !known[grantee] {
				return nil, apperr.NotFound("User to share with doesn't exist")
			}
		}
	}

	now := time.Now()
	var shares []models.SharedResource
	for _, grantee := range grantees {
		for _, g := range grants {
			shares = append(shares, models.SharedResource{
				Name:                names[g.URI],
				GrantorID:           grantorID,
				Grantee:             grantee,
				GrantedResourceURI:  g.URI,
				ResourceType:        g.ResourceType,
				ExcludedEntriesURIs: g.ExcludedEntriesURIs,
				TimeShared:          now,
			})
		}
	}
	if err := s.store.Shares().InsertMany(ctx, shares); err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return shares, nil
}

// Authorize loads the share and checks the requesting user may use it. A
// share granted to someone else reads as nonexistent.
func (s *ShareService) Authorize(ctx context.Context, shareID primitive.ObjectID, user *models.User) (*models.SharedResource, error) {
	share, err := s.store.Shares().GetByID(ctx, shareID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("Shared content doesn't exist")
	} else if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	if !share.SharedWithEveryone() && (user == nil || share.Grantee != user.Username) {
		return nil, apperr.NotFound("Shared content doesn't exist")
	}
	return share, nil
}

// ResolveAccess authorizes access to contentURI through the share: the
// content must be the granted resource itself or nested inside a granted
// folder, and must not sit on the exclusion list.
func (s *ShareService) ResolveAccess(ctx context.Context, share *models.SharedResource, contentURI, contentType string) error {
	if containsString(share.ExcludedEntriesURIs, contentURI) {
		return apperr.Authorization("You don't have access to this resource")
	}
	if contentURI == share.GrantedResourceURI {
		if contentType != share.ResourceType {
			return apperr.NotFound("Shared content doesn't exist")
		}
		return nil
	}
	if share.ResourceType != models.ResourceTypeFolder {
		return apperr.NotFound("Shared content doesn't exist")
	}

	nested, err := s.tree.IsNestedIn(ctx, share.GrantorID, share.GrantedResourceURI, contentURI, contentType)
	if err != nil {
		return err
	}
	if !nested {
		return apperr.NotFound("Shared content doesn't exist")
	}
	return nil
}

// ListGrantedBy returns everything the user has shared out.
func (s *ShareService) ListGrantedBy(ctx context.Context, grantorID primitive.ObjectID) ([]models.SharedResource, error) {
	shares, err := s.store.Shares().ListByGrantor(ctx, grantorID)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return shares, nil
}

// Revoke removes the given share records owned by grantorID.
func (s *ShareService) Revoke(ctx context.Context, grantorID primitive.ObjectID, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return apperr.Validation("Nothing to revoke")
	}
	if err := s.store.Shares().DeleteByIDs(ctx, grantorID, ids); err != nil {
		return apperr.Server("Something went wrong", err)
	}
	return nil
}

// SharedListing is one level of a shared folder as seen by a grantee.
type SharedListing struct {
	Folders []models.Folder     `json:"folders"`
	Files   []models.FileRecord `json:"files"`
}

// ListSharedChildren lists the direct children of a folder reached through a
// share, with excluded entries filtered out store-side.
func (s *ShareService) ListSharedChildren(ctx context.Context, share *models.SharedResource, folderURI string) (*SharedListing, error) {
	if err := s.ResolveAccess(ctx, share, folderURI, models.ResourceTypeFolder); err != nil {
		return nil, err
	}
	folders, err := s.store.Folders().ListSharedChildren(ctx, share.GrantorID, folderURI, share.ExcludedEntriesURIs)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	files, err := s.store.Files().ListSharedChildren(ctx, share.GrantorID, folderURI, share.ExcludedEntriesURIs)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	return &SharedListing{Folders: folders, Files: files}, nil
}

// GrantedResource returns the metadata of the share's root resource.
func (s *ShareService) GrantedResource(ctx context.Context, share *models.SharedResource) (interface{}, error) {
	switch share.ResourceType {
	case models.ResourceTypeFile:
		file, err := s.store.Files().GetCompleteByURI(ctx, share.GrantorID, share.GrantedResourceURI)
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("Shared content doesn't exist")
		} else if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		return file, nil
	default:
		folder, err := s.store.Folders().GetByURI(ctx, share.GrantorID, share.GrantedResourceURI)
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("Shared content doesn't exist")
		} else if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		return folder, nil
	}
}
