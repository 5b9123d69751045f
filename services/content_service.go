package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filevault/apperr"
	"filevault/models"
	"filevault/repository"
)

// PageSize is the fixed file page size for folder listings.
const PageSize = 20

// ContentService is the read model over the folder/file tree. The tree is
// stored as flat records with parent-URI pointers; ancestor and descendant
// walks run over an adjacency map built from one bulk read, with cycle
// detection instead of trust in store-side recursion.
type ContentService struct {
	store repository.Store
}

func NewContentService(store repository.Store) *ContentService {
	return &ContentService{store: store}
}

// PathEntry is one breadcrumb step from the root down to a folder.
type PathEntry struct {
	Name   string `json:"name"`
	URI    string `json:"uri"`
	IsRoot bool   `json:"isRoot,omitempty"`
}

// ListChildrenQuery carries the raw pagination parameters from the request.
// Start and StartURI identify the last entry of the previous page; both are
// empty on the first page.
type ListChildrenQuery struct {
	SortKey  string
	Order    string
	Start    string
	StartURI string
}

// FolderListing is one page of a folder's children. Folders and the
// breadcrumb chain are only present on the first page; files are
// keyset-paginated.
type FolderListing struct {
	PathDetails []PathEntry         `json:"pathDetails,omitempty"`
	Folders     []models.Folder     `json:"folders,omitempty"`
	Files       []models.FileRecord `json:"files"`
}

var validSortKeys = map[string]bool{
	"name":         true,
	"size":         true,
	"timeUploaded": true,
	"lastModified": true,
}

// ListChildren returns one page of complete files (and, on the first page,
// all child folders plus the breadcrumb chain) under folderURI.
func (s *ContentService) ListChildren(ctx context.Context, userID primitive.ObjectID, folderURI string, q ListChildrenQuery) (*FolderListing, error) {
	if !validSortKeys[q.SortKey] || (q.Order != "asc" && q.Order != "desc") {
		return nil, apperr.Validation("Invalid sort parameters")
	}

	folder, err := s.store.Folders().GetByURI(ctx, userID, folderURI)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("Folder doesn't exist")
	} else if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}

	listQuery := repository.ListQuery{
		SortKey:   q.SortKey,
		Ascending: q.Order == "asc",
		Limit:     PageSize,
	}
	if q.Start != "" {
		value, err := parseSortValue(q.SortKey, q.Start)
		if err != nil {
			return nil, apperr.Validation("Invalid pagination cursor")
		}
		listQuery.StartValue = value
		listQuery.StartURI = q.StartURI
	}

	files, err := s.store.Files().ListChildren(ctx, userID, folderURI, listQuery)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}

	listing := &FolderListing{Files: files}

	// Folders and the breadcrumb chain are not paginated; the client gets
	// them all on the first page.
	if q.Start == "" {
		ancestors, err := s.AncestorsOf(ctx, userID, folder)
		if err != nil {
			return nil, err
		}
		listing.PathDetails = append(ancestors, PathEntry{Name: folder.Name, URI: folder.URI, IsRoot: folder.IsRoot})

		folders, err := s.store.Folders().ListChildren(ctx, userID, folderURI, q.Order == "asc")
		if err != nil {
			return nil, apperr.Server("Something went wrong", err)
		}
		listing.Folders = folders
	}
	return listing, nil
}

func parseSortValue(sortKey, raw string) (interface{}, error) {
	switch sortKey {
	case "size":
		return strconv.ParseInt(raw, 10, 64)
	case "timeUploaded", "lastModified":
		return time.Parse(time.RFC3339, raw)
	default:
		return raw, nil
	}
}

// AncestorsOf walks parent pointers from folder up to the user's root and
// returns the chain root-first, excluding folder itself. A parent chain that
// revisits a folder is corrupt and reported as a consistency failure.
func (s *ContentService) AncestorsOf(ctx context.Context, userID primitive.ObjectID, folder *models.Folder) ([]PathEntry, error) {
	byURI, err := s.folderIndex(ctx, userID)
	if err != nil {
		return nil, err
	}

	var chain []PathEntry
	visited := map[string]bool{folder.URI: true}
	current := folder
	for !current.IsRoot && current.ParentFolderURI != "" {
		parent, ok := byURI[current.ParentFolderURI]
		if !ok {
			return nil, apperr.Consistency(
				"Something went wrong",
				fmt.Errorf("folder %s references missing parent %s", current.URI, current.ParentFolderURI))
		}
		if visited[parent.URI] {
			return nil, apperr.Consistency(
				"Something went wrong",
				fmt.Errorf("cycle in folder tree at %s", parent.URI))
		}
		visited[parent.URI] = true
		chain = append(chain, PathEntry{Name: parent.Name, URI: parent.URI, IsRoot: parent.IsRoot})
		current = parent
	}

	// Reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// DescendantsOf expands every folder transitively nested under any of the
// given folders. Roots that are nested inside other roots are deduplicated;
// a cycle inside one expansion is a consistency failure.
func (s *ContentService) DescendantsOf(ctx context.Context, userID primitive.ObjectID, rootURIs []string) ([]models.Folder, error) {
	children, err := s.childIndex(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []models.Folder
	seen := map[string]bool{}
	for _, rootURI := range rootURIs {
		visited := map[string]bool{rootURI: true}
		queue := append([]string(nil), rootURI)
		for len(queue) > 0 {
			parentURI := queue[0]
			queue = queue[1:]
			for _, child := range children[parentURI] {
				if visited[child.URI] {
					return nil, apperr.Consistency(
						"Something went wrong",
						fmt.Errorf("cycle in folder tree at %s", child.URI))
				}
				visited[child.URI] = true
				queue = append(queue, child.URI)
				if !seen[child.URI] {
					seen[child.URI] = true
					out = append(out, child)
				}
			}
		}
	}
	return out, nil
}

// IsNestedIn reports whether the content (file or folder) identified by
// contentURI sits anywhere under the folder ownerFolderURI.
func (s *ContentService) IsNestedIn(ctx context.Context, ownerID primitive.ObjectID, ownerFolderURI, contentURI, contentType string) (bool, error) {
	var startFolderURI string
	switch contentType {
	case models.ResourceTypeFile:
		file, err := s.store.Files().GetByURI(ctx, ownerID, contentURI)
		if err == repository.ErrNotFound {
			return false, nil
		} else if err != nil {
			return false, apperr.Server("Something went wrong", err)
		}
		startFolderURI = file.ParentFolderURI
	case models.ResourceTypeFolder:
		folder, err := s.store.Folders().GetByURI(ctx, ownerID, contentURI)
		if err == repository.ErrNotFound {
			return false, nil
		} else if err != nil {
			return false, apperr.Server("Something went wrong", err)
		}
		startFolderURI = folder.ParentFolderURI
	default:
		return false, apperr.Validation("Invalid resource type")
	}

	byURI, err := s.folderIndex(ctx, ownerID)
	if err != nil {
		return false, err
	}
	visited := map[string]bool{}
	for uri := startFolderURI; uri != ""; {
		if uri == ownerFolderURI {
			return true, nil
		}
		if visited[uri] {
			return false, apperr.Consistency(
				"Something went wrong",
				fmt.Errorf("cycle in folder tree at %s", uri))
		}
		visited[uri] = true
		parent, ok := byURI[uri]
		if !ok {
			return false, nil
		}
		uri = parent.ParentFolderURI
	}
	return false, nil
}

func (s *ContentService) folderIndex(ctx context.Context, userID primitive.ObjectID) (map[string]*models.Folder, error) {
	folders, err := s.store.Folders().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	byURI := make(map[string]*models.Folder, len(folders))
	for i := range folders {
		byURI[folders[i].URI] = &folders[i]
	}
	return byURI, nil
}

func (s *ContentService) childIndex(ctx context.Context, userID primitive.ObjectID) (map[string][]models.Folder, error) {
	folders, err := s.store.Folders().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Server("Something went wrong", err)
	}
	children := make(map[string][]models.Folder)
	for _, folder := range folders {
		children[folder.ParentFolderURI] = append(children[folder.ParentFolderURI], folder)
	}
	return children, nil
}
