package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ResourceTypeFile   = "file"
	ResourceTypeFolder = "folder"
)

// SharedResource grants one user (or anyone, when Grantee is empty) read and
// copy access to a file or folder owned by the grantor. For folders the grant
// covers every descendant except the ones listed in ExcludedEntriesURIs.
type SharedResource struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                string             `bson:"name" json:"name"`
	GrantorID           primitive.ObjectID `bson:"grantorId" json:"grantorId"`
	Grantee             string             `bson:"grantee" json:"grantee"`
	GrantedResourceURI  string             `bson:"grantedResourceUri" json:"grantedResourceUri"`
	ResourceType        string             `bson:"resourceType" json:"resourceType"`
	ExcludedEntriesURIs []string           `bson:"excludedEntriesUris" json:"excludedEntriesUris"`
	TimeShared          time.Time          `bson:"timeShared" json:"timeShared"`
}

// SharedWithEveryone reports whether the grant is a public link rather than a
// grant to a named user.
func (s *SharedResource) SharedWithEveryone() bool {
	return s.Grantee == ""
}
