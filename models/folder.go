package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder is a logical directory. Folders exist only as metadata; children
// reference their parent by URI, so moving a folder moves its whole subtree.
type Folder struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URI             string             `bson:"uri" json:"uri"`
	Name            string             `bson:"name" json:"name"`
	Type            string             `bson:"type" json:"type"`
	IsRoot          bool               `bson:"isRoot" json:"isRoot"`
	ParentFolderURI string             `bson:"parentFolderUri" json:"parentFolderUri"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	TimeCreated     time.Time          `bson:"timeCreated" json:"timeCreated"`
	LastModified    time.Time          `bson:"lastModified" json:"lastModified"`
}
