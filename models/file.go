package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRecord is one uploaded file's metadata. The encrypted bytes live in the
// blob store under PathName; the record is complete once Size == SizeUploaded.
type FileRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URI             string             `bson:"uri" json:"uri"`
	Name            string             `bson:"name" json:"name"`
	PathName        string             `bson:"pathName" json:"pathName"`
	Type            string             `bson:"type" json:"type"`
	Size            int64              `bson:"size" json:"size"`
	SizeUploaded    int64              `bson:"sizeUploaded" json:"sizeUploaded"`
	Hash            string             `bson:"hash" json:"hash"`
	IV              string             `bson:"iv" json:"-"`
	ParentFolderURI string             `bson:"parentFolderUri" json:"parentFolderUri"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	InHistory       bool               `bson:"inHistory" json:"inHistory"`
	Deleted         bool               `bson:"deleted" json:"deleted"`
	Favourite       bool               `bson:"favourite" json:"favourite"`
	TimeUploaded    time.Time          `bson:"timeUploaded" json:"timeUploaded"`
	LastModified    time.Time          `bson:"lastModified" json:"lastModified"`
}

// Complete reports whether every declared byte has been persisted.
func (f *FileRecord) Complete() bool {
	return f.Size == f.SizeUploaded
}
