package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username        string             `bson:"username" json:"username"`
	Email           string             `bson:"email" json:"email"`
	Password        string             `bson:"password" json:"-"` // scrypt hash, hex encoded
	Salt            string             `bson:"salt" json:"-"`
	HomeFolderURI   string             `bson:"homeFolderUri" json:"homeFolderUri"`
	Plan            string             `bson:"plan" json:"plan"`
	UsedStorage     int64              `bson:"usedStorage" json:"usedStorage"`
	StorageCapacity int64              `bson:"storageCapacity" json:"storageCapacity"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
