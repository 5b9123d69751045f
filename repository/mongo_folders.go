package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filevault/models"
)

type mongoFolderRepository struct {
	coll *mongo.Collection
}

func (r *mongoFolderRepository) Insert(ctx context.Context, folder *models.Folder) error {
	res, err := r.coll.InsertOne(ctx, folder)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	folder.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoFolderRepository) InsertMany(ctx context.Context, folders []models.Folder) error {
	if len(folders) == 0 {
		return nil
	}
	docs := make([]interface{}, len(folders))
	for i := range folders {
		docs[i] = folders[i]
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert folders: %w", err)
	}
	return nil
}

func (r *mongoFolderRepository) GetByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.Folder, error) {
	var folder models.Folder
	err := r.coll.FindOne(ctx, bson.M{"userId": userID, "uri": uri}).Decode(&folder)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return &folder, nil
}

func (r *mongoFolderRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Folder, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find folders: %w", err)
	}
	defer cursor.Close(ctx)
	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("decode folders: %w", err)
	}
	return folders, nil
}

func (r *mongoFolderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Folder, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

func (r *mongoFolderRepository) ListByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) ([]models.Folder, error) {
	return r.find(ctx, bson.M{"userId": userID, "uri": bson.M{"$in": uris}})
}

func (r *mongoFolderRepository) ListChildren(ctx context.Context, userID primitive.ObjectID, folderURI string, ascending bool) ([]models.Folder, error) {
	dir := -1
	if ascending {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: dir}, {Key: "_id", Value: dir}})
	return r.find(ctx, bson.M{"userId": userID, "parentFolderUri": folderURI, "isRoot": false}, opts)
}

func (r *mongoFolderRepository) ListSharedChildren(ctx context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.Folder, error) {
	return r.find(ctx, bson.M{
		"userId":          ownerID,
		"parentFolderUri": folderURI,
		"isRoot":          false,
		"uri":             bson.M{"$nin": excludedURIs},
	})
}

func (r *mongoFolderRepository) UpdateParentFolder(ctx context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "uri": bson.M{"$in": uris}},
		bson.M{"$set": bson.M{"parentFolderUri": newParentURI, "lastModified": time.Now()}})
	if err != nil {
		return fmt.Errorf("update folder parents: %w", err)
	}
	return nil
}

func (r *mongoFolderRepository) Rename(ctx context.Context, userID primitive.ObjectID, uri, newName string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "uri": uri},
		bson.M{"$set": bson.M{"name": newName, "lastModified": time.Now()}})
	if err != nil {
		return fmt.Errorf("rename folder: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFolderRepository) DeleteByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID, "uri": bson.M{"$in": uris}}); err != nil {
		return fmt.Errorf("delete folders: %w", err)
	}
	return nil
}

func (r *mongoFolderRepository) SearchByName(ctx context.Context, userID primitive.ObjectID, query string) ([]models.Folder, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return r.find(ctx, bson.M{"userId": userID, "name": pattern, "isRoot": false})
}
