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

type mongoFileRepository struct {
	coll *mongo.Collection
}

// completeExpr matches records whose upload finished.
var completeExpr = bson.M{"$expr": bson.M{"$eq": bson.A{"$size", "$sizeUploaded"}}}

func (r *mongoFileRepository) Insert(ctx context.Context, file *models.FileRecord) error {
	res, err := r.coll.InsertOne(ctx, file)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	file.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoFileRepository) InsertMany(ctx context.Context, files []models.FileRecord) error {
	if len(files) == 0 {
		return nil
	}
	docs := make([]interface{}, len(files))
	for i := range files {
		docs[i] = files[i]
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert file records: %w", err)
	}
	return nil
}

func (r *mongoFileRepository) findOne(ctx context.Context, filter bson.M) (*models.FileRecord, error) {
	var file models.FileRecord
	err := r.coll.FindOne(ctx, filter).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find file record: %w", err)
	}
	return &file, nil
}

func (r *mongoFileRepository) GetByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "uri": uri})
}

func (r *mongoFileRepository) GetCompleteByURI(ctx context.Context, userID primitive.ObjectID, uri string) (*models.FileRecord, error) {
	filter := bson.M{"userId": userID, "uri": uri}
	for k, v := range completeExpr {
		filter[k] = v
	}
	return r.findOne(ctx, filter)
}

func (r *mongoFileRepository) GetByHash(ctx context.Context, userID primitive.ObjectID, hash, name string) (*models.FileRecord, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "hash": hash, "name": name})
}

func (r *mongoFileRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.FileRecord, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find file records: %w", err)
	}
	defer cursor.Close(ctx)
	var files []models.FileRecord
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("decode file records: %w", err)
	}
	return files, nil
}

func (r *mongoFileRepository) ListByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) ([]models.FileRecord, error) {
	return r.find(ctx, bson.M{"userId": userID, "uri": bson.M{"$in": uris}, "deleted": false})
}

func (r *mongoFileRepository) ListByParentURIs(ctx context.Context, userID primitive.ObjectID, parentURIs []string) ([]models.FileRecord, error) {
	return r.find(ctx, bson.M{"userId": userID, "parentFolderUri": bson.M{"$in": parentURIs}, "deleted": false})
}

func (r *mongoFileRepository) ListChildren(ctx context.Context, userID primitive.ObjectID, folderURI string, q ListQuery) ([]models.FileRecord, error) {
	filter := bson.M{
		"userId":          userID,
		"parentFolderUri": folderURI,
		"deleted":         false,
	}
	for k, v := range completeExpr {
		filter[k] = v
	}
	if q.StartValue != nil {
		// Compound cursor: strictly past the start value, or tied on it and
		// past the start record's uri. Records tying with the previous page's
		// tail are neither skipped nor repeated.
		cmp := "$lt"
		if q.Ascending {
			cmp = "$gt"
		}
		filter["$or"] = bson.A{
			bson.M{q.SortKey: bson.M{cmp: q.StartValue}},
			bson.M{q.SortKey: q.StartValue, "uri": bson.M{cmp: q.StartURI}},
		}
	}
	dir := -1
	if q.Ascending {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: q.SortKey, Value: dir}, {Key: "uri", Value: dir}}).
		SetLimit(int64(q.Limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoFileRepository) ListSharedChildren(ctx context.Context, ownerID primitive.ObjectID, folderURI string, excludedURIs []string) ([]models.FileRecord, error) {
	filter := bson.M{
		"userId":          ownerID,
		"parentFolderUri": folderURI,
		"deleted":         false,
		"uri":             bson.M{"$nin": excludedURIs},
	}
	for k, v := range completeExpr {
		filter[k] = v
	}
	return r.find(ctx, filter)
}

func (r *mongoFileRepository) ListHistory(ctx context.Context, userID primitive.ObjectID) ([]models.FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timeUploaded", Value: -1}})
	return r.find(ctx, bson.M{"userId": userID, "inHistory": true}, opts)
}

func (r *mongoFileRepository) ListIncompleteBefore(ctx context.Context, cutoff time.Time) ([]models.FileRecord, error) {
	return r.find(ctx, bson.M{
		"$expr":        bson.M{"$ne": bson.A{"$size", "$sizeUploaded"}},
		"lastModified": bson.M{"$lt": cutoff},
	})
}

func (r *mongoFileRepository) SearchByName(ctx context.Context, userID primitive.ObjectID, query string) ([]models.FileRecord, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return r.find(ctx, bson.M{"userId": userID, "name": pattern, "deleted": false})
}

func (r *mongoFileRepository) UpdateSizeUploaded(ctx context.Context, id primitive.ObjectID, sizeUploaded int64) error {
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"sizeUploaded": sizeUploaded, "lastModified": time.Now()}})
}

func (r *mongoFileRepository) UpdateParentFolder(ctx context.Context, userID primitive.ObjectID, uris []string, newParentURI string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "uri": bson.M{"$in": uris}},
		bson.M{"$set": bson.M{"parentFolderUri": newParentURI, "lastModified": time.Now()}})
	if err != nil {
		return fmt.Errorf("update file parents: %w", err)
	}
	return nil
}

func (r *mongoFileRepository) Rename(ctx context.Context, userID primitive.ObjectID, uri, newName string) error {
	return r.updateOne(ctx, bson.M{"userId": userID, "uri": uri}, bson.M{"$set": bson.M{"name": newName, "lastModified": time.Now()}})
}

func (r *mongoFileRepository) SetFavourite(ctx context.Context, userID primitive.ObjectID, uri string) error {
	return r.updateOne(ctx, bson.M{"userId": userID, "uri": uri}, bson.M{"$set": bson.M{"favourite": true}})
}

func (r *mongoFileRepository) SetInHistory(ctx context.Context, userID primitive.ObjectID, uri string, inHistory bool) error {
	return r.updateOne(ctx, bson.M{"userId": userID, "uri": uri}, bson.M{"$set": bson.M{"inHistory": inHistory}})
}

func (r *mongoFileRepository) MarkDeleted(ctx context.Context, userID primitive.ObjectID, uri string) error {
	return r.updateOne(ctx, bson.M{"userId": userID, "uri": uri}, bson.M{"$set": bson.M{"deleted": true}})
}

func (r *mongoFileRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update file record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFileRepository) Delete(ctx context.Context, userID primitive.ObjectID, uri string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID, "uri": uri})
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoFileRepository) DeleteByURIs(ctx context.Context, userID primitive.ObjectID, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID, "uri": bson.M{"$in": uris}}); err != nil {
		return fmt.Errorf("delete file records: %w", err)
	}
	return nil
}
