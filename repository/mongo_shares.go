package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"filevault/models"
)

type mongoShareRepository struct {
	coll *mongo.Collection
}

func (r *mongoShareRepository) InsertMany(ctx context.Context, shares []models.SharedResource) error {
	if len(shares) == 0 {
		return nil
	}
	docs := make([]interface{}, len(shares))
	for i := range shares {
		docs[i] = shares[i]
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert share records: %w", err)
	}
	return nil
}

func (r *mongoShareRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SharedResource, error) {
	var share models.SharedResource
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&share)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find share record: %w", err)
	}
	return &share, nil
}

func (r *mongoShareRepository) ListByGrantor(ctx context.Context, grantorID primitive.ObjectID) ([]models.SharedResource, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"grantorId": grantorID})
	if err != nil {
		return nil, fmt.Errorf("find share records: %w", err)
	}
	defer cursor.Close(ctx)
	var shares []models.SharedResource
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, fmt.Errorf("decode share records: %w", err)
	}
	return shares, nil
}

func (r *mongoShareRepository) DeleteByIDs(ctx context.Context, grantorID primitive.ObjectID, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "grantorId": grantorID}); err != nil {
		return fmt.Errorf("delete share records: %w", err)
	}
	return nil
}

func (r *mongoShareRepository) DeleteByResourceURIs(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if _, err := r.coll.DeleteMany(ctx, bson.M{"grantedResourceUri": bson.M{"$in": uris}}); err != nil {
		return fmt.Errorf("cascade delete share records: %w", err)
	}
	return nil
}
