package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoStore implements Store over the filevault database.
type MongoStore struct {
	client  *mongo.Client
	files   *mongoFileRepository
	folders *mongoFolderRepository
	shares  *mongoShareRepository
	users   *mongoUserRepository
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:  client,
		files:   &mongoFileRepository{coll: db.Collection("uploaded_files")},
		folders: &mongoFolderRepository{coll: db.Collection("folders")},
		shares:  &mongoShareRepository{coll: db.Collection("shared_files")},
		users:   &mongoUserRepository{coll: db.Collection("users")},
	}
}

func (s *MongoStore) Files() FileRepository     { return s.files }
func (s *MongoStore) Folders() FolderRepository { return s.folders }
func (s *MongoStore) Shares() ShareRepository   { return s.shares }
func (s *MongoStore) Users() UserRepository     { return s.users }

// WithTransaction runs fn inside one multi-document transaction with majority
// write concern, so quota updates and metadata changes land together.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadPreference(readpref.Primary()).
		SetReadConcern(readconcern.Local()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	return err
}
