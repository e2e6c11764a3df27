package metadatastore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureIndexes creates the indexes required by spec §4.3:
// unique(username), unique(email), unique(blob-id), unique(share-token)
// sparse, composite(owner, created-at desc), composite(owner, folder),
// composite(is-deleted, deleted-at), and a full-text index over
// (original-name, tags, description).
func (s *Store) ensureIndexes(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := s.users.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	fileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "blobId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "share.token", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "folder", Value: 1}}},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "deletedAt", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "originalName", Value: "text"},
				{Key: "tags", Value: "text"},
				{Key: "description", Value: "text"},
			},
		},
	}
	if _, err := s.files.Indexes().CreateMany(ctx, fileIndexes); err != nil {
		return err
	}
	return nil
}
