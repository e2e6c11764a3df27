// Package metadatastore is the persistence layer for User, File and Share
// records (spec §4.3), backed by MongoDB via go.mongodb.org/mongo-driver.
//
// The filtered-read convention — soft-deleted records hidden by default —
// is enforced centrally by FileQuery (query_builder.go) rather than left to
// caller discipline, per spec §4.3's requirement that this default "cannot
// be forgotten."
package metadatastore

import (
	"context"
	"time"

	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store wraps the Mongo collections backing the vault's metadata.
type Store struct {
	db    *mongo.Database
	users *mongo.Collection
	files *mongo.Collection
}

// Connect dials uri, pings the server, and returns a Store bound to dbName.
// DB operations carry a selection timeout (~30s) per spec §5.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "connect to mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "ping mongo", err)
	}

	db := client.Database(dbName)
	s := &Store{
		db:    db,
		users: db.Collection("users"),
		files: db.Collection("files"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping checks database liveness for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// isDuplicateKeyError maps a Mongo unique-index violation to the vault's
// AlreadyExists taxonomy entry (spec §5: "two concurrent registrations for
// the same email both pass a pre-check but one fails at commit with a
// duplicate-key error, which the core maps to AlreadyExists").
func isDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
