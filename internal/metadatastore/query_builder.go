package metadatastore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileQuery centralizes the filtered-read convention from spec §4.3: every
// list/get query hides soft-deleted records unless IncludeDeleted is set
// explicitly. Building the filter through this type — rather than each call
// site constructing its own bson.M — is what makes the default impossible
// to forget, per the spec's requirement that it be "the behavior of the
// query builder, not a caller concern."
type FileQuery struct {
	OwnerID        primitive.ObjectID
	IncludeDeleted bool
	OnlyDeleted    bool // trash view: is-deleted=true
	Folder         string
	Search         string
}

// Filter materializes the bson.M filter document for this query.
func (q FileQuery) Filter() bson.M {
	filter := bson.M{"ownerId": q.OwnerID}

	switch {
	case q.OnlyDeleted:
		filter["isDeleted"] = true
	case !q.IncludeDeleted:
		filter["isDeleted"] = false
	}

	if q.Folder != "" {
		filter["folder"] = q.Folder
	}
	if q.Search != "" {
		filter["$text"] = bson.M{"$search": q.Search}
	}
	return filter
}
