package metadatastore

import (
	"context"
	"strings"
	"time"

	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateFile inserts a new file record. A duplicate (owner, blob-id) or
// blob-id collision is mapped to AlreadyExists (spec §3 invariant).
func (s *Store) CreateFile(ctx context.Context, f *model.File) error {
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Folder == "" {
		f.Folder = "/"
	}

	res, err := s.files.InsertOne(ctx, f)
	if err != nil {
		if isDuplicateKeyError(err) {
			return vaulterr.New(vaulterr.AlreadyExists, "blob id collision")
		}
		return vaulterr.Wrap(vaulterr.Internal, "insert file", err)
	}
	f.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// GetFile fetches a single file owned by ownerID, applying the filtered-read
// default (hidden if soft-deleted) unless includeDeleted is set.
func (s *Store) GetFile(ctx context.Context, ownerID, fileID primitive.ObjectID, includeDeleted bool) (*model.File, error) {
	q := FileQuery{OwnerID: ownerID, IncludeDeleted: includeDeleted}
	filter := q.Filter()
	filter["_id"] = fileID

	var f model.File
	err := s.files.FindOne(ctx, filter).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return nil, vaulterr.New(vaulterr.NotFound, "file not found")
	}
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "find file", err)
	}
	return &f, nil
}

// GetFileByShareToken looks up a file by its share token regardless of
// owner — anonymous share consumption is not owner-scoped (spec §4.5 Share
// consume).
func (s *Store) GetFileByShareToken(ctx context.Context, token string) (*model.File, error) {
	var f model.File
	err := s.files.FindOne(ctx, bson.M{"share.token": token}).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return nil, vaulterr.New(vaulterr.NotFound, "share not found")
	}
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "find file by share token", err)
	}
	return &f, nil
}

// ListPage is the pagination envelope returned by List (spec §4.5 List).
type ListPage struct {
	Files []model.File
	Page  int
	Limit int
	Total int64
	Pages int
}

// ListOptions configures List per spec §4.5.
type ListOptions struct {
	Page     int
	Limit    int
	Folder   string
	Search   string
	Sort     string // e.g. "-createdAt"; default newest-first
	Deleted  bool   // trash view: is-deleted=true, include-deleted=true
}

// List returns a page of non-deleted (or, for the trash view, deleted)
// files for ownerID, sorted and paginated per spec §4.5.
func (s *Store) List(ctx context.Context, ownerID primitive.ObjectID, opts ListOptions) (*ListPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	q := FileQuery{OwnerID: ownerID, Folder: opts.Folder, Search: opts.Search}
	if opts.Deleted {
		q.OnlyDeleted = true
		q.IncludeDeleted = true
	}
	filter := q.Filter()

	sortKey, sortDir := parseSort(opts.Sort)
	findOpts := options.Find().
		SetSort(bson.D{{Key: sortKey, Value: sortDir}}).
		SetSkip(int64((opts.Page - 1) * opts.Limit)).
		SetLimit(int64(opts.Limit))

	total, err := s.files.CountDocuments(ctx, filter)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "count files", err)
	}

	cur, err := s.files.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "list files", err)
	}
	defer cur.Close(ctx)

	var files []model.File
	if err := cur.All(ctx, &files); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "decode file list", err)
	}

	pages := int(total) / opts.Limit
	if int(total)%opts.Limit != 0 {
		pages++
	}

	return &ListPage{Files: files, Page: opts.Page, Limit: opts.Limit, Total: total, Pages: pages}, nil
}

// parseSort translates the spec's prefix-"-"-for-descending sort key syntax
// (default newest-first) into a Mongo field/direction pair.
func parseSort(sort string) (field string, dir int) {
	if sort == "" {
		return "createdAt", -1
	}
	if strings.HasPrefix(sort, "-") {
		return sort[1:], -1
	}
	return sort, 1
}

// UpdateFields applies the spec §4.5 Update mutable-field set. Immutable
// fields (owner, sizes, checksums, blob-id, MIME) are never accepted here.
type UpdateFields struct {
	OriginalName *string
	Folder       *string
	Tags         []string
	Description  *string
}

func (s *Store) UpdateFile(ctx context.Context, ownerID, fileID primitive.ObjectID, fields UpdateFields) error {
	set := bson.M{"updatedAt": time.Now()}
	if fields.OriginalName != nil {
		set["originalName"] = *fields.OriginalName
	}
	if fields.Folder != nil {
		set["folder"] = *fields.Folder
	}
	if fields.Tags != nil {
		set["tags"] = fields.Tags
	}
	if fields.Description != nil {
		set["description"] = *fields.Description
	}

	q := FileQuery{OwnerID: ownerID}
	filter := q.Filter()
	filter["_id"] = fileID

	res, err := s.files.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "update file", err)
	}
	if res.MatchedCount == 0 {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	return nil
}

// AppendAccessLog pushes one access-log entry, evicting the oldest beyond
// the ring-buffer cap (spec §3).
func (s *Store) AppendAccessLog(ctx context.Context, fileID primitive.ObjectID, entry model.AccessLogEntry) error {
	_, err := s.files.UpdateByID(ctx, fileID, bson.M{
		"$push": bson.M{
			"accessLog": bson.M{
				"$each":  bson.A{entry},
				"$slice": -model.MaxAccessLogEntries,
			},
		},
	})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "append access log", err)
	}
	return nil
}

// IncrementDownloadCount bumps the per-file download counter, independent
// of any share sub-record counter.
func (s *Store) IncrementDownloadCount(ctx context.Context, fileID primitive.ObjectID) error {
	_, err := s.files.UpdateByID(ctx, fileID, bson.M{"$inc": bson.M{"downloadCount": 1}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "increment download count", err)
	}
	return nil
}

// SoftDelete sets isDeleted/deletedAt. Idempotent in the target state (spec
// §4.5).
func (s *Store) SoftDelete(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	now := time.Now()
	res, err := s.files.UpdateOne(ctx,
		bson.M{"_id": fileID, "ownerId": ownerID},
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "soft delete file", err)
	}
	if res.MatchedCount == 0 {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	return nil
}

// Restore inverts SoftDelete. Idempotent in the target state.
func (s *Store) Restore(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	res, err := s.files.UpdateOne(ctx,
		bson.M{"_id": fileID, "ownerId": ownerID},
		bson.M{"$set": bson.M{"isDeleted": false, "deletedAt": nil, "updatedAt": time.Now()}},
	)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "restore file", err)
	}
	if res.MatchedCount == 0 {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	return nil
}

// DeletePermanently removes the metadata record entirely (spec §4.5
// Permanent delete). Blob removal is the caller's (file lifecycle engine's)
// responsibility.
func (s *Store) DeletePermanently(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"_id": fileID, "ownerId": ownerID})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "delete file record", err)
	}
	if res.DeletedCount == 0 {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	return nil
}

// Move atomically sets folder on every file in ids owned by ownerID (spec
// §4.5 Move).
func (s *Store) Move(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, folder string) error {
	_, err := s.files.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "ownerId": ownerID, "isDeleted": false},
		bson.M{"$set": bson.M{"folder": folder, "updatedAt": time.Now()}},
	)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "move files", err)
	}
	return nil
}

// SetShare replaces or clears the share sub-record atomically (spec §4.5
// Share create/revoke).
func (s *Store) SetShare(ctx context.Context, ownerID, fileID primitive.ObjectID, share *model.Share) error {
	res, err := s.files.UpdateOne(ctx,
		bson.M{"_id": fileID, "ownerId": ownerID},
		bson.M{"$set": bson.M{"share": share, "updatedAt": time.Now()}},
	)
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "set share", err)
	}
	if res.MatchedCount == 0 {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	return nil
}

// IncrementShareDownloadCount bumps share.downloadCount for anonymous share
// consumption (spec §4.5 Share consume).
func (s *Store) IncrementShareDownloadCount(ctx context.Context, fileID primitive.ObjectID) error {
	_, err := s.files.UpdateByID(ctx, fileID, bson.M{"$inc": bson.M{"share.downloadCount": 1}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "increment share download count", err)
	}
	return nil
}

// ListAllDeleted returns every soft-deleted file for ownerID — used by
// Empty trash (spec §4.5), which must enumerate "all is-deleted records for
// the user (including deleted)".
func (s *Store) ListAllDeleted(ctx context.Context, ownerID primitive.ObjectID) ([]model.File, error) {
	cur, err := s.files.Find(ctx, bson.M{"ownerId": ownerID, "isDeleted": true})
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "list deleted files", err)
	}
	defer cur.Close(ctx)

	var files []model.File
	if err := cur.All(ctx, &files); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "decode deleted files", err)
	}
	return files, nil
}

// Stats aggregates the owner's non-deleted files (spec §4.5 Stats).
type Stats struct {
	TotalCount         int64
	TotalPlaintextSize int64
	ByCategory         map[model.Category]CategoryStat
	RecentUploads      []model.File
	MostDownloaded     []model.File
}

type CategoryStat struct {
	Count int64
	Size  int64
}

func (s *Store) ComputeStats(ctx context.Context, ownerID primitive.ObjectID) (*Stats, error) {
	filter := bson.M{"ownerId": ownerID, "isDeleted": false}

	cur, err := s.files.Find(ctx, filter)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "stats: list files", err)
	}
	defer cur.Close(ctx)

	var all []model.File
	if err := cur.All(ctx, &all); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "stats: decode files", err)
	}

	st := &Stats{ByCategory: make(map[model.Category]CategoryStat)}
	for _, f := range all {
		st.TotalCount++
		st.TotalPlaintextSize += f.PlaintextSize
		cat := model.CategoryOf(f.MimeType)
		cs := st.ByCategory[cat]
		cs.Count++
		cs.Size += f.PlaintextSize
		st.ByCategory[cat] = cs
	}

	recent := make([]model.File, len(all))
	copy(recent, all)
	sortByCreatedAtDesc(recent)
	if len(recent) > 5 {
		recent = recent[:5]
	}
	st.RecentUploads = recent

	mostDownloaded := make([]model.File, len(all))
	copy(mostDownloaded, all)
	sortByDownloadCountDesc(mostDownloaded)
	if len(mostDownloaded) > 5 {
		mostDownloaded = mostDownloaded[:5]
	}
	st.MostDownloaded = mostDownloaded

	return st, nil
}

func sortByCreatedAtDesc(files []model.File) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && files[j].CreatedAt.After(files[j-1].CreatedAt); j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}

func sortByDownloadCountDesc(files []model.File) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && files[j].DownloadCount > files[j-1].DownloadCount; j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}

// Folders returns the distinct folder set for ownerID's non-deleted files,
// plus a per-folder file count (spec §4.5 Folders).
func (s *Store) Folders(ctx context.Context, ownerID primitive.ObjectID) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ownerId": ownerID, "isDeleted": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$folder", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.files.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "folders aggregation", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]int64)
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "decode folders", err)
	}
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

// KnownBlobIDsForUser reports every blob id referenced by any (including
// soft-deleted) file record for ownerID, used by the orphan scanner so a
// blob pending permanent delete is never treated as orphaned.
func (s *Store) KnownBlobIDsForUser(ctx context.Context, ownerID primitive.ObjectID) (map[string]bool, error) {
	cur, err := s.files.Find(ctx, bson.M{"ownerId": ownerID}, options.Find().SetProjection(bson.M{"blobId": 1}))
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "list blob ids", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]bool)
	var rows []struct {
		BlobID string `bson:"blobId"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "decode blob ids", err)
	}
	for _, r := range rows {
		out[r.BlobID] = true
	}
	return out, nil
}
