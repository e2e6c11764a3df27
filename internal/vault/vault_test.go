package vault_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/zynqcloud/securevault/internal/blobstore"
	"github.com/zynqcloud/securevault/internal/cryptoengine"
	"github.com/zynqcloud/securevault/internal/metadatastore"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vault"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeFiles is an in-memory stand-in for metadatastore.Store's file
// operations, letting the lifecycle engine be exercised without a live
// MongoDB.
type fakeFiles struct {
	byID map[primitive.ObjectID]*model.File
}

func newFakeFiles() *fakeFiles { return &fakeFiles{byID: map[primitive.ObjectID]*model.File{}} }

func (f *fakeFiles) CreateFile(_ context.Context, file *model.File) error {
	file.ID = primitive.NewObjectID()
	file.CreatedAt = time.Now()
	file.UpdatedAt = time.Now()
	cp := *file
	f.byID[file.ID] = &cp
	return nil
}

func (f *fakeFiles) GetFile(_ context.Context, ownerID, fileID primitive.ObjectID, includeDeleted bool) (*model.File, error) {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return nil, vaulterr.New(vaulterr.NotFound, "file not found")
	}
	if rec.IsDeleted && !includeDeleted {
		return nil, vaulterr.New(vaulterr.NotFound, "file not found")
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeFiles) GetFileByShareToken(_ context.Context, token string) (*model.File, error) {
	for _, rec := range f.byID {
		if rec.Share != nil && rec.Share.Token == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, vaulterr.New(vaulterr.NotFound, "share not found")
}

func (f *fakeFiles) List(_ context.Context, ownerID primitive.ObjectID, opts metadatastore.ListOptions) (*metadatastore.ListPage, error) {
	var all []model.File
	for _, rec := range f.byID {
		if rec.OwnerID != ownerID {
			continue
		}
		if opts.Deleted {
			if !rec.IsDeleted {
				continue
			}
		} else if rec.IsDeleted {
			continue
		}
		if opts.Folder != "" && rec.Folder != opts.Folder {
			continue
		}
		all = append(all, *rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return &metadatastore.ListPage{Files: all, Page: 1, Limit: 20, Total: int64(len(all)), Pages: 1}, nil
}

func (f *fakeFiles) UpdateFile(_ context.Context, ownerID, fileID primitive.ObjectID, fields metadatastore.UpdateFields) error {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	if fields.OriginalName != nil {
		rec.OriginalName = *fields.OriginalName
	}
	if fields.Folder != nil {
		rec.Folder = *fields.Folder
	}
	if fields.Tags != nil {
		rec.Tags = fields.Tags
	}
	if fields.Description != nil {
		rec.Description = *fields.Description
	}
	return nil
}

func (f *fakeFiles) AppendAccessLog(_ context.Context, fileID primitive.ObjectID, entry model.AccessLogEntry) error {
	if rec, ok := f.byID[fileID]; ok {
		rec.AppendAccessLog(entry)
	}
	return nil
}

func (f *fakeFiles) IncrementDownloadCount(_ context.Context, fileID primitive.ObjectID) error {
	if rec, ok := f.byID[fileID]; ok {
		rec.DownloadCount++
	}
	return nil
}

func (f *fakeFiles) SoftDelete(_ context.Context, ownerID, fileID primitive.ObjectID) error {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	rec.IsDeleted = true
	now := time.Now()
	rec.DeletedAt = &now
	return nil
}

func (f *fakeFiles) Restore(_ context.Context, ownerID, fileID primitive.ObjectID) error {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	rec.IsDeleted = false
	rec.DeletedAt = nil
	return nil
}

func (f *fakeFiles) DeletePermanently(_ context.Context, ownerID, fileID primitive.ObjectID) error {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	delete(f.byID, fileID)
	return nil
}

func (f *fakeFiles) Move(_ context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, folder string) error {
	for _, id := range ids {
		if rec, ok := f.byID[id]; ok && rec.OwnerID == ownerID {
			rec.Folder = folder
		}
	}
	return nil
}

func (f *fakeFiles) SetShare(_ context.Context, ownerID, fileID primitive.ObjectID, share *model.Share) error {
	rec, ok := f.byID[fileID]
	if !ok || rec.OwnerID != ownerID {
		return vaulterr.New(vaulterr.NotFound, "file not found")
	}
	rec.Share = share
	return nil
}

func (f *fakeFiles) IncrementShareDownloadCount(_ context.Context, fileID primitive.ObjectID) error {
	if rec, ok := f.byID[fileID]; ok && rec.Share != nil {
		rec.Share.DownloadCount++
	}
	return nil
}

func (f *fakeFiles) ListAllDeleted(_ context.Context, ownerID primitive.ObjectID) ([]model.File, error) {
	var out []model.File
	for _, rec := range f.byID {
		if rec.OwnerID == ownerID && rec.IsDeleted {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeFiles) ComputeStats(_ context.Context, ownerID primitive.ObjectID) (*metadatastore.Stats, error) {
	return &metadatastore.Stats{ByCategory: map[model.Category]metadatastore.CategoryStat{}}, nil
}

func (f *fakeFiles) Folders(_ context.Context, ownerID primitive.ObjectID) (map[string]int64, error) {
	out := map[string]int64{}
	for _, rec := range f.byID {
		if rec.OwnerID == ownerID && !rec.IsDeleted {
			out[rec.Folder]++
		}
	}
	return out, nil
}

// fakeUsers doubles as both vault.UserRepo and quota.UserStore.
type fakeUsers struct {
	byID map[primitive.ObjectID]*model.User
}

func newFakeUsers(u *model.User) *fakeUsers {
	return &fakeUsers{byID: map[primitive.ObjectID]*model.User{u.ID: u}}
}

func (f *fakeUsers) GetUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, vaulterr.New(vaulterr.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) AdjustStorageUsed(_ context.Context, id primitive.ObjectID, delta int64) error {
	u := f.byID[id]
	u.StorageUsed += delta
	if u.StorageUsed < 0 {
		u.StorageUsed = 0
	}
	return nil
}

func (f *fakeUsers) RecordFailedLogin(_ context.Context, id primitive.ObjectID, failedCount int, lockedUntil *time.Time) error {
	return nil
}

func (f *fakeUsers) RecordSuccessfulLogin(_ context.Context, id primitive.ObjectID) error {
	return nil
}

func newTestEngine(t *testing.T, u *model.User) (*vault.Engine, *fakeUsers) {
	e, users, _ := newTestEngineWithBlobs(t, u)
	return e, users
}

func newTestEngineWithBlobs(t *testing.T, u *model.User) (*vault.Engine, *fakeUsers, *blobstore.Store) {
	t.Helper()
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	users := newFakeUsers(u)
	q := quota.NewManager(users)
	return vault.New(newFakeFiles(), users, blobs, q), users, blobs
}

func newTestUser(t *testing.T) *model.User {
	t.Helper()
	key, err := cryptoengine.GenerateUserKey()
	require.NoError(t, err)
	return &model.User{
		ID:           primitive.NewObjectID(),
		Username:     "alice",
		Email:        "alice@x.y",
		UserKeyHex:   key.String(),
		StorageLimit: model.DefaultStorageLimitBytes,
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	u := newTestUser(t)
	e, users := newTestEngine(t, u)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0x41}, 1024)
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "a.txt", MimeType: "text/plain", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Files, 1)
	assert.Equal(t, int64(1024), result.Files[0].PlaintextSize)

	updated, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), updated.StorageUsed)

	dl, err := e.Download(ctx, u, result.Files[0].ID, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, payload, dl.Plaintext)
	assert.Equal(t, int64(1024), dl.ContentSize)
}

func TestUploadRejectsOverQuota(t *testing.T) {
	u := newTestUser(t)
	u.StorageLimit = 1 << 20 // 1 MiB
	u.StorageUsed = 900 * 1024
	e, _ := newTestEngine(t, u)

	payload := bytes.Repeat([]byte{0x01}, 200*1024)
	_, err := e.Upload(context.Background(), u, []vault.UploadInput{{
		OriginalName: "big.bin", MimeType: "application/octet-stream", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.Error(t, err)
	assert.Equal(t, vaulterr.QuotaExceeded, vaulterr.KindOf(err))
	assert.Equal(t, int64(900*1024), u.StorageUsed)
}

func TestSoftDeleteHidesFromDefaultListing(t *testing.T) {
	u := newTestUser(t)
	e, _ := newTestEngine(t, u)
	ctx := context.Background()

	payload := []byte("hello")
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "f.txt", MimeType: "text/plain", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)
	id := result.Files[0].ID

	require.NoError(t, e.SoftDelete(ctx, u.ID, id))

	list, err := e.List(ctx, u.ID, vault.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Files)

	trash, err := e.List(ctx, u.ID, vault.ListOptions{Deleted: true})
	require.NoError(t, err)
	require.Len(t, trash.Files, 1)

	require.NoError(t, e.Restore(ctx, u.ID, id))
	list, err = e.List(ctx, u.ID, vault.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
}

func TestPermanentDeleteRefundsQuota(t *testing.T) {
	u := newTestUser(t)
	e, users := newTestEngine(t, u)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0x02}, 2048)
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "f.bin", MimeType: "application/octet-stream", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)

	require.NoError(t, e.DeletePermanently(ctx, u, result.Files[0].ID))

	updated, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.StorageUsed)

	_, err = e.Get(ctx, u.ID, result.Files[0].ID)
	assert.Equal(t, vaulterr.NotFound, vaulterr.KindOf(err))
}

func TestShareLifecycle(t *testing.T) {
	u := newTestUser(t)
	e, _ := newTestEngine(t, u)
	ctx := context.Background()

	payload := []byte("share me")
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "s.txt", MimeType: "text/plain", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)
	fileID := result.Files[0].ID

	maxDL := 2
	share, err := e.ShareCreate(ctx, u.ID, fileID, "https://vault.example", vault.ShareCreateInput{
		ExpiresInDays: 1, MaxDownloads: &maxDL, Password: "p@ss",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(share.ShareURL, share.ShareToken))
	assert.True(t, share.HasPassword)

	res, err := e.ShareConsume(ctx, share.ShareToken, "", "1.2.3.4", "agent")
	require.NoError(t, err)
	assert.True(t, res.RequiresPassword)

	_, err = e.ShareConsume(ctx, share.ShareToken, "wrong", "1.2.3.4", "agent")
	assert.Equal(t, vaulterr.AuthFailure, vaulterr.KindOf(err))

	res, err = e.ShareConsume(ctx, share.ShareToken, "p@ss", "1.2.3.4", "agent")
	require.NoError(t, err)
	require.NotNil(t, res.Download)
	assert.Equal(t, payload, res.Download.Plaintext)

	res, err = e.ShareConsume(ctx, share.ShareToken, "p@ss", "1.2.3.4", "agent")
	require.NoError(t, err)
	require.NotNil(t, res.Download)

	_, err = e.ShareConsume(ctx, share.ShareToken, "p@ss", "1.2.3.4", "agent")
	assert.Equal(t, vaulterr.ShareExpired, vaulterr.KindOf(err))

	require.NoError(t, e.ShareRevoke(ctx, u.ID, fileID))
	_, err = e.ShareConsume(ctx, share.ShareToken, "p@ss", "1.2.3.4", "agent")
	assert.Equal(t, vaulterr.NotFound, vaulterr.KindOf(err))
}

// TestTamperedBlobFailsIntegrityCheck covers the tamper scenario: flipping
// a byte of the on-disk container after upload must surface as
// IntegrityFailure on download, leaving storage usage untouched.
func TestTamperedBlobFailsIntegrityCheck(t *testing.T) {
	u := newTestUser(t)
	e, users, blobs := newTestEngineWithBlobs(t, u)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0x41}, 1024)
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "a.txt", MimeType: "text/plain", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)

	f, err := e.Get(ctx, u.ID, result.Files[0].ID)
	require.NoError(t, err)

	blobPath := filepath.Join(blobs.Root(), f.StoragePath)
	container, err := os.ReadFile(blobPath)
	require.NoError(t, err)
	container[len(container)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(blobPath, container, 0o600))

	_, err = e.Download(ctx, u, f.ID, "127.0.0.1", "test-agent")
	require.Error(t, err)
	assert.Equal(t, vaulterr.IntegrityFailure, vaulterr.KindOf(err))

	updated, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), updated.StorageUsed)
}

func TestPreviewRejectsNonImage(t *testing.T) {
	u := newTestUser(t)
	e, _ := newTestEngine(t, u)
	ctx := context.Background()

	payload := []byte("not an image")
	result, err := e.Upload(ctx, u, []vault.UploadInput{{
		OriginalName: "doc.txt", MimeType: "text/plain", Size: int64(len(payload)), Data: bytes.NewReader(payload),
	}})
	require.NoError(t, err)

	_, err = e.Preview(ctx, u, result.Files[0].ID, "1.2.3.4", "agent")
	assert.Equal(t, vaulterr.ValidationError, vaulterr.KindOf(err))
}
