// Package vault implements the file lifecycle engine (spec §4.5): the
// orchestrator that drives the crypto, blob store, metadata store and quota
// layers under one consistent error and accounting model. It is the ~50%-of
// -core component the other four exist to serve.
package vault

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zynqcloud/securevault/internal/blobstore"
	"github.com/zynqcloud/securevault/internal/cryptoengine"
	"github.com/zynqcloud/securevault/internal/metadatastore"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRepo is the slice of metadatastore.Store the engine needs for file
// records, narrowed to an interface so the engine can be exercised against
// an in-memory fake in tests.
type FileRepo interface {
	CreateFile(ctx context.Context, f *model.File) error
	GetFile(ctx context.Context, ownerID, fileID primitive.ObjectID, includeDeleted bool) (*model.File, error)
	GetFileByShareToken(ctx context.Context, token string) (*model.File, error)
	List(ctx context.Context, ownerID primitive.ObjectID, opts metadatastore.ListOptions) (*metadatastore.ListPage, error)
	UpdateFile(ctx context.Context, ownerID, fileID primitive.ObjectID, fields metadatastore.UpdateFields) error
	AppendAccessLog(ctx context.Context, fileID primitive.ObjectID, entry model.AccessLogEntry) error
	IncrementDownloadCount(ctx context.Context, fileID primitive.ObjectID) error
	SoftDelete(ctx context.Context, ownerID, fileID primitive.ObjectID) error
	Restore(ctx context.Context, ownerID, fileID primitive.ObjectID) error
	DeletePermanently(ctx context.Context, ownerID, fileID primitive.ObjectID) error
	Move(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, folder string) error
	SetShare(ctx context.Context, ownerID, fileID primitive.ObjectID, share *model.Share) error
	IncrementShareDownloadCount(ctx context.Context, fileID primitive.ObjectID) error
	ListAllDeleted(ctx context.Context, ownerID primitive.ObjectID) ([]model.File, error)
	ComputeStats(ctx context.Context, ownerID primitive.ObjectID) (*metadatastore.Stats, error)
	Folders(ctx context.Context, ownerID primitive.ObjectID) (map[string]int64, error)
}

// UserRepo is the slice of metadatastore.Store the engine needs for user
// lookups (key material, admin of its own storage counter).
type UserRepo interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
}

// BlobStore is the subset of blobstore.Store the engine drives directly.
type BlobStore interface {
	Stage(userID, blobID, ext string, r io.Reader) (relPath string, size int64, err error)
	ReplaceContents(relPath string, data []byte) error
	OpenForRead(relPath string) (io.ReadCloser, int64, error)
	ReadAll(relPath string) ([]byte, error)
	Remove(relPath string) error
}

// Engine is the file lifecycle orchestrator.
type Engine struct {
	Files   FileRepo
	Users   UserRepo
	Blobs   BlobStore
	Quota   *quota.Manager
	Metrics Metrics
}

func New(files FileRepo, users UserRepo, blobs BlobStore, q *quota.Manager) *Engine {
	return &Engine{Files: files, Users: users, Blobs: blobs, Quota: q}
}

// compile-time assertions that the concrete store types satisfy the
// narrowed interfaces above.
var (
	_ FileRepo  = (*metadatastore.Store)(nil)
	_ UserRepo  = (*metadatastore.Store)(nil)
	_ BlobStore = (*blobstore.Store)(nil)
)

// UploadInput is one item of an upload batch (spec §4.5 Upload).
type UploadInput struct {
	OriginalName string
	MimeType     string
	Size         int64
	Data         io.Reader
	Folder       string
	Tags         []string
	Description  string
}

// UploadedFile is the success shape returned per accepted file.
type UploadedFile struct {
	ID            primitive.ObjectID `json:"id"`
	OriginalName  string             `json:"name"`
	PlaintextSize int64              `json:"size"`
	MimeType      string             `json:"mimeType"`
	Category      model.Category     `json:"category"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// UploadError attaches a failure to its input slot without aborting the
// rest of the batch (spec §4.5 Upload: "other files continue").
type UploadError struct {
	OriginalName string `json:"name"`
	Message      string `json:"error"`
}

// UploadResult is the full batch outcome.
type UploadResult struct {
	Files  []UploadedFile
	Errors []UploadError
}

// Upload runs the batch preconditions (MIME allow-list, per-file size,
// batch size, aggregate quota check) and then processes each file
// independently: stage plaintext, checksum, encrypt in place, checksum
// ciphertext, commit the record. Quota is incremented once at the end by
// the sum of committed plaintext sizes (spec §4.5, §5).
func (e *Engine) Upload(ctx context.Context, user *model.User, inputs []UploadInput) (*UploadResult, error) {
	if len(inputs) == 0 {
		return nil, vaulterr.Validationf("no files given")
	}
	if len(inputs) > model.MaxBatchFiles {
		return nil, vaulterr.Validationf("batch exceeds maximum of %d files", model.MaxBatchFiles)
	}

	var total int64
	for _, in := range inputs {
		if in.Size > model.MaxPlaintextBytes {
			return nil, vaulterr.Validationf("%q exceeds the 150 MiB file size limit", in.OriginalName)
		}
		if !model.IsAllowedUploadMime(in.MimeType) {
			return nil, vaulterr.Validationf("%q has a disallowed MIME type %q", in.OriginalName, in.MimeType)
		}
		total += in.Size
	}
	if !quota.HasRoom(user, total) {
		e.Metrics.QuotaRejections.Add(1)
		return nil, vaulterr.New(vaulterr.QuotaExceeded, "storage quota exceeded for this batch")
	}

	userKey, err := cryptoengine.ParseUserKey(user.UserKeyHex)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{}
	var committed int64

	for _, in := range inputs {
		e.Metrics.UploadsTotal.Add(1)
		uf, err := e.uploadOne(ctx, user, userKey, in)
		if err != nil {
			e.Metrics.UploadsFailed.Add(1)
			result.Errors = append(result.Errors, UploadError{OriginalName: in.OriginalName, Message: err.Error()})
			continue
		}
		result.Files = append(result.Files, *uf)
		committed += in.Size
		e.Metrics.BytesUploaded.Add(in.Size)
	}

	if committed > 0 {
		if err := e.Quota.Reserve(ctx, user, committed); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *Engine) uploadOne(ctx context.Context, user *model.User, userKey cryptoengine.UserKey, in UploadInput) (*UploadedFile, error) {
	blobID := uuid.NewString()
	ext := filepath.Ext(model.SanitizeOriginalName(in.OriginalName))
	userID := user.ID.Hex()

	relPath, _, err := e.Blobs.Stage(userID, blobID, ext, in.Data)
	if err != nil {
		return nil, err
	}

	plaintext, err := e.Blobs.ReadAll(relPath)
	if err != nil {
		e.Blobs.Remove(relPath) //nolint:errcheck
		return nil, err
	}
	plaintextChecksum := cryptoengine.Hash(plaintext)

	container, err := cryptoengine.Encrypt(plaintext, userKey)
	if err != nil {
		e.Blobs.Remove(relPath) //nolint:errcheck
		return nil, err
	}
	if err := e.Blobs.ReplaceContents(relPath, container); err != nil {
		e.Blobs.Remove(relPath) //nolint:errcheck
		return nil, err
	}
	ciphertextChecksum := cryptoengine.Hash(container)

	f := &model.File{
		OwnerID:          user.ID,
		OriginalName:     model.SanitizeOriginalName(in.OriginalName),
		BlobID:           blobID,
		MimeType:         in.MimeType,
		PlaintextSize:    in.Size,
		CiphertextSize:   int64(len(container)),
		PlaintextSHA256:  plaintextChecksum,
		CiphertextSHA256: ciphertextChecksum,
		StoragePath:      relPath,
		Folder:           model.NormalizeFolder(in.Folder),
		Tags:             model.NormalizeTags(in.Tags),
		Description:      model.NormalizeDescription(in.Description),
	}
	if err := e.Files.CreateFile(ctx, f); err != nil {
		e.Blobs.Remove(relPath) //nolint:errcheck
		return nil, err
	}

	return &UploadedFile{
		ID:            f.ID,
		OriginalName:  f.OriginalName,
		PlaintextSize: f.PlaintextSize,
		MimeType:      f.MimeType,
		Category:      model.CategoryOf(f.MimeType),
		CreatedAt:     f.CreatedAt,
	}, nil
}

// ListOptions mirrors metadatastore.ListOptions at the engine boundary plus
// the derived category filter (spec §4.5 List).
type ListOptions struct {
	Page     int
	Limit    int
	Category model.Category
	Folder   string
	Search   string
	Sort     string
	Deleted  bool
}

// ListResult is the sanitized page plus its pagination envelope.
type ListResult struct {
	Files []model.File
	Page  int
	Limit int
	Total int64
	Pages int
}

// List returns a page of the owner's files, applying the derived category
// filter in-process since it is not indexable the way folder/search are.
func (e *Engine) List(ctx context.Context, ownerID primitive.ObjectID, opts ListOptions) (*ListResult, error) {
	page, err := e.Files.List(ctx, ownerID, metadatastore.ListOptions{
		Page: opts.Page, Limit: opts.Limit, Folder: opts.Folder,
		Search: opts.Search, Sort: opts.Sort, Deleted: opts.Deleted,
	})
	if err != nil {
		return nil, err
	}

	files := page.Files
	if opts.Category != "" {
		filtered := files[:0]
		for _, f := range files {
			if model.CategoryOf(f.MimeType) == opts.Category {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	return &ListResult{Files: files, Page: page.Page, Limit: page.Limit, Total: page.Total, Pages: page.Pages}, nil
}

// Get returns the sanitized record if owned and not deleted.
func (e *Engine) Get(ctx context.Context, ownerID, fileID primitive.ObjectID) (*model.File, error) {
	return e.Files.GetFile(ctx, ownerID, fileID, false)
}

// DownloadResult carries the decrypted bytes plus the response headers the
// transport layer must set (spec §4.5 Download).
type DownloadResult struct {
	Plaintext   []byte
	MimeType    string
	Filename    string
	ContentSize int64
}

// Download loads, decrypts, and integrity-checks a file the caller owns
// (spec §4.5 Download). A verified integrity failure leaves the blob and
// record untouched (spec §9: preserve for diagnosis).
func (e *Engine) Download(ctx context.Context, user *model.User, fileID primitive.ObjectID, clientIP, userAgent string) (*DownloadResult, error) {
	f, err := e.Files.GetFile(ctx, user.ID, fileID, false)
	if err != nil {
		return nil, err
	}
	return e.deliver(ctx, user, f, clientIP, userAgent)
}

// Preview is Download restricted to image/* MIME types (spec §4.5 Preview).
func (e *Engine) Preview(ctx context.Context, user *model.User, fileID primitive.ObjectID, clientIP, userAgent string) (*DownloadResult, error) {
	f, err := e.Files.GetFile(ctx, user.ID, fileID, false)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(f.MimeType, "image/") {
		return nil, vaulterr.Validationf("preview is only available for image files")
	}
	return e.deliver(ctx, user, f, clientIP, userAgent)
}

func (e *Engine) deliver(ctx context.Context, user *model.User, f *model.File, clientIP, userAgent string) (*DownloadResult, error) {
	userKey, err := cryptoengine.ParseUserKey(user.UserKeyHex)
	if err != nil {
		return nil, err
	}

	container, err := e.Blobs.ReadAll(f.StoragePath)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptoengine.Decrypt(container, userKey)
	if err != nil {
		if vaulterr.Is(err, vaulterr.IntegrityFailure) {
			e.Metrics.IntegrityFailures.Add(1)
		}
		return nil, err
	}
	if cryptoengine.Hash(plaintext) != f.PlaintextSHA256 {
		e.Metrics.IntegrityFailures.Add(1)
		return nil, vaulterr.New(vaulterr.IntegrityFailure, "stored checksum does not match decrypted content")
	}

	if err := e.Files.IncrementDownloadCount(ctx, f.ID); err != nil {
		return nil, err
	}
	e.Metrics.DownloadsTotal.Add(1)
	e.Files.AppendAccessLog(ctx, f.ID, model.AccessLogEntry{ //nolint:errcheck
		Action: model.AccessDownload, Timestamp: time.Now(), ClientIP: clientIP, UserAgent: userAgent,
	})

	return &DownloadResult{Plaintext: plaintext, MimeType: f.MimeType, Filename: f.OriginalName, ContentSize: int64(len(plaintext))}, nil
}

// UpdateInput carries the mutable field set (spec §4.5 Update).
type UpdateInput struct {
	OriginalName *string
	Folder       *string
	Tags         []string
	Description  *string
}

func (e *Engine) Update(ctx context.Context, ownerID, fileID primitive.ObjectID, in UpdateInput) error {
	fields := metadatastore.UpdateFields{}
	if in.OriginalName != nil {
		name := model.SanitizeOriginalName(*in.OriginalName)
		fields.OriginalName = &name
	}
	if in.Folder != nil {
		folder := model.NormalizeFolder(*in.Folder)
		fields.Folder = &folder
	}
	if in.Tags != nil {
		fields.Tags = model.NormalizeTags(in.Tags)
	}
	if in.Description != nil {
		desc := model.NormalizeDescription(*in.Description)
		fields.Description = &desc
	}
	if err := e.Files.UpdateFile(ctx, ownerID, fileID, fields); err != nil {
		return err
	}
	e.Files.AppendAccessLog(ctx, fileID, model.AccessLogEntry{Action: model.AccessUpdate, Timestamp: time.Now()}) //nolint:errcheck
	return nil
}

// SoftDelete hides fileID from default listings without refunding quota
// (spec §4.5, §9).
func (e *Engine) SoftDelete(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	return e.Files.SoftDelete(ctx, ownerID, fileID)
}

// Restore inverts SoftDelete.
func (e *Engine) Restore(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	return e.Files.Restore(ctx, ownerID, fileID)
}

// DeletePermanently removes the blob (a missing blob is not an error),
// refunds quota by plaintext size, and removes the record (spec §4.5).
func (e *Engine) DeletePermanently(ctx context.Context, user *model.User, fileID primitive.ObjectID) error {
	f, err := e.Files.GetFile(ctx, user.ID, fileID, true)
	if err != nil {
		return err
	}
	if err := e.Blobs.Remove(f.StoragePath); err != nil {
		// Blob-remove errors are logged by the caller but do not block
		// metadata deletion; the blob becomes a GC-recoverable orphan (spec
		// §4.5 Failure semantics).
		_ = err
	}
	if err := e.Files.DeletePermanently(ctx, user.ID, fileID); err != nil {
		return err
	}
	return e.Quota.Release(ctx, user.ID, f.PlaintextSize)
}

// BulkDeleteResult reports per-id outcomes for a bulk-delete request (spec
// §4.5 Bulk delete: "the batch does not abort on first error").
type BulkDeleteResult struct {
	Deleted []primitive.ObjectID
	Failed  map[string]string
}

func (e *Engine) BulkDelete(ctx context.Context, user *model.User, ids []primitive.ObjectID, permanent bool) (*BulkDeleteResult, error) {
	if len(ids) > model.MaxBulkDeleteIDs {
		return nil, vaulterr.Validationf("bulk delete exceeds maximum of %d ids", model.MaxBulkDeleteIDs)
	}
	res := &BulkDeleteResult{Failed: make(map[string]string)}
	for _, id := range ids {
		var err error
		if permanent {
			err = e.DeletePermanently(ctx, user, id)
		} else {
			err = e.SoftDelete(ctx, user.ID, id)
		}
		if err != nil {
			res.Failed[id.Hex()] = err.Error()
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res, nil
}

// EmptyTrash permanently deletes every soft-deleted file owned by user,
// refunding quota for the sum of purged plaintext sizes (spec §4.5).
func (e *Engine) EmptyTrash(ctx context.Context, user *model.User) (int, error) {
	deleted, err := e.Files.ListAllDeleted(ctx, user.ID)
	if err != nil {
		return 0, err
	}

	purged := 0
	var refund int64
	for _, f := range deleted {
		e.Blobs.Remove(f.StoragePath) //nolint:errcheck
		if err := e.Files.DeletePermanently(ctx, user.ID, f.ID); err != nil {
			continue
		}
		purged++
		refund += f.PlaintextSize
	}
	if refund > 0 {
		if err := e.Quota.Release(ctx, user.ID, refund); err != nil {
			return purged, err
		}
	}
	return purged, nil
}

// Stats delegates to the metadata store's aggregation (spec §4.5 Stats).
func (e *Engine) Stats(ctx context.Context, ownerID primitive.ObjectID) (*metadatastore.Stats, error) {
	return e.Files.ComputeStats(ctx, ownerID)
}

// Folders delegates to the metadata store's distinct-folder aggregation.
func (e *Engine) Folders(ctx context.Context, ownerID primitive.ObjectID) (map[string]int64, error) {
	return e.Files.Folders(ctx, ownerID)
}

// Move atomically sets folder on every file in ids owned by ownerID.
func (e *Engine) Move(ctx context.Context, ownerID primitive.ObjectID, ids []primitive.ObjectID, folder string) error {
	return e.Files.Move(ctx, ownerID, ids, model.NormalizeFolder(folder))
}

// ShareOutput mirrors the response shape spec §4.5 Share create names.
type ShareOutput struct {
	ShareURL     string     `json:"shareUrl"`
	ShareToken   string     `json:"shareToken"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int       `json:"maxDownloads,omitempty"`
	HasPassword  bool       `json:"hasPassword"`
}

// ShareCreateInput configures a new share (spec §4.5 Share create).
type ShareCreateInput struct {
	ExpiresInDays int
	MaxDownloads  *int
	Password      string
}

// DefaultShareExpiryDays is used when ExpiresInDays is zero.
const DefaultShareExpiryDays = 7

// ShareCreate generates a fresh token, replacing any existing share on the
// file and resetting its download count (spec §4.5).
func (e *Engine) ShareCreate(ctx context.Context, ownerID, fileID primitive.ObjectID, origin string, in ShareCreateInput) (*ShareOutput, error) {
	if _, err := e.Files.GetFile(ctx, ownerID, fileID, false); err != nil {
		return nil, err
	}

	token, err := cryptoengine.RandomTokenHex(32)
	if err != nil {
		return nil, err
	}

	days := in.ExpiresInDays
	if days <= 0 {
		days = DefaultShareExpiryDays
	}
	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)

	share := &model.Share{Token: token, ExpiresAt: &expiresAt, MaxDownloads: in.MaxDownloads}
	if in.Password != "" {
		hash, err := cryptoengine.PasswordHash(in.Password)
		if err != nil {
			return nil, err
		}
		share.PasswordHash = hash
	}

	if err := e.Files.SetShare(ctx, ownerID, fileID, share); err != nil {
		return nil, err
	}
	e.Files.AppendAccessLog(ctx, fileID, model.AccessLogEntry{Action: model.AccessShare, Timestamp: time.Now()}) //nolint:errcheck

	return &ShareOutput{
		ShareURL:     fmt.Sprintf("%s/api/files/shared/%s", strings.TrimRight(origin, "/"), token),
		ShareToken:   token,
		ExpiresAt:    share.ExpiresAt,
		MaxDownloads: share.MaxDownloads,
		HasPassword:  share.HasPassword(),
	}, nil
}

// ShareRevoke clears the share sub-record atomically (spec §4.5 Share
// revoke).
func (e *Engine) ShareRevoke(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	return e.Files.SetShare(ctx, ownerID, fileID, nil)
}

// ShareConsumeResult distinguishes the password-handshake case from a
// completed download (spec §4.5 Share consume).
type ShareConsumeResult struct {
	RequiresPassword bool
	Download         *DownloadResult
}

// ShareConsume implements the anonymous-download state machine (spec §4.5,
// §3): a missing record is NotFound, an invalid share is ShareExpired, a
// missing password on a protected share is a two-step handshake (not an
// error), and a wrong password is AuthFailure.
func (e *Engine) ShareConsume(ctx context.Context, token, password, clientIP, userAgent string) (*ShareConsumeResult, error) {
	f, err := e.Files.GetFileByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !f.Share.IsValid(time.Now()) {
		return nil, vaulterr.New(vaulterr.ShareExpired, "this share link is no longer valid")
	}
	if f.Share.HasPassword() {
		if password == "" {
			return &ShareConsumeResult{RequiresPassword: true}, nil
		}
		if !cryptoengine.PasswordVerify(password, f.Share.PasswordHash) {
			return nil, vaulterr.New(vaulterr.AuthFailure, "incorrect share password")
		}
	}

	owner, err := e.Users.GetUserByID(ctx, f.OwnerID)
	if err != nil {
		return nil, err
	}
	dl, err := e.deliver(ctx, owner, f, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	if err := e.Files.IncrementShareDownloadCount(ctx, f.ID); err != nil {
		return nil, err
	}
	e.Metrics.ShareConsumes.Add(1)
	return &ShareConsumeResult{Download: dl}, nil
}
