package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zynqcloud/securevault/internal/httpx"
	"github.com/zynqcloud/securevault/internal/middleware"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vault"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxUploadMemory = 32 << 20 // multipart form parts buffered in memory before spilling to temp files

// handleUpload implements POST /api/files/upload (spec §4.5 Upload):
// multipart form with one or more "files" parts plus optional folder/tags/
// description fields shared across the batch.
func (d *Deps) handleUpload(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httpx.Error(w, vaulterr.Validationf("malformed multipart form: %v", err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httpx.Error(w, vaulterr.Validationf("no files given"))
		return
	}

	folder := r.FormValue("folder")
	description := r.FormValue("description")
	tags := splitTags(r.FormValue("tags"))

	inputs := make([]vault.UploadInput, 0, len(files))
	var opened []io.Closer
	defer func() {
		for _, c := range opened {
			c.Close() //nolint:errcheck
		}
	}()

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			httpx.Error(w, vaulterr.Validationf("could not read upload %q", fh.Filename))
			return
		}
		opened = append(opened, f)
		inputs = append(inputs, vault.UploadInput{
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Data:         f,
			Folder:       folder,
			Tags:         tags,
			Description:  description,
		})
	}

	result, err := d.Vault.Upload(r.Context(), u, inputs)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Created(w, map[string]any{"files": result.Files, "errors": result.Errors})
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range splitComma(raw) {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, trimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, trimSpace(s[start:]))
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// handleList implements GET /api/files (spec §4.5 List) with page/limit/
// folder/search/sort/category query parameters.
func (d *Deps) handleList(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	q := r.URL.Query()

	opts := vault.ListOptions{
		Page:     queryInt(q, "page", 1),
		Limit:    queryInt(q, "limit", 20),
		Category: model.Category(q.Get("category")),
		Folder:   q.Get("folder"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}
	result, err := d.Vault.List(r.Context(), u.ID, opts)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]any{
		"files": result.Files, "page": result.Page, "limit": result.Limit,
		"total": result.Total, "pages": result.Pages,
	})
}

func queryInt(q url.Values, key string, fallback int) int {
	raw := q.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// handleTrash implements GET /api/files/trash (spec §4.5 List, Deleted=true).
func (d *Deps) handleTrash(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	q := r.URL.Query()
	result, err := d.Vault.List(r.Context(), u.ID, vault.ListOptions{
		Page: queryInt(q, "page", 1), Limit: queryInt(q, "limit", 20), Deleted: true,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]any{
		"files": result.Files, "page": result.Page, "limit": result.Limit,
		"total": result.Total, "pages": result.Pages,
	})
}

// handleEmptyTrash implements DELETE /api/files/trash (spec §4.5 Empty trash).
func (d *Deps) handleEmptyTrash(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	purged, err := d.Vault.EmptyTrash(r.Context(), u)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]any{"purged": purged})
}

// handleBulkDelete implements POST /api/files/bulk-delete (spec §4.5 Bulk
// delete).
func (d *Deps) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req bulkDeleteRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	ids, err := hexIDs(req.FileIDs)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	result, err := d.Vault.BulkDelete(r.Context(), u, ids, req.Permanent)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]any{"deleted": hexStrings(result.Deleted), "failed": result.Failed})
}

func hexIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, vaulterr.Validationf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func hexStrings(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// handleMove implements POST /api/files/move (spec §4.5 Move).
func (d *Deps) handleMove(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req moveRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	ids, err := hexIDs(req.FileIDs)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := d.Vault.Move(r.Context(), u.ID, ids, req.TargetFolder); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "moved"})
}

// handleFolders implements GET /api/files/folders.
func (d *Deps) handleFolders(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	folders, err := d.Vault.Folders(r.Context(), u.ID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, folders)
}

// handleStats implements GET /api/files/stats (spec §4.5 Stats).
func (d *Deps) handleStats(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	stats, err := d.Vault.Stats(r.Context(), u.ID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, stats)
}

// handleGet implements GET /api/files/{id}.
func (d *Deps) handleGet(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	f, err := d.Vault.Get(r.Context(), u.ID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, f)
}

// handleUpdate implements PATCH /api/files/{id} (spec §4.5 Update).
func (d *Deps) handleUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req updateFileRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	in := vault.UpdateInput{OriginalName: req.OriginalName, Folder: req.Folder, Tags: req.Tags, Description: req.Description}
	if err := d.Vault.Update(r.Context(), u.ID, id, in); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "updated"})
}

// handleDelete implements DELETE /api/files/{id}?permanent=true (spec §4.5
// Soft delete / Permanent delete).
func (d *Deps) handleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if r.URL.Query().Get("permanent") == "true" {
		if err := d.Vault.DeletePermanently(r.Context(), u, id); err != nil {
			httpx.Error(w, err)
			return
		}
	} else if err := d.Vault.SoftDelete(r.Context(), u.ID, id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "deleted"})
}

// handleRestore implements POST /api/files/{id}/restore.
func (d *Deps) handleRestore(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := d.Vault.Restore(r.Context(), u.ID, id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "restored"})
}

// writeDownload streams decrypted file content, setting the four headers
// spec §4.5 Download mandates: Content-Type, Content-Disposition (with a
// percent-encoded filename), Content-Length, and X-Content-Type-Options.
// Preview additionally asks for a private, short-lived Cache-Control.
func writeDownload(w http.ResponseWriter, dl *vault.DownloadResult, inline bool, cacheControl string) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", dl.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.ContentSize, 10))
	w.Header().Set("Content-Disposition", disposition+`; filename="`+url.QueryEscape(dl.Filename)+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(dl.Plaintext) //nolint:errcheck
}

// handleDownload implements GET /api/files/{id}/download (spec §4.5
// Download).
func (d *Deps) handleDownload(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	dl, err := d.Vault.Download(r.Context(), u, id, clientIPOf(r), r.UserAgent())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writeDownload(w, dl, false, "")
}

// handlePreview implements GET /api/files/{id}/preview (spec §4.5 Preview).
func (d *Deps) handlePreview(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	dl, err := d.Vault.Preview(r.Context(), u, id, clientIPOf(r), r.UserAgent())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writeDownload(w, dl, true, "private, max-age=3600")
}

func clientIPOf(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// handleShareCreate implements POST /api/files/{id}/share (spec §4.5 Share
// create).
func (d *Deps) handleShareCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req shareCreateRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	out, err := d.Vault.ShareCreate(r.Context(), u.ID, id, d.Origin, vault.ShareCreateInput{
		ExpiresInDays: req.ExpiresIn, MaxDownloads: req.MaxDownloads, Password: req.Password,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Created(w, out)
}

// handleShareRevoke implements DELETE /api/files/{id}/share.
func (d *Deps) handleShareRevoke(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	id, err := paramObjectID(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := d.Vault.ShareRevoke(r.Context(), u.ID, id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "revoked"})
}

// handleShareConsume implements GET /api/files/shared/{token} (spec §4.5
// Share consume): anonymous, optionally password-protected, two-step
// handshake when a password is required but absent.
func (d *Deps) handleShareConsume(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	password := r.URL.Query().Get("password")

	result, err := d.Vault.ShareConsume(r.Context(), token, password, clientIPOf(r), r.UserAgent())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if result.RequiresPassword {
		httpx.RequiresPassword(w)
		return
	}
	writeDownload(w, result.Download, false, "")
}
