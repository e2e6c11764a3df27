// Package blobstore implements the durable-bytes layer of the vault (spec
// §4.2): append-only per-user directories on a local filesystem, with
// atomic writes and idempotent removal. It is adapted directly from the
// teacher's internal/store package (Local backend, temp-file + rename,
// filepath.Rel containment guard) with per-user addressing and a
// stage/commit/replace split matching the spec's operation names.
package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zynqcloud/securevault/internal/vaulterr"
)

// Store is a local-filesystem-backed blob store rooted at Root, namespaced
// per user as <root>/<user-id>/<blob-id><ext>.encrypted (spec §4.2).
type Store struct {
	root string
}

// New creates a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, fmt.Sprintf("create storage root %q", root), err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "resolve storage root", err)
	}
	return &Store{root: absRoot}, nil
}

// Root returns the absolute filesystem root this store is namespaced under.
func (s *Store) Root() string { return s.root }

// BlobPath computes the relative path for a (userID, blobID, ext) triple:
// <user-id>/<blob-id><ext>.encrypted. ext should include its leading dot, or
// be empty.
func BlobPath(userID, blobID, ext string) string {
	return filepath.Join(userID, blobID+ext+".encrypted")
}

// abs resolves a caller-supplied logical path to a concrete filesystem path,
// verifying it cannot escape the store root (path traversal guard).
func (s *Store) abs(path string) (string, error) {
	joined := filepath.Join(s.root, filepath.Clean(filepath.FromSlash(path)))
	rel, err := filepath.Rel(s.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", vaulterr.Validationf("path %q escapes storage root", path)
	}
	return joined, nil
}

// Stage creates the user's directory if needed and streams r to the blob's
// final relative path using an atomic temp-file + rename, returning that
// relative path and the number of bytes written (spec §4.2 "stage").
//
// The staged file holds plaintext; the file lifecycle engine encrypts it in
// place via ReplaceContents before the metadata record is committed, so no
// plaintext survives past a successful upload.
func (s *Store) Stage(userID, blobID, ext string, r io.Reader) (relPath string, size int64, err error) {
	relPath = BlobPath(userID, blobID, ext)
	dest, err := s.abs(relPath)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", 0, vaulterr.Wrap(vaulterr.Internal, "mkdir user directory", err)
	}

	n, err := atomicWrite(dest, r)
	if err != nil {
		return "", 0, err
	}
	return relPath, n, nil
}

// Commit is a no-op in this implementation. It is reserved for a future
// atomic rename from a temporary staging name outside the final directory
// (spec §4.2), which Stage does not currently need since it already writes
// directly to the final path via a same-directory temp file.
func (s *Store) Commit(relPath string) error { return nil }

// ReplaceContents overwrites a staged (or existing) blob with data —
// used by the upload pipeline's encrypt-in-place step (spec §4.5: "encrypt
// in place (read-modify-write)").
func (s *Store) ReplaceContents(relPath string, data []byte) error {
	dest, err := s.abs(relPath)
	if err != nil {
		return err
	}
	_, err = atomicWrite(dest, bytes.NewReader(data))
	return err
}

// OpenForRead opens relPath for streaming. Caller must close the returned
// ReadCloser. A missing file surfaces as MissingBlob (spec §4.2).
func (s *Store) OpenForRead(relPath string) (io.ReadCloser, int64, error) {
	abs, err := s.abs(relPath)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, vaulterr.New(vaulterr.MissingBlob, "blob not found on disk")
		}
		return nil, 0, vaulterr.Wrap(vaulterr.Internal, "open blob", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, vaulterr.Wrap(vaulterr.Internal, "stat blob", err)
	}
	return f, info.Size(), nil
}

// ReadAll reads the full contents of relPath into memory. Crypto operations
// in this service are treated as CPU-bound for files under the in-memory
// threshold (spec §5); callers above that threshold should stream instead.
func (s *Store) ReadAll(relPath string) ([]byte, error) {
	rc, _, err := s.OpenForRead(relPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "read blob", err)
	}
	return data, nil
}

// Remove idempotently unlinks relPath. A missing file is not an error (spec
// §4.2): the purge path may race with a prior partial delete.
func (s *Store) Remove(relPath string) error {
	abs, err := s.abs(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return vaulterr.Wrap(vaulterr.Internal, "remove blob", err)
	}
	return nil
}

// Exists reports whether relPath exists under root.
func (s *Store) Exists(relPath string) (bool, error) {
	abs, err := s.abs(relPath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// UserDir returns the absolute directory for a given user, for the orphan
// scanner's directory walk.
func (s *Store) UserDir(userID string) string {
	return filepath.Join(s.root, userID)
}

func atomicWrite(dest string, r io.Reader) (int64, error) {
	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, vaulterr.Wrap(vaulterr.Internal, "open temp file", err)
	}

	n, werr := io.Copy(f, r)
	cerr := f.Close()

	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return 0, vaulterr.Wrap(vaulterr.Internal, "stream write", werr)
	}
	if cerr != nil {
		os.Remove(tmp) //nolint:errcheck
		return 0, vaulterr.Wrap(vaulterr.Internal, "flush", cerr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return 0, vaulterr.Wrap(vaulterr.Internal, "rename into place", err)
	}
	return n, nil
}
