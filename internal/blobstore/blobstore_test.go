package blobstore_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zynqcloud/securevault/internal/blobstore"
)

func newStore(t *testing.T) *blobstore.Store {
	t.Helper()
	s, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStageAndOpenForRead(t *testing.T) {
	s := newStore(t)
	want := []byte("plaintext bytes")

	path, n, err := s.Stage("user1", "blob1", ".txt", bytes.NewReader(want))
	require.NoError(t, err)
	require.Equal(t, int64(len(want)), n)

	rc, size, err := s.OpenForRead(path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, int64(len(want)), size)
}

func TestReplaceContents(t *testing.T) {
	s := newStore(t)
	path, _, err := s.Stage("user1", "blob1", "", bytes.NewReader([]byte("plain")))
	require.NoError(t, err)

	require.NoError(t, s.ReplaceContents(path, []byte("encrypted-container-bytes")))

	got, err := s.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, []byte("encrypted-container-bytes"), got)
}

func TestOpenForReadMissingBlob(t *testing.T) {
	s := newStore(t)
	_, _, err := s.OpenForRead("user1/does-not-exist.encrypted")
	require.Error(t, err)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newStore(t)
	path, _, err := s.Stage("user1", "blob1", "", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(path)) // second removal of a missing file is not an error

	exists, err := s.Exists(path)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPathCannotEscapeRoot(t *testing.T) {
	s := newStore(t)
	_, _, err := s.OpenForRead("../../../etc/passwd")
	require.Error(t, err)
}

func TestPerUserNamespacing(t *testing.T) {
	s := newStore(t)
	p1, _, err := s.Stage("userA", "sameblob", "", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	p2, _, err := s.Stage("userB", "sameblob", "", bytes.NewReader([]byte("b")))
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	gotA, err := s.ReadAll(p1)
	require.NoError(t, err)
	gotB, err := s.ReadAll(p2)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), gotA)
	require.Equal(t, []byte("b"), gotB)
}
