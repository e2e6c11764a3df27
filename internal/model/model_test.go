package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zynqcloud/securevault/internal/model"
)

func TestCategoryOf(t *testing.T) {
	cases := map[string]model.Category{
		"image/png":        model.CategoryImage,
		"image/jpeg":       model.CategoryImage,
		"video/mp4":        model.CategoryVideo,
		"audio/mpeg":       model.CategoryAudio,
		"application/zip":  model.CategoryArchive,
		"application/pdf":  model.CategoryDocument,
		"text/plain":       model.CategoryDocument,
		"application/json": model.CategoryDocument,
		"application/x-msdownload": model.CategoryOther,
	}
	for mime, want := range cases {
		require.Equal(t, want, model.CategoryOf(mime), "mime=%s", mime)
	}
}

func TestIsAllowedUploadMime(t *testing.T) {
	require.True(t, model.IsAllowedUploadMime("image/png"))
	require.True(t, model.IsAllowedUploadMime("application/octet-stream"))
	require.False(t, model.IsAllowedUploadMime("application/x-msdownload"))
}

func TestSanitizeOriginalName(t *testing.T) {
	got := model.SanitizeOriginalName(`../../etc/passwd<>:"|?*`)
	require.NotContains(t, got, "/")
	require.NotContains(t, got, "<")
	require.NotContains(t, got, ">")
}

func TestNormalizeFolder(t *testing.T) {
	require.Equal(t, "/", model.NormalizeFolder(""))
	require.Equal(t, "/docs", model.NormalizeFolder("docs"))
	require.Equal(t, "/docs", model.NormalizeFolder("/docs"))
}

func TestNormalizeTagsTruncation(t *testing.T) {
	long := make([]string, 30)
	for i := range long {
		long[i] = "tag-that-is-way-too-long-to-fit-within-the-fifty-char-cap-xx"
	}
	got := model.NormalizeTags(long)
	require.Len(t, got, model.MaxTagCount)
	for _, tg := range got {
		require.LessOrEqual(t, len(tg), model.MaxTagLen)
	}
}

func TestShareIsValid(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	max2 := 2

	cases := []struct {
		name  string
		share *model.Share
		want  bool
	}{
		{"nil", nil, false},
		{"no token", &model.Share{}, false},
		{"active no expiry no max", &model.Share{Token: "t"}, true},
		{"expired", &model.Share{Token: "t", ExpiresAt: &past}, false},
		{"not yet expired", &model.Share{Token: "t", ExpiresAt: &future}, true},
		{"exhausted", &model.Share{Token: "t", MaxDownloads: &max2, DownloadCount: 2}, false},
		{"under max", &model.Share{Token: "t", MaxDownloads: &max2, DownloadCount: 1}, true},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.share.IsValid(now), c.name)
	}
}

func TestFileAppendAccessLogBounded(t *testing.T) {
	f := &model.File{}
	for i := 0; i < model.MaxAccessLogEntries+10; i++ {
		f.AppendAccessLog(model.AccessLogEntry{Action: model.AccessView, Timestamp: time.Now()})
	}
	require.Len(t, f.AccessLog, model.MaxAccessLogEntries)
}
