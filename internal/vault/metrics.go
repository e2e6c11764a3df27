package vault

import "sync/atomic"

// Metrics holds process-lifetime atomic counters for the operations the
// engine drives. All writes use atomic operations so there is no lock
// contention on the hot upload/download paths; adapted from the teacher's
// internal/handler/metrics.go counter set (uploads/sessions/dedup) to the
// vault's own operations (uploads/downloads/quota rejections/share
// consumption).
type Metrics struct {
	UploadsTotal      atomic.Int64
	UploadsFailed     atomic.Int64
	DownloadsTotal    atomic.Int64
	BytesUploaded     atomic.Int64
	QuotaRejections   atomic.Int64
	ShareConsumes     atomic.Int64
	IntegrityFailures atomic.Int64
}

// Snapshot returns the current counter values as a flat map, ready for
// JSON serialization by the transport layer.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"uploads_total":      m.UploadsTotal.Load(),
		"uploads_failed":     m.UploadsFailed.Load(),
		"downloads_total":    m.DownloadsTotal.Load(),
		"bytes_uploaded":     m.BytesUploaded.Load(),
		"quota_rejections":   m.QuotaRejections.Load(),
		"share_consumes":     m.ShareConsumes.Load(),
		"integrity_failures": m.IntegrityFailures.Load(),
	}
}
