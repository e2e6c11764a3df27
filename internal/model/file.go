package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessAction enumerates the kinds of events recorded in a File's access
// log ring buffer.
type AccessAction string

const (
	AccessView     AccessAction = "view"
	AccessDownload AccessAction = "download"
	AccessShare    AccessAction = "share"
	AccessUpdate   AccessAction = "update"
	AccessDelete   AccessAction = "delete"
)

// MaxAccessLogEntries bounds the access log ring buffer (spec §3).
const MaxAccessLogEntries = 100

// AccessLogEntry is one ring-buffer entry on a File.
type AccessLogEntry struct {
	Action    AccessAction `bson:"action" json:"action"`
	Timestamp time.Time    `bson:"timestamp" json:"timestamp"`
	ClientIP  string       `bson:"clientIp" json:"clientIp"`
	UserAgent string       `bson:"userAgent" json:"userAgent"`
}

// Share is the optional sub-record granting anonymous, constrained access to
// a File (spec §3).
type Share struct {
	Token          string     `bson:"token" json:"-"`
	ExpiresAt      *time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	MaxDownloads   *int       `bson:"maxDownloads,omitempty" json:"maxDownloads,omitempty"`
	PasswordHash   string     `bson:"passwordHash,omitempty" json:"-"`
	DownloadCount  int        `bson:"downloadCount" json:"downloadCount"`
}

// HasPassword reports whether consuming this share requires a password.
func (s *Share) HasPassword() bool { return s != nil && s.PasswordHash != "" }

// IsValid reports whether the share is presently consumable per spec §3:
// token present ∧ (no expiry ∨ expiry > now) ∧ (no max ∨ downloads < max).
func (s *Share) IsValid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	if s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads {
		return false
	}
	return true
}

// File is the owned-file entity (spec §3).
type File struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID primitive.ObjectID `bson:"ownerId" json:"-"`

	OriginalName string `bson:"originalName" json:"originalName"`
	BlobID       string `bson:"blobId" json:"-"` // opaque, globally unique, used as filesystem name
	MimeType     string `bson:"mimeType" json:"mimeType"`

	PlaintextSize  int64 `bson:"plaintextSize" json:"size"`
	CiphertextSize int64 `bson:"ciphertextSize" json:"-"`

	PlaintextSHA256  string `bson:"plaintextSha256" json:"-"`
	CiphertextSHA256 string `bson:"ciphertextSha256" json:"-"`

	StoragePath string `bson:"storagePath" json:"-"`

	Folder      string   `bson:"folder" json:"folder"`
	Tags        []string `bson:"tags" json:"tags"`
	Description string   `bson:"description" json:"description"`

	IsDeleted bool       `bson:"isDeleted" json:"-"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty" json:"-"`

	Share *Share `bson:"share,omitempty" json:"-"`

	AccessLog []AccessLogEntry `bson:"accessLog" json:"-"`

	DownloadCount int `bson:"downloadCount" json:"downloadCount"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AppendAccessLog pushes a new entry, evicting the oldest when the ring
// buffer is at capacity (spec §3: "bounded ring of ≤100 entries").
func (f *File) AppendAccessLog(entry AccessLogEntry) {
	f.AccessLog = append(f.AccessLog, entry)
	if len(f.AccessLog) > MaxAccessLogEntries {
		f.AccessLog = f.AccessLog[len(f.AccessLog)-MaxAccessLogEntries:]
	}
}

// Category is the derived classification bucket for a file's MIME type
// (spec §3, "Category (derived)"). It is never persisted.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryArchive  Category = "archive"
	CategoryOther    Category = "other"
)

// CategoryOf classifies a MIME type into one of the six buckets, shared by
// both the List category filter and Stats per-category aggregation (spec
// §4.5 "Stats" requires the same regex families as List).
func CategoryOf(mimeType string) Category {
	switch {
	case matchAny(mimeType, imageMimes):
		return CategoryImage
	case matchAny(mimeType, documentMimes):
		return CategoryDocument
	case matchAny(mimeType, videoMimes):
		return CategoryVideo
	case matchAny(mimeType, audioMimes):
		return CategoryAudio
	case matchAny(mimeType, archiveMimes):
		return CategoryArchive
	default:
		return CategoryOther
	}
}
