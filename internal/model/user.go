// Package model defines the four persisted entities of the vault (spec §3):
// User, File (with its Share sub-record), and the derived Category.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the User's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultStorageLimitBytes is the default per-user quota: 1 GiB.
const DefaultStorageLimitBytes int64 = 1 << 30

// MaxFailedLogins is the failed-login threshold that locks an account.
const MaxFailedLogins = 5

// LockDuration is how long an account stays locked once MaxFailedLogins is
// reached.
const LockDuration = 2 * time.Hour

// User is the account entity. PasswordHash, UserKeyHex and UserKeySalt are
// storage-private: they must never appear in a response serialized back to
// a client.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	Email    string             `bson:"email" json:"email"` // always lowercased before persistence

	PasswordHash string `bson:"passwordHash" json:"-"`

	// UserKeyHex is the user's long-lived 32-byte file-encryption key,
	// hex-encoded. UserKeySalt is retained for forward-compatibility with a
	// future key-wrapping scheme; the current design derives the per-file
	// data key directly from UserKeyHex plus a per-container salt (spec
	// §4.1), so UserKeySalt is not consumed by Encrypt/Decrypt today.
	UserKeyHex  string `bson:"userKeyHex" json:"-"`
	UserKeySalt string `bson:"userKeySalt" json:"-"`

	Role   Role `bson:"role" json:"role"`
	Active bool `bson:"active" json:"active"`

	StorageUsed  int64 `bson:"storageUsed" json:"storageUsed"`
	StorageLimit int64 `bson:"storageLimit" json:"storageLimit"`

	FailedLoginCount int        `bson:"failedLoginCount" json:"-"`
	LockedUntil      *time.Time `bson:"lockedUntil,omitempty" json:"-"`

	LastLoginAt       *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	PasswordChangedAt time.Time  `bson:"passwordChangedAt" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsLocked reports whether the account is presently locked as of now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
