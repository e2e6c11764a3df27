// Package quota implements the two per-user state machines that gate write
// access to the vault: the storage counter (spec §5) and the account-lock
// counter (spec §4.4). Both are expressed as pure functions over model.User
// so the transition logic is unit-testable without a database, with a thin
// Manager wrapping the read-modify-write against metadatastore.
package quota

import (
	"context"
	"time"

	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is the slice of metadatastore.Store that the quota manager
// needs, narrowed to an interface so the state machine can be tested
// against an in-memory fake instead of a live database.
type UserStore interface {
	AdjustStorageUsed(ctx context.Context, id primitive.ObjectID, delta int64) error
	RecordFailedLogin(ctx context.Context, id primitive.ObjectID, failedCount int, lockedUntil *time.Time) error
	RecordSuccessfulLogin(ctx context.Context, id primitive.ObjectID) error
}

// HasRoom reports whether adding size bytes to u's current usage stays
// within its storage limit (spec §5: "reject when used+incoming > limit").
func HasRoom(u *model.User, size int64) bool {
	return u.StorageUsed+size <= u.StorageLimit
}

// Remaining returns the number of bytes still available under u's quota,
// clamped at zero.
func Remaining(u *model.User) int64 {
	remaining := u.StorageLimit - u.StorageUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextFailedLoginState computes the account-lock transition after one more
// failed login attempt (spec §4.4). Three transitions are possible:
//   - the prior lock has expired (LockedUntil set but not after now): the
//     streak restarts, so this attempt counts as failure 1;
//   - the streak is still below threshold: the counter just increments;
//   - incrementing reaches MaxFailedLogins: a lock is armed lasting
//     LockDuration from now.
func NextFailedLoginState(u *model.User, now time.Time) (failedCount int, lockedUntil *time.Time) {
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		failedCount = 1
	} else {
		failedCount = u.FailedLoginCount + 1
	}
	if failedCount >= model.MaxFailedLogins {
		until := now.Add(model.LockDuration)
		lockedUntil = &until
	}
	return failedCount, lockedUntil
}

// Manager wraps the metadata store with the quota and account-lock
// transitions so callers never hand-roll the read-modify-write.
type Manager struct {
	Users UserStore
}

func NewManager(users UserStore) *Manager {
	return &Manager{Users: users}
}

// Reserve checks u's quota for an incoming upload of size bytes and, if
// there is room, commits the reservation immediately. Returns QuotaExceeded
// otherwise (spec §5, S3). The reservation is optimistic: if the upload is
// later aborted, the caller must call Release with the same size.
func (m *Manager) Reserve(ctx context.Context, u *model.User, size int64) error {
	if !HasRoom(u, size) {
		return vaulterr.New(vaulterr.QuotaExceeded, "storage quota exceeded")
	}
	if err := m.Users.AdjustStorageUsed(ctx, u.ID, size); err != nil {
		return err
	}
	u.StorageUsed += size
	return nil
}

// Release returns size bytes to the user's available quota, e.g. after a
// permanent delete or a failed upload that had already reserved space.
func (m *Manager) Release(ctx context.Context, userID primitive.ObjectID, size int64) error {
	return m.Users.AdjustStorageUsed(ctx, userID, -size)
}

// RegisterFailedLogin applies the account-lock transition for one failed
// attempt and persists it, returning AccountLocked if this attempt trips the
// lock.
func (m *Manager) RegisterFailedLogin(ctx context.Context, u *model.User) error {
	now := time.Now()
	failedCount, lockedUntil := NextFailedLoginState(u, now)
	if err := m.Users.RecordFailedLogin(ctx, u.ID, failedCount, lockedUntil); err != nil {
		return err
	}
	u.FailedLoginCount = failedCount
	u.LockedUntil = lockedUntil
	if lockedUntil != nil {
		return vaulterr.New(vaulterr.AccountLocked, "account locked after too many failed login attempts")
	}
	return nil
}

// RegisterSuccessfulLogin resets the lock counter (spec §4.4: any
// successful login clears the streak).
func (m *Manager) RegisterSuccessfulLogin(ctx context.Context, u *model.User) error {
	if err := m.Users.RecordSuccessfulLogin(ctx, u.ID); err != nil {
		return err
	}
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

// CheckLocked returns AccountLocked if u is presently locked, nil otherwise.
func CheckLocked(u *model.User, now time.Time) error {
	if u.IsLocked(now) {
		return vaulterr.New(vaulterr.AccountLocked, "account is temporarily locked")
	}
	return nil
}
