package metadatastore

import (
	"context"
	"strings"
	"time"

	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateUser inserts a new user. Email is lowercased before persistence
// (spec §3). A unique-index violation is mapped to AlreadyExists.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now
	u.PasswordChangedAt = now
	if u.StorageLimit == 0 {
		u.StorageLimit = model.DefaultStorageLimitBytes
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.Active = true

	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		if isDuplicateKeyError(err) {
			return vaulterr.New(vaulterr.AlreadyExists, "username or email already registered")
		}
		return vaulterr.Wrap(vaulterr.Internal, "insert user", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return s.findOneUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOneUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOneUser(ctx, bson.M{"username": username})
}

func (s *Store) findOneUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, vaulterr.New(vaulterr.NotFound, "user not found")
	}
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.Internal, "find user", err)
	}
	return &u, nil
}

// UpdateProfile persists mutable profile fields (username/email) directly;
// callers must pre-validate outside the store.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, username, email string) error {
	set := bson.M{"updatedAt": time.Now()}
	if username != "" {
		set["username"] = username
	}
	if email != "" {
		set["email"] = strings.ToLower(email)
	}
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": set})
	if isDuplicateKeyError(err) {
		return vaulterr.New(vaulterr.AlreadyExists, "username or email already in use")
	}
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "update profile", err)
	}
	return nil
}

// UpdatePassword rotates passwordHash and bumps passwordChangedAt, which
// invalidates any bearer token issued before this moment (spec §6, S6).
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passwordHash":      passwordHash,
		"passwordChangedAt": time.Now(),
		"updatedAt":         time.Now(),
	}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "update password", err)
	}
	return nil
}

// Deactivate marks a user inactive on account deletion (spec §3: accounts
// are deactivated, not destroyed).
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"active":    false,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "deactivate user", err)
	}
	return nil
}

// RecordSuccessfulLogin resets the account-lock counter and stamps
// lastLoginAt (spec §4.4: "successful login → unlocked, counter := 0").
func (s *Store) RecordSuccessfulLogin(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"failedLoginCount": 0,
		"lockedUntil":      nil,
		"lastLoginAt":      now,
		"updatedAt":        now,
	}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "record successful login", err)
	}
	return nil
}

// RecordFailedLogin applies the account-lock state machine transition for a
// single failed attempt (spec §4.4) and returns the user's state after the
// update so the caller can decide whether to report AccountLocked.
func (s *Store) RecordFailedLogin(ctx context.Context, id primitive.ObjectID, failedCount int, lockedUntil *time.Time) error {
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"failedLoginCount": failedCount,
		"lockedUntil":      lockedUntil,
		"updatedAt":        time.Now(),
	}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "record failed login", err)
	}
	return nil
}

// AdjustStorageUsed applies delta to storageUsed, clamped at zero, via an
// atomic Mongo update. Mongo's $inc is not itself clamping, so a negative
// overshoot is corrected with a follow-up $max-style read-modify-write —
// acceptable per spec §5's tolerance for transient over-commit bounded by
// the per-file size cap.
func (s *Store) AdjustStorageUsed(ctx context.Context, id primitive.ObjectID, delta int64) error {
	_, err := s.users.UpdateByID(ctx, id, bson.A{
		bson.M{"$set": bson.M{
			"storageUsed": bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$storageUsed", delta}}}},
			"updatedAt":   time.Now(),
		}},
	})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "adjust storage used", err)
	}
	return nil
}

// SetStorageUsed overwrites storageUsed directly, used by tests and admin
// repair tooling.
func (s *Store) SetStorageUsed(ctx context.Context, id primitive.ObjectID, used int64) error {
	if used < 0 {
		used = 0
	}
	_, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"storageUsed": used,
		"updatedAt":   time.Now(),
	}})
	if err != nil {
		return vaulterr.Wrap(vaulterr.Internal, "set storage used", err)
	}
	return nil
}
