package quota_test

import (
	"testing"
	"time"

	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasRoom(t *testing.T) {
	u := &model.User{StorageUsed: 900, StorageLimit: 1000}
	assert.True(t, quota.HasRoom(u, 100))
	assert.False(t, quota.HasRoom(u, 101))
}

func TestRemainingClampedAtZero(t *testing.T) {
	u := &model.User{StorageUsed: 1200, StorageLimit: 1000}
	assert.Equal(t, int64(0), quota.Remaining(u))

	u2 := &model.User{StorageUsed: 200, StorageLimit: 1000}
	assert.Equal(t, int64(800), quota.Remaining(u2))
}

func TestNextFailedLoginStateBelowThreshold(t *testing.T) {
	u := &model.User{FailedLoginCount: 2}
	count, lockedUntil := quota.NextFailedLoginState(u, time.Now())
	assert.Equal(t, 3, count)
	assert.Nil(t, lockedUntil)
}

func TestNextFailedLoginStateTripsLock(t *testing.T) {
	u := &model.User{FailedLoginCount: model.MaxFailedLogins - 1}
	now := time.Now()
	count, lockedUntil := quota.NextFailedLoginState(u, now)
	assert.Equal(t, model.MaxFailedLogins, count)
	require.NotNil(t, lockedUntil)
	assert.WithinDuration(t, now.Add(model.LockDuration), *lockedUntil, time.Second)
}

func TestNextFailedLoginStateResetsAfterExpiredLock(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Minute)
	u := &model.User{FailedLoginCount: model.MaxFailedLogins, LockedUntil: &expired}

	count, lockedUntil := quota.NextFailedLoginState(u, now)
	assert.Equal(t, 1, count)
	assert.Nil(t, lockedUntil)
}

func TestCheckLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	locked := &model.User{LockedUntil: &future}
	err := quota.CheckLocked(locked, now)
	require.Error(t, err)
	assert.Equal(t, vaulterr.AccountLocked, vaulterr.KindOf(err))

	past := now.Add(-time.Hour)
	unlocked := &model.User{LockedUntil: &past}
	assert.NoError(t, quota.CheckLocked(unlocked, now))

	assert.NoError(t, quota.CheckLocked(&model.User{}, now))
}
