package authtoken_test

import (
	"testing"
	"time"

	"github.com/zynqcloud/securevault/internal/authtoken"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testUser() *model.User {
	return &model.User{
		ID: primitive.NewObjectID(), Username: "alice", Role: model.RoleUser,
		PasswordChangedAt: time.Now().Add(-time.Hour),
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss := authtoken.New("test-secret", time.Hour)
	u := testUser()

	token, err := iss.Issue(u)
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.Username, claims.Username)
	assert.Equal(t, u.Role, claims.Role)

	id, err := claims.UserObjectID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	assert.NoError(t, authtoken.CheckFreshness(claims, u))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	iss := authtoken.New("secret-a", time.Hour)
	other := authtoken.New("secret-b", time.Hour)
	token, err := iss.Issue(testUser())
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.Error(t, err)
	assert.Equal(t, vaulterr.AuthFailure, vaulterr.KindOf(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss := authtoken.New("test-secret", -time.Minute)
	token, err := iss.Issue(testUser())
	require.NoError(t, err)

	_, err = iss.Verify(token)
	require.Error(t, err)
	assert.Equal(t, vaulterr.AuthFailure, vaulterr.KindOf(err))
}

func TestCheckFreshnessRejectsTokenBeforePasswordChange(t *testing.T) {
	iss := authtoken.New("test-secret", time.Hour)
	u := testUser()
	token, err := iss.Issue(u)
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)

	u.PasswordChangedAt = time.Now().Add(time.Hour)
	err = authtoken.CheckFreshness(claims, u)
	require.Error(t, err)
	assert.Equal(t, vaulterr.AuthFailure, vaulterr.KindOf(err))
}
