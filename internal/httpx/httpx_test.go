package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zynqcloud/securevault/internal/httpx"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestErrorMapsKnownKindsToStatus(t *testing.T) {
	cases := []struct {
		kind   vaulterr.Kind
		status int
	}{
		{vaulterr.ValidationError, http.StatusBadRequest},
		{vaulterr.AuthFailure, http.StatusUnauthorized},
		{vaulterr.AccountLocked, http.StatusLocked},
		{vaulterr.Forbidden, http.StatusForbidden},
		{vaulterr.NotFound, http.StatusNotFound},
		{vaulterr.AlreadyExists, http.StatusConflict},
		{vaulterr.QuotaExceeded, http.StatusBadRequest},
		{vaulterr.ShareExpired, http.StatusGone},
		{vaulterr.RateLimited, http.StatusTooManyRequests},
		{vaulterr.MissingBlob, http.StatusNotFound},
		{vaulterr.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		httpx.Error(rr, vaulterr.New(tc.kind, "detail"))
		assert.Equal(t, tc.status, rr.Code, tc.kind.String())
	}
}

func TestErrorHidesDetailForInternalKinds(t *testing.T) {
	for _, kind := range []vaulterr.Kind{vaulterr.Internal, vaulterr.IntegrityFailure, vaulterr.CryptoFailure} {
		rr := httptest.NewRecorder()
		httpx.Error(rr, vaulterr.New(kind, "leaky internal detail"))
		env := decode(t, rr)
		assert.False(t, env.Success)
		assert.NotContains(t, env.Message, "leaky internal detail")
	}
}

func TestErrorPassesThroughOperationalMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	httpx.Error(rr, vaulterr.New(vaulterr.ValidationError, "username too short"))
	env := decode(t, rr)
	assert.Equal(t, "username too short", env.Message)
}

func TestRequiresPassword(t *testing.T) {
	rr := httptest.NewRecorder()
	httpx.RequiresPassword(rr)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	env := decode(t, rr)
	assert.True(t, env.RequiresPassword)
	assert.False(t, env.Success)
}

func TestOKEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	httpx.OK(rr, map[string]string{"hello": "world"})
	assert.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)
	assert.True(t, env.Success)
}
