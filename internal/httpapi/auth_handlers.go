package httpapi

import (
	"net/http"
	"time"

	"github.com/zynqcloud/securevault/internal/cryptoengine"
	"github.com/zynqcloud/securevault/internal/httpx"
	"github.com/zynqcloud/securevault/internal/middleware"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vaulterr"
)

type userView struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	StorageUsed  int64     `json:"storageUsed"`
	StorageLimit int64     `json:"storageLimit"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toUserView(u *model.User) userView {
	return userView{
		ID: u.ID.Hex(), Username: u.Username, Email: u.Email, Role: string(u.Role),
		StorageUsed: u.StorageUsed, StorageLimit: u.StorageLimit, CreatedAt: u.CreatedAt,
	}
}

// handleRegister implements POST /api/auth/register (spec §6).
func (d *Deps) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	key, err := cryptoengine.GenerateUserKey()
	if err != nil {
		httpx.Error(w, err)
		return
	}
	passwordHash, err := cryptoengine.PasswordHash(req.Password)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	u := &model.User{
		Username: req.Username, Email: req.Email, PasswordHash: passwordHash, UserKeyHex: key.String(),
	}
	if err := d.Users.CreateUser(r.Context(), u); err != nil {
		httpx.Error(w, err)
		return
	}

	token, err := d.Issuer.Issue(u)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Created(w, map[string]any{"user": toUserView(u), "token": token})
}

// handleLogin implements POST /api/auth/login (spec §6): account-lock
// check, bcrypt verify, failed/success transitions via the quota manager.
func (d *Deps) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	u, err := d.Users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "invalid email or password"))
		return
	}

	if err := quota.CheckLocked(u, time.Now()); err != nil {
		httpx.Error(w, err)
		return
	}

	if !cryptoengine.PasswordVerify(req.Password, u.PasswordHash) {
		if err := d.Quota.RegisterFailedLogin(r.Context(), u); err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "invalid email or password"))
		return
	}

	if err := d.Quota.RegisterSuccessfulLogin(r.Context(), u); err != nil {
		httpx.Error(w, err)
		return
	}

	token, err := d.Issuer.Issue(u)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]any{"user": toUserView(u), "token": token})
}

// handleMe implements GET /api/auth/me.
func (d *Deps) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	httpx.OK(w, toUserView(u))
}

// handleStorage implements GET /api/auth/storage.
func (d *Deps) handleStorage(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	httpx.OK(w, map[string]any{
		"used": u.StorageUsed, "limit": u.StorageLimit, "remaining": quota.Remaining(u),
	})
}

// handleUpdateProfile implements PATCH /api/auth/update-profile.
func (d *Deps) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req updateProfileRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := d.Users.UpdateProfile(r.Context(), u.ID, req.Username, req.Email); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "updated"})
}

// handleUpdatePassword implements PATCH /api/auth/update-password. A
// successful rotation bumps password-changed-at, invalidating any bearer
// token issued before this moment (spec §6, S6).
func (d *Deps) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req updatePasswordRequest
	if err := decodeAndValidate(r, d.Validate, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if !cryptoengine.PasswordVerify(req.CurrentPassword, u.PasswordHash) {
		httpx.Error(w, vaulterr.New(vaulterr.AuthFailure, "current password is incorrect"))
		return
	}
	newHash, err := cryptoengine.PasswordHash(req.NewPassword)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := d.Users.UpdatePassword(r.Context(), u.ID, newHash); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "password updated, please log in again"})
}

// handleLogout implements POST /api/auth/logout. JWTs are stateless in
// this design (spec §6); logout is a client-side token discard with a
// confirming response, not a server-side revocation.
func (d *Deps) handleLogout(w http.ResponseWriter, _ *http.Request) {
	httpx.OK(w, map[string]string{"status": "logged out"})
}

// handleDeleteAccount implements DELETE /api/auth/delete-account.
// Accounts are deactivated, not destroyed (spec §3).
func (d *Deps) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	if err := d.Users.Deactivate(r.Context(), u.ID); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, map[string]string{"status": "account deactivated"})
}
