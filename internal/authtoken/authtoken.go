// Package authtoken issues and verifies the bearer JWTs described in spec
// §6: HS256, claims {id, username, role, iat, exp, iss: "secure-file-upload"},
// with a server-side staleness check against the user's password-changed-at
// timestamp so a token survives only until the next password rotation.
package authtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zynqcloud/securevault/internal/model"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const issuer = "secure-file-upload"

// Claims is the JWT payload shape named verbatim in spec §6.
type Claims struct {
	UserID   string     `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a shared HS256 secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a bearer token for u, valid for the issuer's configured TTL.
func (iss *Issuer) Issue(u *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   u.ID.Hex(),
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(iss.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(iss.secret)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.Internal, "sign token", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, returning its claims. It does
// not, by itself, check password-changed-at staleness — callers must pass
// the result to CheckFreshness once the user record is loaded (spec §6: "a
// token presented after the owner's password-changed-at is rejected").
func (iss *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, vaulterr.New(vaulterr.AuthFailure, "unexpected signing method")
		}
		return iss.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, vaulterr.New(vaulterr.AuthFailure, "invalid or expired token")
	}
	return claims, nil
}

// UserID parses the claims' subject id into a Mongo object id.
func (c *Claims) UserObjectID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return primitive.ObjectID{}, vaulterr.New(vaulterr.AuthFailure, "malformed token subject")
	}
	return id, nil
}

// CheckFreshness rejects a token issued before the user's most recent
// password change (spec §6, S6).
func CheckFreshness(claims *Claims, u *model.User) error {
	if claims.IssuedAt == nil {
		return vaulterr.New(vaulterr.AuthFailure, "token missing issued-at claim")
	}
	if claims.IssuedAt.Time.Before(u.PasswordChangedAt) {
		return vaulterr.New(vaulterr.AuthFailure, "session invalidated by password change, please log in again")
	}
	return nil
}
