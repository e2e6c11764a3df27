// Package cryptoengine implements the authenticated-encryption container
// format, key derivation, password hashing, and checksums that back the
// vault's data-at-rest guarantees (spec §4.1).
//
// Container layout: salt(64) ∥ iv(16) ∥ tag(16) ∥ ciphertext(*), fixed at a
// 96-byte overhead per spec §8 property 3. The design notes (§9) suggest
// reserving a leading 4-byte version prefix for future cipher/KDF changes;
// that was evaluated and rejected here because it would break the hard,
// literally-specified invariant "len(encrypt(b,k)) = 96 + len(b)" — a future
// format change belongs on the file record as an out-of-band flag instead,
// which is the alternative the same design note names.
package cryptoengine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"

	"github.com/zynqcloud/securevault/internal/vaulterr"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 64
	ivSize    = 16
	tagSize   = 16
	keySize   = 32 // AES-256
	pbkdfIter = 100_000

	// ContainerOverhead is the fixed number of framing bytes added by Encrypt
	// ahead of the ciphertext: salt ∥ iv ∥ tag.
	ContainerOverhead = saltSize + ivSize + tagSize

	// BcryptCost matches spec §4.1's "cost ≥ 12" for both user and share
	// passwords.
	BcryptCost = 12
)

// UserKey is a user's long-lived 32-byte secret, generated once at
// registration and stored hex-encoded. It never leaves the server.
type UserKey [keySize]byte

// GenerateUserKey returns 32 fresh random bytes for a newly registered user.
func GenerateUserKey() (UserKey, error) {
	var k UserKey
	if _, err := rand.Read(k[:]); err != nil {
		return UserKey{}, vaulterr.Wrap(vaulterr.CryptoFailure, "generate user key", err)
	}
	return k, nil
}

// ParseUserKey decodes a hex-encoded user key as stored on the User record.
func ParseUserKey(hexKey string) (UserKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil || len(b) != keySize {
		return UserKey{}, vaulterr.New(vaulterr.CryptoFailure, "malformed user key")
	}
	var k UserKey
	copy(k[:], b)
	return k, nil
}

func (k UserKey) String() string { return hex.EncodeToString(k[:]) }

// deriveDataKey runs PBKDF2-HMAC-SHA-512 over the user key and a per-call
// salt. The parameters (iterations, hash, key length) are fixed system-wide
// so decrypt can reproduce them verbatim without any per-file bookkeeping.
func deriveDataKey(userKey UserKey, salt []byte) []byte {
	return pbkdf2.Key(userKey[:], salt, pbkdfIter, keySize, sha512.New)
}

// Encrypt seals plaintext under a data key derived from userKey and a fresh
// random salt, returning the full container: salt ∥ iv ∥ tag ∥ ciphertext.
// Salt and IV are generated fresh on every call.
func Encrypt(plaintext []byte, userKey UserKey) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "generate salt", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "generate iv", err)
	}

	dataKey := deriveDataKey(userKey, salt)
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "init cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "init gcm", err)
	}

	// Seal appends the tag to the end of its output; the container wants it
	// in the salt∥iv∥tag∥ciphertext slot instead, so split it back out.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ContainerOverhead+len(ciphertext))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt parses a container produced by Encrypt, re-derives the data key
// from the embedded salt, and verifies the GCM tag before returning
// plaintext. Any truncation or tag mismatch is reported as IntegrityFailure.
func Decrypt(container []byte, userKey UserKey) ([]byte, error) {
	if len(container) < ContainerOverhead {
		return nil, vaulterr.New(vaulterr.IntegrityFailure, "container truncated")
	}

	salt := container[0:saltSize]
	iv := container[saltSize : saltSize+ivSize]
	tag := container[saltSize+ivSize : saltSize+ivSize+tagSize]
	ciphertext := container[saltSize+ivSize+tagSize:]

	dataKey := deriveDataKey(userKey, salt)
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "init cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.CryptoFailure, "init gcm", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, vaulterr.New(vaulterr.IntegrityFailure, "authentication tag mismatch")
	}
	return plaintext, nil
}

// Hash returns the SHA-256 hex digest of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FileChecksum streams path through SHA-256 without loading it into memory.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.Internal, "open for checksum", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", vaulterr.Wrap(vaulterr.Internal, "stream checksum", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PasswordHash produces a bcrypt digest for a user or share password.
func PasswordHash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", vaulterr.Wrap(vaulterr.CryptoFailure, "hash password", err)
	}
	return string(b), nil
}

// PasswordVerify reports whether password matches digest.
// bcrypt.CompareHashAndPassword is constant-time in the compared digest.
func PasswordVerify(password, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// ConstantTimeEqualHex compares two hex strings (e.g. share tokens) without
// leaking timing information about where they first differ.
func ConstantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomTokenHex returns n random bytes hex-encoded, used for share tokens
// and session identifiers (32 bytes → 64 hex chars for share tokens, per
// spec §3).
func RandomTokenHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", vaulterr.Wrap(vaulterr.CryptoFailure, "generate token", err)
	}
	return hex.EncodeToString(b), nil
}
