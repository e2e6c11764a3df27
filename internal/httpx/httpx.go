// Package httpx provides the JSON response envelope shared by every
// handler (spec §6: "{success, message?, data?, requiresPassword?}") and
// the error-to-status mapping from the closed vaulterr taxonomy (spec §7).
// It generalizes the teacher's per-file writeJSON/writeError helpers
// (internal/handler/routes.go) into one package-level helper.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/zynqcloud/securevault/internal/vaulterr"
)

// Envelope is the response shape every endpoint returns, except raw byte
// streams from download/preview.
type Envelope struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	Data             any    `json:"data,omitempty"`
	RequiresPassword bool   `json:"requiresPassword,omitempty"`
}

// JSON writes v as the envelope's data payload with status.
func JSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: status < 400, Data: data})
}

// Created is JSON with 201.
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

// OK is JSON with 200.
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

// RequiresPassword emits the two-step share handshake response (spec §4.5
// Share consume): not an error, but a signal to re-request with a password.
func RequiresPassword(w http.ResponseWriter) {
	writeEnvelope(w, http.StatusUnauthorized, Envelope{Success: false, RequiresPassword: true})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env) //nolint:errcheck
}

// statusFor maps a vaulterr.Kind to its HTTP status per spec §7.
func statusFor(kind vaulterr.Kind) int {
	switch kind {
	case vaulterr.ValidationError:
		return http.StatusBadRequest
	case vaulterr.AuthFailure:
		return http.StatusUnauthorized
	case vaulterr.AccountLocked:
		return http.StatusLocked
	case vaulterr.Forbidden:
		return http.StatusForbidden
	case vaulterr.NotFound:
		return http.StatusNotFound
	case vaulterr.AlreadyExists:
		return http.StatusConflict
	case vaulterr.QuotaExceeded:
		return http.StatusBadRequest
	case vaulterr.ShareExpired:
		return http.StatusGone
	case vaulterr.RateLimited:
		return http.StatusTooManyRequests
	case vaulterr.MissingBlob:
		return http.StatusNotFound
	default: // Internal, IntegrityFailure, CryptoFailure
		return http.StatusInternalServerError
	}
}

// genericMessages holds the fixed, non-leaking text for kinds whose detail
// must never reach the client (spec §7: "IntegrityFailure (500, generic
// message only)", same for CryptoFailure and Internal).
var genericMessages = map[vaulterr.Kind]string{
	vaulterr.Internal:         "an internal error occurred",
	vaulterr.IntegrityFailure: "an internal error occurred",
	vaulterr.CryptoFailure:    "an internal error occurred",
}

// Error writes err as the standard failure envelope, mapping its
// vaulterr.Kind to the correct HTTP status and substituting a generic
// message for the kinds that must not leak detail. Any non-vaulterr error
// is treated as Internal.
func Error(w http.ResponseWriter, err error) {
	kind := vaulterr.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if generic, ok := genericMessages[kind]; ok {
		message = generic
	} else if ve, ok := err.(*vaulterr.Error); ok {
		message = ve.Message
	}

	writeEnvelope(w, status, Envelope{Success: false, Message: message})
}
