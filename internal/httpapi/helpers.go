package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/zynqcloud/securevault/internal/vaulterr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// decodeAndValidate JSON-decodes r's body into dst and runs struct-tag
// validation, translating both failure modes into a client-facing
// ValidationError (spec §7: validation errors carry their message verbatim).
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return vaulterr.New(vaulterr.ValidationError, "malformed request body")
	}
	if err := v.Struct(dst); err != nil {
		return vaulterr.New(vaulterr.ValidationError, err.Error())
	}
	return nil
}

// paramObjectID parses a chi URL path parameter as a Mongo ObjectID.
func paramObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.ObjectID{}, vaulterr.Validationf("invalid id %q", raw)
	}
	return id, nil
}
