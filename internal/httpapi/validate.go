package httpapi

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	lowerRe    = regexp.MustCompile(`[a-z]`)
	upperRe    = regexp.MustCompile(`[A-Z]`)
	digitRe    = regexp.MustCompile(`[0-9]`)
	specialRe  = regexp.MustCompile(`[@$!%*?&]`)
	mongoIDRe  = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// newValidator builds the shared validator instance with the custom rules
// spec §6 names: username charset, password complexity classes, and a
// Mongo ObjectID shape check for path/body ids.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return usernameRe.MatchString(fl.Field().String())
	})
	v.RegisterValidation("password_complexity", func(fl validator.FieldLevel) bool { //nolint:errcheck
		s := fl.Field().String()
		return lowerRe.MatchString(s) && upperRe.MatchString(s) && digitRe.MatchString(s) && specialRe.MatchString(s)
	})
	v.RegisterValidation("mongoid", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return mongoIDRe.MatchString(fl.Field().String())
	})
	return v
}
