package models

import (
	"unicode"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the custom rules used by the request
// DTOs registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("letterdigit", validateLetterDigit)
	return v
}

// validateLetterDigit requires at least one ASCII letter and one digit.
func validateLetterDigit(fl validator.FieldLevel) bool {
	var hasLetter, hasDigit bool
	for _, r := range fl.Field().String() {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
