// ABOUTME: Client-side form validation with go-playground/validator
// ABOUTME: Rejects malformed login/register/reset forms before they reach the network

package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateForm runs struct tag validation and reports the first failure as
// an ErrValidation *Error so callers handle it like a server-side 400.
func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: ErrValidation, Detail: err.Error()}
	}

	fe := verrs[0]
	field := toSnake(fe.Field())
	var detail string
	switch fe.Tag() {
	case "required":
		detail = fmt.Sprintf("%s is required", field)
	case "email":
		detail = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		detail = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		detail = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "eqfield":
		detail = "passwords do not match"
	case "oneof":
		detail = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		detail = fmt.Sprintf("%s is invalid", field)
	}
	return &Error{Kind: ErrValidation, Detail: detail}
}

// toSnake turns a Go field name into its wire spelling (NewPassword -> new_password).
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
