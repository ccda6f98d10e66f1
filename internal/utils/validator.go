package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidateStruct runs the `validate` tags on s.
func ValidateStruct(s interface{}) []ValidationError {
	return FormatValidationErrors(validate.Struct(s))
}

// FormatValidationErrors converts validator.ValidationErrors into readable
// messages. Other errors yield nil.
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required", "required_without":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
		case "min", "gte":
			out[i].Message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "oneof":
			out[i].Message = fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		case "url":
			out[i].Message = fmt.Sprintf("%s must be a valid URL", fe.Field())
		default:
			out[i].Message = fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
		}
	}
	return out
}
