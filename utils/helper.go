package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the shared validator over a struct with `validate`
// tags and converts the first failure into a *ValidationError.
func ValidateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		first := validationErrors[0]
		return &ValidationError{
			Field:   first.Field(),
			Message: "failed on " + first.Tag() + " rule",
		}
	}
	return &ValidationError{Message: err.Error()}
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
