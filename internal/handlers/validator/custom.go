package validator

import (
	"mime"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	maxFilenameLength = 255
	maxTermLength     = 128
)

func filenameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	val = strings.TrimSpace(val)
	if val == "" || len(val) > maxFilenameLength {
		return false
	}
	return !strings.ContainsFunc(val, unicode.IsControl)
}

// mimeTypeValidator only checks the syntax. Whether a kind accepts the type is decided by the upload router.
func mimeTypeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	mt, _, err := mime.ParseMediaType(val)
	if err != nil {
		return false
	}
	major, minor, found := strings.Cut(mt, "/")
	return found && major != "" && minor != ""
}

func productTermValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	val = strings.TrimSpace(val)
	return val != "" && len(val) <= maxTermLength && !strings.ContainsFunc(val, unicode.IsControl)
}
