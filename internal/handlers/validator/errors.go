package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldErrors flattens validation errors into a field -> rule map suitable for an error body.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fmt.Sprintf("failed on %s", fe.Tag())
	}
	return out
}
