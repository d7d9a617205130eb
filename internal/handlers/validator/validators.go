package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator wraps go-playground/validator. Field errors are reported under the json name of the field.
type Validator struct {
	validate *validator.Validate
}

func NewValidator(rules ...ValidationRule) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	val := &Validator{validate: v}
	val.Register(rules...)
	return val
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, r := range rules {
		r.Rule(v.validate)
	}
}

func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
