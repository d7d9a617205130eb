package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewRecordValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("filename", filenameValidator),
		},
		{
			Rule: registerFn("mime_type", mimeTypeValidator),
		},
	}
}

func NewProductTermValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("product_term", productTermValidator),
		},
	}
}
