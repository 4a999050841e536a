// Package validate registers the custom validation tags used by request DTOs.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/hyperpay/infra/config"
	"github.com/mstgnz/hyperpay/provider/hyperpay"
)

// CustomValidate registers the custom tags on the shared application validator
func CustomValidate() {
	Register(config.App().Validator)
}

// New returns a validator with the custom tags registered
func New() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

// Register adds the custom tags to v and reports fields by their json name
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// payment_method accepts card or mada in any case
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		raw := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		return raw == string(hyperpay.MethodCard) || raw == string(hyperpay.MethodMada)
	})

	// merchant_reference needs at least one character that survives sanitizing
	_ = v.RegisterValidation("merchant_reference", func(fl validator.FieldLevel) bool {
		return hyperpay.SanitizeReference(fl.Field().String()) != ""
	})
}
