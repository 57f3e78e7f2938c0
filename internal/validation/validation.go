// Package validation holds the shared struct validator. Field names in
// errors are the json names.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(err)
	}
	return v
}

// notblank rejects strings that are empty after trimming spaces.
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct checks the `validate` tags of s.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// Var checks a single value against tag.
func Var(v interface{}, tag string) error {
	return validate.Var(v, tag)
}

// FirstField returns the json name and failed tag of the first field error
// in err.
func FirstField(err error) (field, tag string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", "", false
	}
	return verrs[0].Field(), verrs[0].Tag(), true
}
