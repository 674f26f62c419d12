// Package validate checks request structs against their `validate` tags and
// reports failures as apierr validation errors keyed by JSON field name.
//
// Messages are built from the field's `label` tag:
//
//	Username string `json:"username" validate:"required,max=64" label:"Username"`
//
// fails with "Username is required" or "Username must be at most 64 characters".
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phr/phr/internal/platform/apierr"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// maxbytes bounds the encoded length, max counts characters.
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

var std = New()

// Struct validates s with the package validator.
func Struct(s interface{}) error {
	return std.Struct(s)
}

// Struct returns nil or an *apierr.Error of kind validation with one field
// error per failing field, in declaration order.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierr.Internal(err)
	}

	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var f apierr.Fields
	for _, fe := range verrs {
		f.Add(fe.Field(), message(fe, label(t, fe)))
	}
	return f.Err()
}

func label(t reflect.Type, fe validator.FieldError) string {
	if t.Kind() == reflect.Struct {
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if l := sf.Tag.Get("label"); l != "" {
				return l
			}
		}
	}
	return fe.Field()
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please include a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max", "maxbytes":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "oneof":
		return "Invalid " + strings.ToLower(label)
	}
	return label + " is invalid"
}

func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

// Value checks a single value against rules, adding any failure to f under
// field.
func Value(f *apierr.Fields, field, label string, value interface{}, rules string) {
	err := std.v.Var(value, rules)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		f.Add(field, label+" is invalid")
		return
	}
	for _, fe := range verrs {
		f.Add(field, message(fe, label))
	}
}
