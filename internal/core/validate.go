package core

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

type enum interface {
	IsValid() bool
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Zero dates fail "required".
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(Date); ok && !d.IsZero() {
				return d.Time
			}
			return nil
		}, Date{})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
			for _, r := range fl.Field().String() {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		})
		_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			e, ok := fl.Field().Interface().(enum)
			return ok && e.IsValid()
		})

		validate = v
	})
	return validate
}

// field -> tag -> message; "" matches any tag.
var fieldMessages = map[string]map[string]string{
	"name":               {"notblank": "Name is required", "max": "Name is too long"},
	"nickname":           {"notblank": "Nickname is required", "max": "Nickname is too long"},
	"amount":             {"": "Amount must be greater than 0"},
	"currency":           {"": "Currency must be a 3-letter code"},
	"type":               {"": "Invalid type"},
	"frequency":          {"": "Invalid frequency"},
	"startDate":          {"": "Start date is required"},
	"nextBillingDate":    {"": "Next billing date is required"},
	"notes":              {"": "Notes are too long"},
	"reminderDaysBefore": {"": "Must be between 0 and 30"},
	"lastFourDigits":     {"": "Must be exactly 4 digits"},
}

func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := NewValidationError()
	for _, fe := range fieldErrs {
		field := fe.Field()
		if field == "cents" {
			field = "amount"
		}
		if _, seen := ve.Fields[field]; seen {
			continue
		}
		ve.Add(field, messageFor(field, fe.Tag()))
	}
	return ve
}

func messageFor(field, tag string) string {
	if msgs, ok := fieldMessages[field]; ok {
		if msg, ok := msgs[tag]; ok {
			return msg
		}
		if msg, ok := msgs[""]; ok {
			return msg
		}
	}
	return "Invalid value"
}
