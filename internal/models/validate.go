package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	// Australian landline or mobile, optional +61 prefix and spacing (e.g. 0412 345 678, +61 2 9876 5432)
	phoneRegex = regexp.MustCompile(`^(\+61\s?|0)[2-478](\s?\d){8}$`)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// 4-digit Australian postcode
	postcodeRegex = regexp.MustCompile(`^\d{4}$`)
	// 24-hour HH:MM
	timeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	nameRegex = regexp.MustCompile(`^[\p{L}\s'.-]+$`)
)

const (
	MinStudentAge = 2
	MaxStudentAge = 18
)

// structValidator checks the `validate` tags of boundary payloads. Field
// names are reported by their json tag.
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "auphone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})
	mustRegister(v, "personname", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	// Empty dates and slots pass; pair with notblank to require one.
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || IsValidDate(s)
	})
	mustRegister(v, "timeslot", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || IsValidTimeSlot(s)
	})
	mustRegister(v, "accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct runs the `validate` tags of s and returns one FieldError per
// failing field, keyed by json path (e.g. emergency_contact.phone, dates[1]).
func ValidateStruct(s interface{}) ValidationErrors {
	var errs ValidationErrors
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("", "%s", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(jsonPath(fe.Namespace()), "%s", messageFor(fe))
	}
	return errs
}

// jsonPath drops the root struct name from a validator namespace.
func jsonPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "auphone":
		return "must be a valid Australian phone number"
	case "personname":
		return "contains invalid characters"
	case "isodate":
		return "must be YYYY-MM-DD"
	case "timeslot":
		return "must be HH:MM or HH:MM-HH:MM"
	case "accepted":
		return "terms and conditions must be accepted"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "cannot exceed " + fe.Param()
	case "min":
		if fe.Param() == "0" {
			return "cannot be negative"
		}
		return "must be at least " + fe.Param()
	}
	return "is invalid"
}

// IsValidPhone reports whether s is an Australian phone number.
func IsValidPhone(s string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(s))
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return len(s) <= 255 && emailRegex.MatchString(strings.TrimSpace(s))
}

// IsValidPostcode reports whether s is a 4-digit postcode.
func IsValidPostcode(s string) bool {
	return postcodeRegex.MatchString(s)
}

// IsValidTime reports whether s is an HH:MM time of day.
func IsValidTime(s string) bool {
	return timeRegex.MatchString(s)
}

// minutesOf converts a validated HH:MM string to minutes past midnight.
func minutesOf(hhmm string) int {
	if !IsValidTime(hhmm) {
		return -1
	}
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	return h*60 + m
}
