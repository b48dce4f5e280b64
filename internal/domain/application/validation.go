package application

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const minApplicantAge = 18

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{6,19}$`)
	validate     = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// validateStruct runs the tag rules and flattens the outcome into violations
// keyed by JSON path, e.g. "financialInfo.requestedAmount".
func validateStruct(in any) []Violation {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Field: "body", Code: "invalid", Message: err.Error()}}
	}

	out := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, Violation{Field: field, Code: violationCode(fe.Tag()), Message: violationMessage(fe)})
	}
	return out
}

func violationCode(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "oneof":
		return "invalid_option"
	case "gt", "gte", "lt", "lte", "min", "max":
		return "out_of_range"
	default:
		return "invalid_format"
	}
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s characters", fe.Param())
	case "datetime":
		return "must be a date formatted as YYYY-MM-DD"
	default:
		return fmt.Sprintf("must be a valid %s", fe.Tag())
	}
}

func validateSubmission(in SubmitInput, now time.Time) []Violation {
	violations := validateStruct(in)

	if dob, err := time.Parse("2006-01-02", strings.TrimSpace(in.PersonalInfo.DateOfBirth)); err == nil {
		switch {
		case dob.After(now):
			violations = append(violations, Violation{Field: "personalInfo.dateOfBirth", Code: "out_of_range", Message: "must not be in the future"})
		case dob.AddDate(minApplicantAge, 0, 0).After(now):
			violations = append(violations, Violation{Field: "personalInfo.dateOfBirth", Code: "out_of_range", Message: fmt.Sprintf("applicant must be at least %d years old", minApplicantAge)})
		}
	}
	return violations
}
