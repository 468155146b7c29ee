package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CronFieldCount is the number of whitespace-separated fields in a schedule.
const CronFieldCount = 5

// ValidationResult reports whether a definition is acceptable.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Err returns nil for a valid result, otherwise an ErrInvalidDefinition wrapping the messages.
func (v ValidationResult) Err() error {
	if v.IsValid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(v.Errors, "; "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCronExpression checks that expr has exactly five fields and parses as a standard cron spec.
func ValidateCronExpression(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != CronFieldCount {
		return fmt.Errorf("%w: %q must have %d fields, got %d", ErrInvalidSchedule, expr, CronFieldCount, len(fields))
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return nil
}

// ValidateDefinition runs required-field and enum checks on def and, when a
// schedule is present, the cron check.
func ValidateDefinition(def *Definition) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []string{}}
	if def == nil {
		return ValidationResult{Errors: []string{"definition is required"}}
	}

	if err := validate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				result.Errors = append(result.Errors, describe(fe))
			}
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if def.Schedule != "" {
		if err := ValidateCronExpression(def.Schedule); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// describe turns a validator error into "source.location is required" style text.
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", path)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", path, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s character(s)", path, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
