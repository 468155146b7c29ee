package model

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineNotFound is returned when no definition exists for a name.
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrInvalidSchedule is returned for malformed cron expressions.
	ErrInvalidSchedule = errors.New("invalid schedule expression")
	// ErrInvalidDefinition is returned when a definition fails validation.
	ErrInvalidDefinition = errors.New("invalid pipeline definition")
)

// FieldError is a per-field failure raised while mapping or transforming a record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field '%s': %s", e.Field, e.Reason)
}

// NewFieldError builds a FieldError with a formatted reason.
func NewFieldError(field, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StageError marks a failure that aborts a whole run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
