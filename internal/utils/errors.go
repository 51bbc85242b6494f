package utils

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError so transports can tell bad input from a broken deployment.
type Kind string

const (
	KindMissingField         Kind = "missing_field"
	KindValidation           Kind = "validation_error"
	KindUnmappedCategory     Kind = "unmapped_category"
	KindUnknownCategoryLevel Kind = "unknown_category_level"
	KindSchemaMismatch       Kind = "schema_mismatch"
	KindArtifactLoad         Kind = "artifact_load_error"
)

// Sentinels for errors.Is matching on Kind alone.
var (
	ErrMissingField         = &AppError{Kind: KindMissingField}
	ErrValidation           = &AppError{Kind: KindValidation}
	ErrUnmappedCategory     = &AppError{Kind: KindUnmappedCategory}
	ErrUnknownCategoryLevel = &AppError{Kind: KindUnknownCategoryLevel}
	ErrSchemaMismatch       = &AppError{Kind: KindSchemaMismatch}
	ErrArtifactLoad         = &AppError{Kind: KindArtifactLoad}
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *AppError) Error() string {
	prefix := e.Op
	if prefix == "" {
		prefix = string(e.Kind)
	}
	if e.Field != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, e.Field)
	}
	switch {
	case e.Msg == "" && e.Err == nil:
		return prefix
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same Kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Field == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// NewAppError constructs an AppError.
func NewAppError(kind Kind, op, msg string, err error) error {
	return &AppError{Kind: kind, Op: op, Msg: msg, Err: err}
}

// NewFieldError constructs an AppError attributed to a single input field.
func NewFieldError(kind Kind, op, field, msg string) error {
	return &AppError{Kind: kind, Op: op, Field: field, Msg: msg}
}

// KindOf returns the Kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// FieldOf returns the offending field recorded on err, if any.
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// IsClientError reports whether err was caused by the caller's input rather than
// by drift between the deployed artifacts and the pipeline.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindMissingField, KindValidation, KindUnmappedCategory, KindUnknownCategoryLevel:
		return true
	}
	return false
}
