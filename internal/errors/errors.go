package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error. Stage and Column
// attribute a failure to the pipeline stage and column that caused it.
type AppError struct {
	Code    string
	Message string
	Stage   string
	Column  string
	Cause   error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Column != "" {
		msg = fmt.Sprintf("%s (column %q)", msg, e.Column)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Stage:   appErr.Stage,
			Column:  appErr.Column,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		cp := *appErr
		cp.Code = code
		return &cp
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// InStage attributes an error to a pipeline stage, keeping its code
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if appErr.Stage == stage {
			return err
		}
		cp := *appErr
		cp.Stage = stage
		return &cp
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: err.Error(),
		Stage:   stage,
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// IsCode reports whether err carries the given code
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Attribution returns the stage and column an error is attributed to
func Attribution(err error) (stage, column string) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Stage, appErr.Column
	}
	return "", ""
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeConfigOutOfRange   = "CONFIG_OUT_OF_RANGE"
	CodeInvalidColumnState = "INVALID_COLUMN_STATE"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// ConfigurationOutOfRange rejects a setting outside its declared domain
func ConfigurationOutOfRange(field string, value, min, max float64) *AppError {
	return &AppError{
		Code:    CodeConfigOutOfRange,
		Message: fmt.Sprintf("%s = %v is outside [%v, %v]", field, value, min, max),
	}
}

// InvalidColumnState reports a column that cannot support the requested operation
func InvalidColumnState(stage, column, message string) *AppError {
	return &AppError{
		Code:    CodeInvalidColumnState,
		Message: message,
		Stage:   stage,
		Column:  column,
	}
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
