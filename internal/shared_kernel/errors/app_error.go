package apperrors

import "errors"

type Type string

const (
	TypeValidation     Type = "validation"
	TypeInternal       Type = "internal"
	TypeConfiguration  Type = "configuration"
	TypeHostStart      Type = "host_start"
	TypeConnectivity   Type = "connectivity"
	TypeSchemaCreation Type = "schema_creation"
	TypeMigration      Type = "migration"
	TypeVerification   Type = "verification"
)

// ErrShutdownRequested is the cause attached to a bootstrap run that stopped
// between stages because the process was asked to exit.
var ErrShutdownRequested = errors.New("shutdown requested")

type AppError struct {
	Type    Type           `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// As extracts an *AppError from err. A plain error is wrapped as internal.
func As(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	return NewInternal("INTERNAL_ERROR", "unexpected error", nil, err)
}

func newAppError(errType Type, code, message string, details map[string]any, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

func NewInternal(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeInternal, code, message, details, cause)
}

func NewValidation(code, message string, details map[string]any) *AppError {
	return newAppError(TypeValidation, code, message, details, nil)
}

func NewConfiguration(code, message string, details map[string]any) *AppError {
	return newAppError(TypeConfiguration, code, message, details, nil)
}

func NewHostStart(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeHostStart, code, message, details, cause)
}

func NewConnectivity(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeConnectivity, code, message, details, cause)
}

func NewSchemaCreation(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeSchemaCreation, code, message, details, cause)
}

func NewMigration(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeMigration, code, message, details, cause)
}

func NewVerification(code, message string, details map[string]any, cause error) *AppError {
	return newAppError(TypeVerification, code, message, details, cause)
}
