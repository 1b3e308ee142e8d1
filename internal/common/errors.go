package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
)

// Ingestion taxonomy
var (
	ErrEncodingDetection      = errors.New("no candidate encoding decoded the input")
	ErrUnknownFormat          = errors.New("unknown format")
	ErrStructuralParse        = errors.New("structural parse error")
	ErrDateInferenceAmbiguous = errors.New("date inference ambiguous")
	ErrModelResponseMalformed = errors.New("model response malformed")
	ErrPersistence            = errors.New("persistence error")
	ErrLockTimeout            = errors.New("writer lock timeout")
)

// Error codes carried by AppError.
const (
	CodeEncodingDetection = "ENCODING_DETECTION_FAILURE"
	CodeUnknownFormat     = "UNKNOWN_FORMAT"
	CodeStructuralParse   = "STRUCTURAL_PARSE_ERROR"
	CodeDateAmbiguous     = "DATE_INFERENCE_AMBIGUOUS"
	CodeModelMalformed    = "MODEL_RESPONSE_MALFORMED"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeLockTimeout       = "LOCK_TIMEOUT"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StructuralError reports a missing header, column or cell in a structured decoder.
func StructuralError(source, field string, cause error) *AppError {
	if cause == nil {
		cause = ErrStructuralParse
	} else {
		cause = fmt.Errorf("%w: %w", ErrStructuralParse, cause)
	}
	return NewAppError(CodeStructuralParse, fmt.Sprintf("%s: %s", source, field), cause)
}

// PersistenceError wraps a storage failure for the caller.
func PersistenceError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrPersistence
	} else if !errors.Is(cause, ErrPersistence) {
		cause = fmt.Errorf("%w: %w", ErrPersistence, cause)
	}
	return NewAppError(CodePersistence, message, cause)
}

// IsRetryable reports whether the caller may retry the failed operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrPersistence)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps an application error to a gRPC status error.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrLockTimeout):
		return UnavailableError(err.Error())
	default:
		return InternalError(err.Error())
	}
}
