package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrConflict
	ErrInternal
)

// Donation workflow error codes
const (
	ErrValidation ErrorCode = iota + 2000
	ErrInvalidTransition
	ErrPrecondition
	ErrNotEligible
	ErrBloodGroupMismatch
	ErrDuplicateOptIn
	ErrRequestNotAvailable
	ErrReassignmentWindowClosed
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(message string, err error) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// Workflow errors. Rejected transitions carry the current and required state
// so callers can explain the failure to the user.

func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func InvalidTransition(resource, current, required string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("%s is %s, must be %s", resource, current, required),
	}
}

func Precondition(message string) *AppError {
	return &AppError{
		Code:    ErrPrecondition,
		Message: message,
	}
}

func NotEligible(message string) *AppError {
	return &AppError{
		Code:    ErrNotEligible,
		Message: message,
	}
}

func BloodGroupMismatch(donorGroup, requiredGroup string) *AppError {
	return &AppError{
		Code:    ErrBloodGroupMismatch,
		Message: fmt.Sprintf("donor blood group %s does not match required group %s", donorGroup, requiredGroup),
	}
}

func DuplicateOptIn() *AppError {
	return &AppError{
		Code:    ErrDuplicateOptIn,
		Message: "donor has already opted into this request",
	}
}

func RequestNotAvailable(message string) *AppError {
	return &AppError{
		Code:    ErrRequestNotAvailable,
		Message: message,
	}
}

func ReassignmentWindowClosed(message string) *AppError {
	return &AppError{
		Code:    ErrReassignmentWindowClosed,
		Message: message,
	}
}

// Code extracts the ErrorCode from err, or ErrInternal if err is not an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return Code(err) == code
}
