package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeCapacityConflict = "CAPACITY_CONFLICT"
	CodeEditConflict     = "EDIT_CONFLICT"
	CodeStoreConflict    = "STORE_CONFLICT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInternal         = "INTERNAL_ERROR"
)

type AppError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	HTTPStatus  int               `json:"-"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Err         error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// NotFound covers both a missing reservation and an ownership mismatch.
// The two are deliberately indistinguishable so non-owners cannot probe
// for the existence of other users' reservations.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func InvalidRequest(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation carries per-field messages alongside the summary message.
func Validation(message string, fieldErrors map[string]string) *AppError {
	return &AppError{
		Code:        CodeInvalidRequest,
		Message:     message,
		HTTPStatus:  http.StatusBadRequest,
		FieldErrors: fieldErrors,
	}
}

func CapacityConflict(message string) *AppError {
	return &AppError{
		Code:       CodeCapacityConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func EditConflict(message string) *AppError {
	return &AppError{
		Code:       CodeEditConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// StoreConflict marks a serialization or version conflict in the store.
// The operation committed nothing and is safe to retry from scratch.
func StoreConflict(message string, err error) *AppError {
	return &AppError{
		Code:       CodeStoreConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError normalizes any error to an AppError. Unanticipated failures
// become INTERNAL_ERROR rather than being presented as some other kind.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// IsRetryable reports whether the operation that produced err may be
// retried from scratch with a chance of success.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeStoreConflict
	}
	return false
}
