package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal error")
	ErrConflict           = errors.New("conflict")
	ErrServiceUnavail     = errors.New("service unavailable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAsset       = errors.New("invalid asset")
	ErrStorage            = errors.New("storage failure")
	ErrNoChange           = errors.New("no change")
	ErrConfig             = errors.New("configuration error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredentials creates a 401 error. The message is identical for an
// unknown email and a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// Inactive creates a 403 error for an account that has not been activated.
func Inactive() *AppError {
	return &AppError{
		Code:    "ACCOUNT_INACTIVE",
		Message: "account is not active, check your email for the verification link",
		Status:  http.StatusForbidden,
		Err:     ErrInactive,
	}
}

// InvalidToken creates a 401 error for a malformed, tampered or expired token.
func InvalidToken(err error) *AppError {
	if err == nil {
		err = ErrInvalidToken
	} else {
		err = fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &AppError{
		Code:    "INVALID_TOKEN",
		Message: "invalid or expired token",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// InvalidAsset creates a 400 error for a disallowed or oversize upload.
func InvalidAsset(message string) *AppError {
	return &AppError{
		Code:    "INVALID_ASSET",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidAsset,
	}
}

// Storage creates a 500 error for an asset or database I/O failure.
// The cause is kept for logging; the client only sees a generic message.
func Storage(op string, err error) *AppError {
	return &AppError{
		Code:    "STORAGE_ERROR",
		Message: "a storage error occurred",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %s: %w", ErrStorage, op, err),
	}
}

// NoChange creates a 400 error for an update that modified nothing.
func NoChange(resource string) *AppError {
	return &AppError{
		Code:    "NO_CHANGE",
		Message: fmt.Sprintf("%s update made no changes", resource),
		Status:  http.StatusBadRequest,
		Err:     ErrNoChange,
	}
}

// Config creates a 500 error for missing or invalid server configuration.
func Config(message string) *AppError {
	return &AppError{
		Code:    "CONFIG_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrConfig,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidAsset), errors.Is(err, ErrNoChange):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
