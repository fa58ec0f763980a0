package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindPolicy        Kind = "POLICY"
	KindNotFound      Kind = "NOT_FOUND"
	KindRateLimit     Kind = "RATE_LIMIT"
	KindStorage       Kind = "STORAGE"
	KindAuditEmission Kind = "AUDIT_EMISSION"
	KindInternal      Kind = "INTERNAL"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	HTTPStatus int    `json:"-"`
	Retryable  bool   `json:"retryable,omitempty"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Error codes.
const (
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodeMismatchedConfirmation   = "MISMATCHED_CONFIRMATION"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeInvalidCurrentCredential = "INVALID_CURRENT_CREDENTIAL"
	CodeSameAsCurrent            = "SAME_AS_CURRENT"
	CodeRecentlyUsed             = "RECENTLY_USED"
	CodeNotFound                 = "NOT_FOUND"
	CodeRateLimited              = "RATE_LIMITED"
	CodeStorageUnavailable       = "STORAGE_UNAVAILABLE"
	CodeAuditEmissionFailed      = "AUDIT_EMISSION_FAILED"
	CodeInternal                 = "INTERNAL_ERROR"
)

// ---- Validation ----

// Validation returns a generic input validation error.
func Validation(message string) *AppError {
	return New(KindValidation, CodeValidationFailed, message, http.StatusBadRequest)
}

func ErrMismatchedConfirmation() *AppError {
	return New(KindValidation, CodeMismatchedConfirmation, "New credential and confirmation do not match", http.StatusBadRequest)
}

// ---- Authorization ----

func ErrInvalidToken() *AppError {
	return New(KindAuthorization, CodeUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

// ErrInvalidCurrentCredential is returned both for an unknown principal and a
// wrong current credential.
func ErrInvalidCurrentCredential() *AppError {
	return New(KindAuthorization, CodeInvalidCurrentCredential, "Current credential is incorrect", http.StatusUnauthorized)
}

// ---- Policy ----

func ErrSameAsCurrent() *AppError {
	return New(KindPolicy, CodeSameAsCurrent, "New credential must differ from the current one", http.StatusUnprocessableEntity)
}

func ErrRecentlyUsed(limit int) *AppError {
	return New(KindPolicy, CodeRecentlyUsed, fmt.Sprintf("cannot reuse one of the last %d credentials", limit), http.StatusUnprocessableEntity)
}

// ---- Lookup ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting ----

func ErrRateLimitExceeded() *AppError {
	e := New(KindRateLimit, CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
	e.Retryable = true
	return e
}

// ---- System & Infrastructure ----

// ErrStorage reports a failed storage operation. The cause is kept for logs
// only; clients see a generic message.
func ErrStorage(err error) *AppError {
	e := Wrap(KindStorage, CodeStorageUnavailable, "Storage temporarily unavailable, try again", http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

// ErrAuditEmission reports that a committed change could not be audited.
func ErrAuditEmission(err error) *AppError {
	return Wrap(KindAuditEmission, CodeAuditEmissionFailed, "Change applied but audit event was not recorded", http.StatusOK, err)
}

// InternalError wraps an unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
