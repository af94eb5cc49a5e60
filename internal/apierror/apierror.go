// Package apierror provides standardized error response structures for the API
// and the error taxonomy shared by services and handlers.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}

// Kind classifies a service error. Handlers map it to an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInsufficientStock
	KindUnauthorized
	KindForbidden
	KindValidation
	KindRetryable
	KindInternalConsistency
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindRetryable:
		return "retryable"
	case KindInternalConsistency:
		return "internal_consistency"
	default:
		return "internal"
	}
}

// Error is the typed error returned by services.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// InsufficientStock names the item or ingredient that could not be reserved.
func InsufficientStock(name string) *Error {
	return newf(KindInsufficientStock, "insufficient stock for %s", name)
}

func Unauthorized(format string, args ...any) *Error { return newf(KindUnauthorized, format, args...) }

func Forbidden(format string, args ...any) *Error { return newf(KindForbidden, format, args...) }

func Invalid(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

func Consistency(format string, args ...any) *Error {
	return newf(KindInternalConsistency, format, args...)
}

// Retryable marks a storage failure the client may resubmit.
func Retryable(err error) *Error {
	return &Error{Kind: KindRetryable, Detail: "transaction aborted, retry the request", Err: err}
}

// KindOf returns the Kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Postgres SQLSTATE codes that abort a transaction without it being the
// caller's fault.
var retryableCodes = map[string]bool{
	"40P01": true, // deadlock_detected
	"40001": true, // serialization_failure
	"55P03": true, // lock_not_available (lock_timeout)
	"57014": true, // query_canceled (statement_timeout)
}

// FromDB classifies a storage error. Typed errors pass through unchanged;
// notFound is the detail used for gorm.ErrRecordNotFound.
func FromDB(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Detail: notFound}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableCodes[pgErr.Code] {
		return Retryable(err)
	}
	return err
}

// IsUniqueViolation reports a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// genericInternal is all a client sees of a 500.
const genericInternal = "internal server error"

// Public returns the response status and envelope for err. Internal and
// consistency failures never expose their detail.
func Public(err error) (int, *APIError) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return status, New(genericInternal)
	}
	var e *Error
	if errors.As(err, &e) {
		return status, New(e.Detail)
	}
	return status, New(err.Error())
}
