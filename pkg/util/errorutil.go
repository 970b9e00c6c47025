package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Category groups error codes into the families clients branch on.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryStateConflict  Category = "state_conflict"
	CategoryAuthorization  Category = "authorization"
	CategoryAuthentication Category = "authentication"
	CategoryNotFound       Category = "not_found"
	CategoryInternal       Category = "internal"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Category   Category
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code string, category Category, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Category: category, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", CategoryValidation, message, http.StatusBadRequest, details)
}

// NewFieldError is a validation error carrying a single field detail.
func NewFieldError(field, message string) error {
	return NewValidationError(message, map[string]any{field: message})
}

func NewStateConflict(message string, details map[string]any) error {
	return NewDomainError("STATE_CONFLICT", CategoryStateConflict, message, http.StatusConflict, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Category:   CategoryNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", CategoryAuthentication, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", CategoryAuthorization, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", CategoryValidation, message, http.StatusConflict, details)
}

// NewUnavailable reports a dependency the request cannot proceed without.
func NewUnavailable(message string, err error) error {
	return &DomainError{
		Code:       "SERVICE_UNAVAILABLE",
		Category:   CategoryInternal,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Category:   CategoryInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCategory reports whether err is a DomainError of the given category.
func IsCategory(err error, category Category) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category == category
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err to a DomainError while keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
