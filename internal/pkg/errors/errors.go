package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports rejected input (amount, currency, ttl, urls).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a failed compare-and-swap transition.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// DeliveryError is a transient webhook delivery failure. Retried.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// RenderError is a permanent template rendering failure. Never retried.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string { return e.Reason }

// CryptoError reports a signature configuration failure (missing or unusable
// webhook secret). Treated as fatal for the affected delivery.
type CryptoError struct {
	Reason string
}

func (e *CryptoError) Error() string { return e.Reason }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsRender(err error) bool {
	var target *RenderError
	return errors.As(err, &target)
}

func IsCrypto(err error) bool {
	var target *CryptoError
	return errors.As(err, &target)
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteDomainError maps a domain error onto the HTTP envelope.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
	case IsNotFound(err):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case IsConflict(err):
		WriteError(w, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	default:
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "internal error", nil)
	}
}
