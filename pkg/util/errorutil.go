package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
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
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError marks a malformed note or payload. Not retryable
// without fixing the input.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewAuthenticationError rejects a request before any business logic runs.
func NewAuthenticationError(message string) error {
	return NewDomainError("AUTHENTICATION_FAILED", message, http.StatusUnauthorized, nil)
}

// NewRateLimitError tells the caller to retry after the stated interval.
func NewRateLimitError(retryAfterSeconds int) error {
	return NewDomainError("RATE_LIMITED", "rate limit exceeded", http.StatusTooManyRequests, map[string]any{
		"retry_after_seconds": retryAfterSeconds,
	})
}

// NewIdempotencyError signals a key reused with a different payload.
func NewIdempotencyError(key string) error {
	return NewDomainError("IDEMPOTENCY_CONFLICT", "idempotency key reused with a different payload", http.StatusConflict, map[string]any{
		"idempotency_key": key,
	})
}

// NewHelpdeskError wraps an external helpdesk failure. Retryable by the caller.
func NewHelpdeskError(err error) error {
	return &DomainError{
		Code:       "HELPDESK_UNAVAILABLE",
		Message:    "helpdesk request failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewNoteAppendError reports a note append that failed after the ticket was
// already resolved or created. The ticket reference is included so the
// caller can retry just the append.
func NewNoteAppendError(ticketID, ticketURL string, err error) error {
	return &DomainError{
		Code:       "NOTE_APPEND_FAILED",
		Message:    "ticket resolved but note append failed",
		HTTPStatus: http.StatusBadGateway,
		Details: map[string]any{
			"ticket_id":  ticketID,
			"ticket_url": ticketURL,
		},
		Err: err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
