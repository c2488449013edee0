package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/kakao-auth/internal/auth"
	"github.com/spec-kit/kakao-auth/internal/persistence"
)

// Error codes rendered to clients.
const (
	CodeAccessTokenExpired  = "ACCESS_TOKEN_EXPIRED"
	CodeAccessTokenInvalid  = "ACCESS_TOKEN_INVALID"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeRefreshTokenMissing = "REFRESH_TOKEN_MISSING"
	CodeRefreshTokenInvalid = "REFRESH_TOKEN_INVALID"
	CodeSignupTicketInvalid = "SIGNUP_TICKET_INVALID"
	CodeSignupRoleMismatch  = "SIGNUP_ROLE_MISMATCH"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeDuplicateValue      = "DUPLICATE_VALUE"
	CodeNotFound            = "NOT_FOUND"
	CodeRequestFailed       = "REQUEST_FAILED"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeDuplicateValue, message, http.StatusConflict, details)
}

func NewRefreshTokenMissing() error {
	return NewDomainError(CodeRefreshTokenMissing, "refresh token missing", http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromAuthError translates core token and session errors to their client-facing form.
// It returns nil when err is not one of them.
func FromAuthError(err error) *DomainError {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return &DomainError{Code: CodeAccessTokenExpired, Message: "access token expired", HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, auth.ErrTokenInvalid):
		return &DomainError{Code: CodeAccessTokenInvalid, Message: "access token invalid", HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, auth.ErrAuthentication):
		return &DomainError{Code: CodeUnauthorized, Message: "authentication failed", HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, auth.ErrRefreshInvalid):
		return &DomainError{Code: CodeRefreshTokenInvalid, Message: "refresh token invalid or expired", HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, auth.ErrTicketInvalid):
		return &DomainError{Code: CodeSignupTicketInvalid, Message: "signup ticket invalid or expired", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, auth.ErrRoleMismatch):
		return &DomainError{Code: CodeSignupRoleMismatch, Message: "requested role does not match signup ticket", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, persistence.ErrStoreUnavailable):
		return &DomainError{Code: CodeStoreUnavailable, Message: "session store unavailable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	return nil
}

// FromHTTPStatus builds the error rendered for a bare transport status, such as an
// unmatched route or a failed role guard.
func FromHTTPStatus(status int, message string) *DomainError {
	code := CodeRequestFailed
	switch {
	case status == http.StatusBadRequest:
		code = CodeValidationFailed
	case status == http.StatusUnauthorized:
		code = CodeUnauthorized
	case status == http.StatusForbidden:
		code = CodeForbidden
	case status == http.StatusNotFound:
		code = CodeNotFound
	case status == http.StatusConflict:
		code = CodeDuplicateValue
	case status >= http.StatusInternalServerError:
		code = CodeInternal
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
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
	if de := FromAuthError(err); de != nil {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
