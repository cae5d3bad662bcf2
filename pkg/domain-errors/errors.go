// Package domainerrors defines the error taxonomy for the enforcement
// engine. Every expected operational outcome maps to a Code; the transport
// layer owns the translation to HTTP statuses. Error messages must never
// contain PHI or cryptographic material.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for transport mapping.
type Code string

const (
	// Guard chain outcomes, in check order.
	CodeIPBlocked               Code = "ip_blocked"
	CodeRateLimitExceeded       Code = "rate_limit_exceeded"
	CodeHTTPSRequired           Code = "https_required"
	CodeAuthenticationRequired  Code = "authentication_required"
	CodeInvalidSession          Code = "invalid_session"
	CodeSessionExpired          Code = "session_expired"
	CodeMaliciousPayload        Code = "malicious_payload"
	CodeUnencryptedPHIDetected  Code = "unencrypted_phi_detected"
	CodeGeoBlocked              Code = "geo_blocked"
	CodeMFARequired             Code = "mfa_required"
	CodeComplianceHeaderMissing Code = "compliance_header_missing"

	// Cryptographic outcomes.
	CodeIntegrityViolation    Code = "integrity_violation"
	CodeKeyNotFound           Code = "key_not_found"
	CodeUnauthorizedPHIAccess Code = "unauthorized_phi_access"

	// General.
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is the concrete error type carrying a code and a safe message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates an underlying error with a domain code. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain, defaulting to
// CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// httpStatus maps each code to the transport status owned by the HTTP
// boundary. Unlisted codes fall through to 500.
var httpStatus = map[Code]int{
	CodeIPBlocked:               http.StatusForbidden,
	CodeRateLimitExceeded:       http.StatusTooManyRequests,
	CodeHTTPSRequired:           http.StatusUpgradeRequired,
	CodeAuthenticationRequired:  http.StatusUnauthorized,
	CodeInvalidSession:          http.StatusUnauthorized,
	CodeSessionExpired:          http.StatusUnauthorized,
	CodeMaliciousPayload:        http.StatusBadRequest,
	CodeUnencryptedPHIDetected:  http.StatusBadRequest,
	CodeGeoBlocked:              http.StatusForbidden,
	CodeMFARequired:             http.StatusForbidden,
	CodeComplianceHeaderMissing: http.StatusPreconditionFailed,
	CodeIntegrityViolation:      http.StatusConflict,
	CodeKeyNotFound:             http.StatusGone,
	CodeUnauthorizedPHIAccess:   http.StatusForbidden,
	CodeInvalidInput:            http.StatusBadRequest,
	CodeNotFound:                http.StatusNotFound,
	CodeInvariantViolation:      http.StatusInternalServerError,
	CodeInternal:                http.StatusInternalServerError,
}

// ToHTTPStatus translates a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
