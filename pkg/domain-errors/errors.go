// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values (or wrap infrastructure errors with Wrap) so the
// HTTP layer can translate them into status codes without inspecting messages.
// Stores should not return coded errors; they return pkg/platform/sentinel
// errors which services translate.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"

	// Leasing codes. Each maps to one error kind of the leasing engine.
	CodeNotSetUp             Code = "not_set_up"
	CodeAlreadySetUp         Code = "already_set_up"
	CodeSubdomainUnavailable Code = "subdomain_unavailable"
	CodeOracleRejected       Code = "oracle_rejected"
	CodeNoOracleBound        Code = "no_oracle_bound"
	CodeInvalidDuration      Code = "invalid_duration"
	CodeFeeExceeded          Code = "fee_exceeded"
	CodeFuseBurned           Code = "fuse_burned"
	CodeCollaboratorFailure  Code = "collaborator_failure"
)

// Error is a coded domain error. Message is safe to show to API clients
// unless the code is CodeInternal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil when err is nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost coded error in the chain,
// or CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps an error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidDuration:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeFuseBurned:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadySetUp, CodeNotSetUp, CodeSubdomainUnavailable, CodeNoOracleBound:
		return http.StatusConflict
	case CodeOracleRejected, CodeFeeExceeded:
		return http.StatusUnprocessableEntity
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeCollaboratorFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
