package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a ledger error class. Codes are stable strings surfaced
// verbatim in API error details so callers can branch without parsing messages.
type Code string

const (
	CodeAlreadyExists      Code = "AlreadyExists"
	CodeInvalidWallet      Code = "InvalidWallet"
	CodeNotFound           Code = "NotFound"
	CodeBusinessInactive   Code = "BusinessInactive"
	CodeInvalidParameters  Code = "InvalidParameters"
	CodePoolNotOpen        Code = "PoolNotOpen"
	CodePoolExpired        Code = "PoolExpired"
	CodeExceedsCapacity    Code = "ExceedsCapacity"
	CodeInvalidPoolState   Code = "InvalidPoolState"
	CodeInvariantViolation Code = "InvariantViolation"
	CodeInsufficientFunds  Code = "InsufficientFunds"
	CodeTransferFailed     Code = "TransferFailed"
)

// Error is a coded ledger error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a coded error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, or "" if err is not a coded error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeAlreadyExists, CodePoolNotOpen, CodeInvalidPoolState:
		return 409
	case CodeInvalidWallet, CodeInvalidParameters:
		return 400
	case CodeNotFound:
		return 404
	case CodeBusinessInactive:
		return 403
	case CodePoolExpired:
		return 410
	case CodeExceedsCapacity:
		return 422
	case CodeInvariantViolation:
		return 500
	case CodeInsufficientFunds, CodeTransferFailed:
		return 502
	default:
		return 500
	}
}
