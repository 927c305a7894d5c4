// Package domainerrors defines the stable error taxonomy shared by every
// service. Codes are part of the public contract: HTTP responses, audit
// records and callers branch on them, so they never change once released.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// Request shape
	CodeBadRequest     Code = "bad_request"
	CodeValidation     Code = "validation_error"
	CodeInvalidInput   Code = "invalid_input"
	CodeInvalidRequest Code = "invalid_request"

	// Registry
	CodeDuplicateEntity     Code = "duplicate_entity"
	CodeNotFound            Code = "not_found"
	CodeInvalidReference    Code = "invalid_reference"
	CodeArrayLengthMismatch Code = "array_length_mismatch"
	CodeConflict            Code = "conflict"

	// Value movement
	CodeInvalidAmount       Code = "invalid_amount"
	CodeOutOfRange          Code = "out_of_range"
	CodeInsufficientBalance Code = "insufficient_balance"

	// Compliance
	CodeComplianceRejected Code = "compliance_rejected"
	CodeProofExpired       Code = "proof_expired"
	CodeProofNotYetValid   Code = "proof_not_yet_valid"

	// Lifecycle
	CodeInvalidState       Code = "invalid_state"
	CodeNotDefaulted       Code = "not_defaulted"
	CodeInvariantViolation Code = "invariant_violation"

	// Access
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	// Infrastructure
	CodeReentrantCall Code = "reentrant_call"
	CodeTimeout       Code = "timeout"
	CodeInternal      Code = "internal_error"
)

// Error is a coded domain error. Reason is only set for compliance
// rejections and carries the evaluator's reason string.
type Error struct {
	Code    Code
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Rejected builds a ComplianceRejected error carrying the failing reason.
func Rejected(reason string) error {
	return &Error{Code: CodeComplianceRejected, Message: "compliance check failed", Reason: reason}
}

// As returns the outermost coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// ReasonOf returns the compliance reason carried by err, if any.
func ReasonOf(err error) string {
	if de, ok := As(err); ok {
		return de.Reason
	}
	return ""
}
