package encoder

import (
	"errors"
	"fmt"
)

// Error codes for encode runs.
const (
	CodeSetupFailure        = "SETUP_FAILURE"
	CodeRuntimeError        = "RUNTIME_ERROR"
	CodePrematureExhaustion = "PREMATURE_EXHAUSTION"
)

// Error is a failed encode run.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Status is the outcome of Encode.
type Status int

const (
	StatusOK Status = iota
	StatusSetupFailure
	StatusRuntimeError
	StatusPrematureExhaustion
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSetupFailure:
		return "setup_failure"
	case StatusRuntimeError:
		return "runtime_error"
	case StatusPrematureExhaustion:
		return "premature_exhaustion"
	default:
		return "unknown"
	}
}

// StatusOf maps an Encode result to a Status. Errors that are not *Error
// count as runtime errors.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return StatusRuntimeError
	}
	switch e.Code {
	case CodeSetupFailure:
		return StatusSetupFailure
	case CodePrematureExhaustion:
		return StatusPrematureExhaustion
	default:
		return StatusRuntimeError
	}
}
