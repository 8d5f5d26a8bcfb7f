package bench

import (
	"errors"
	"fmt"
)

// Error codes returned by the runner.
const (
	CodeJobNotFound = "JOB_NOT_FOUND"
	CodeJobBusy     = "JOB_BUSY"
	CodeQueueFull   = "QUEUE_FULL"
	CodeClosed      = "RUNNER_CLOSED"
	CodeInput       = "INPUT_ERROR"
	CodeOutput      = "OUTPUT_ERROR"
	CodeEncode      = "ENCODE_FAILED"
)

// Error is a runner failure.
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
	return &Error{Code: code, Message: message, Cause: cause}
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
