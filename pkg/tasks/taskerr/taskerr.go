// Package taskerr declares the error type workflows surface to callers.
package taskerr

import (
	"errors"
	"fmt"
	"net/http"
)

// OperationError is a failure the caller can act on.
//
// Code follows HTTP status semantics: 400-class for correctable requests
// (bad input, cross-zone removal, missing release), 500-class for remote
// transport faults. Workflows never retry an OperationError.
type OperationError struct {
	Code    int
	Message string
	Cause   error
}

var _ error = &OperationError{}

func (e *OperationError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Cause)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

func BadRequest(format string, a ...any) *OperationError {
	return &OperationError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, a...)}
}

func Internal(message string, cause error) *OperationError {
	return &OperationError{Code: http.StatusInternalServerError, Message: message, Cause: cause}
}

// As unwraps err looking for an OperationError.
func As(err error) (*OperationError, bool) {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
