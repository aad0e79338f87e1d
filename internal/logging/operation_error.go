package logging

import (
	"errors"
	"fmt"
)

// OperationError annotates an error with the operation and request it failed in.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with the operation and request it belongs to.
// A nil err stays nil so call sites can wrap unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// Cause strips every OperationError layer and returns the innermost error,
// which is what gets shown to end users.
func Cause(err error) error {
	for {
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Err == nil {
			return err
		}
		err = opErr.Err
	}
}
