package action

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeUnknownAction indicates no handler is registered under the name.
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// ErrCodeDuplicateAction indicates a second registration under one name.
	ErrCodeDuplicateAction ErrorCode = "DUPLICATE_ACTION"

	// ErrCodeInvalidArgs indicates arguments rejected before the handler ran.
	ErrCodeInvalidArgs ErrorCode = "INVALID_ARGS"

	// ErrCodeSessionClosed indicates the session loop no longer accepts work.
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
)

// ActionError is a dispatch failure. Handler failures are never wrapped in it.
type ActionError struct {
	Code    ErrorCode
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Action, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsUnknownAction returns true if err is an unknown action error.
// Uses errors.As to handle wrapped errors.
func IsUnknownAction(err error) bool {
	return hasCode(err, ErrCodeUnknownAction)
}

// IsInvalidArgs returns true if err is an argument validation error.
func IsInvalidArgs(err error) bool {
	return hasCode(err, ErrCodeInvalidArgs)
}

func hasCode(err error, code ErrorCode) bool {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
