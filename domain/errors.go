package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeInvalid       ErrorCode = "INVALID"
	ErrCodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal      ErrorCode = "INTERNAL"
)

// Error represents a domain-level error. Message is safe to show to end users,
// Err is kept for logs only.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches domain errors by code and message so that wrapped copies of the
// sentinels below still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	// ErrTaskNotFound covers both unknown ids and tasks owned by someone else.
	ErrTaskNotFound       = NewError(ErrCodeNotFound, "task not found")
	ErrUserNotFound       = NewError(ErrCodeNotFound, "user not found")
	ErrChatNotFound       = NewError(ErrCodeNotFound, "chat not found")
	ErrMembershipNotFound = NewError(ErrCodeNotFound, "membership not found")
	// ErrNotChatMember is returned to users without an active membership. It is
	// NOT_FOUND so callers cannot tell a foreign chat from a missing one.
	ErrNotChatMember      = NewError(ErrCodeNotFound, "user is not registered in this chat")
	ErrStatNotFound       = NewError(ErrCodeNotFound, "no statistics for this week")
	ErrSessionNotFound    = NewError(ErrCodeNotFound, "conversation not found")
	ErrTaskLimitExceeded  = NewError(ErrCodeLimitExceeded, "weekly task limit reached")
	ErrTaskClosed         = NewError(ErrCodeConflict, "task status can no longer change")
	ErrEmptyDescription   = NewError(ErrCodeInvalid, "task description is empty")
	ErrDescriptionTooLong = NewError(ErrCodeInvalid, "task description is too long")
	ErrInvalidStatus      = NewError(ErrCodeInvalid, "invalid task status")
	ErrInvalidWeek        = NewError(ErrCodeInvalid, "invalid week")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")
	ErrStoreUnavailable   = NewError(ErrCodeUnavailable, "service temporarily unavailable, please try again later")
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "unauthorized")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// PublicMessage returns the text that may be shown to a caller. Anything that
// is not a domain error collapses into a generic message.
func PublicMessage(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return "internal error"
}
