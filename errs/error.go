// Package errs defines the application's error type, its codes and the
// sentinel errors returned by the services. The http layer maps the codes
// to status codes with ReturnError.
package errs

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	EFORBIDDEN    = "forbidden"
	EUNAUTHORIZED = "unauthorized"
	ECONFLICT     = "conflict"
	ESTATE        = "invalid_state"
	ESELF         = "self_follow"
	EPARENT       = "invalid_parent"
	EINTERNAL     = "internal"
)

// Error is an application error. Message is safe to show to the client.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("errs: code=%s message=%s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Errorf is a helper to create an *Error with a code and a formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps err and returns its code. Errors that are not an *Error
// report EINTERNAL, nil reports "".
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps err and returns its client facing message. Errors
// that are not an *Error report a generic message.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// Sentinel errors of the follow graph, the request state machine and the
// content gateway.
var (
	ErrSelfFollow       = &Error{Code: ESELF, Message: "You cannot follow yourself."}
	ErrAlreadyFollowing = &Error{Code: ECONFLICT, Message: "You already follow this user."}
	ErrNotFollowing     = &Error{Code: ECONFLICT, Message: "You don't follow this user."}
	ErrDuplicateRequest = &Error{Code: ECONFLICT, Message: "A follow request to this user is already pending."}
	ErrInvalidState     = &Error{Code: ESTATE, Message: "This follow request has already been answered."}
	ErrAlreadyLiked     = &Error{Code: ECONFLICT, Message: "You already like this."}
	ErrNotLiked         = &Error{Code: ECONFLICT, Message: "You have not liked this."}
	ErrAlreadySaved     = &Error{Code: ECONFLICT, Message: "You already saved this post."}
	ErrNotSaved         = &Error{Code: ECONFLICT, Message: "You have not saved this post."}
	ErrInvalidParent    = &Error{Code: EPARENT, Message: "The parent comment does not exist or belongs to another post."}
	ErrPrivateContent   = &Error{Code: EFORBIDDEN, Message: "This account is private."}
	ErrBlocked          = &Error{Code: EFORBIDDEN, Message: "You cannot interact with this user."}
	ErrConcurrentUpdate = &Error{Code: ECONFLICT, Message: "The profile was modified concurrently, please retry."}
	ErrUnauthenticated  = &Error{Code: EUNAUTHORIZED, Message: "Authentication required."}
	ErrBadCredentials   = &Error{Code: EUNAUTHORIZED, Message: "Invalid credentials."}
	ErrTokenInvalid     = &Error{Code: EUNAUTHORIZED, Message: "The token provided is not valid."}
	ErrTokenReused      = &Error{Code: EUNAUTHORIZED, Message: "Refresh token reuse detected, please log in again."}
	ErrResetInvalid     = &Error{Code: EINVALID, Message: "Token is invalid or has expired."}
)

// NotFound returns the ENOTFOUND error for a missing entity.
func NotFound(entity string) *Error {
	return Errorf(ENOTFOUND, "%s not found.", entity)
}
